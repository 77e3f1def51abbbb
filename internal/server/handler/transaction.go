package handler

import (
	"log/slog"
	"net/http"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/service"
)

// TransactionHandler serves the provenance-gated transaction endpoints.
type TransactionHandler struct {
	provenance *service.ProvenanceService
	logger     *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(provenance *service.ProvenanceService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{provenance: provenance, logger: logger}
}

type recordTransactionRequest struct {
	SessionID       string `json:"sessionId"`
	TransactionHash string `json:"transactionHash"`
	UserID          string `json:"userId"`
	UserAddress     string `json:"userAddress"`
	TransactionType string `json:"transactionType"`
}

// Record registers an app-originated transaction under a live session.
// POST /api/transactions
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.TransactionHash == "" {
		writeError(w, http.StatusBadRequest, "transactionHash is required")
		return
	}

	tx, err := h.provenance.RecordTransaction(r.Context(), req.SessionID, service.TxReport{
		Hash:        req.TransactionHash,
		UserID:      req.UserID,
		UserAddress: req.UserAddress,
		Type:        domain.TransactionType(req.TransactionType),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

type verifyTransactionRequest struct {
	BlockNumber int64 `json:"blockNumber"`
	GasUsed     int64 `json:"gasUsed"`
	Success     bool  `json:"success"`
}

// Verify applies a chain receipt to a pending transaction.
// POST /api/transactions/{id}/verify
func (h *TransactionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := h.provenance.VerifyTransaction(r.Context(), r.PathValue("id"), domain.ChainReceipt{
		BlockNumber: req.BlockNumber,
		GasUsed:     req.GasUsed,
		Success:     req.Success,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
