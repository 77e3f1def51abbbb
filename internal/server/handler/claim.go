package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/service"
)

// ClaimHandler serves claim authorization and settlement endpoints.
type ClaimHandler struct {
	claims *service.ClaimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(claims *service.ClaimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{claims: claims, logger: logger}
}

type authorizeClaimRequest struct {
	UserID      string           `json:"userId"`
	UserAddress string           `json:"userAddress"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// Authorize produces a signed claim authorization. Amount is optional; when
// omitted the full claimable balance is authorized.
// POST /api/claims/authorize
func (h *ClaimHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.UserAddress == "" {
		writeError(w, http.StatusBadRequest, "userId and userAddress are required")
		return
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	auth, err := h.claims.Authorize(r.Context(), req.UserID, req.UserAddress, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, auth)
}

type confirmClaimRequest struct {
	TransactionHash string `json:"transactionHash"`
}

// Confirm settles an authorized claim after its on-chain transaction landed,
// advancing the user's ledgers.
// POST /api/claims/{id}/confirm
func (h *ClaimHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionHash == "" {
		writeError(w, http.StatusBadRequest, "transactionHash is required")
		return
	}

	if err := h.claims.Confirm(r.Context(), r.PathValue("id"), req.TransactionHash); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

type rejectClaimRequest struct {
	Reason string `json:"reason"`
}

// Reject records that an authorized claim will never settle. Ledgers are left
// untouched.
// POST /api/claims/{id}/reject
func (h *ClaimHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	if err := h.claims.Reject(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
