package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/service"
)

// PositionHandler serves position registration and listing endpoints.
type PositionHandler struct {
	provenance *service.ProvenanceService
	positions  domain.PositionStore
	logger     *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(provenance *service.ProvenanceService, positions domain.PositionStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{provenance: provenance, positions: positions, logger: logger}
}

type registerPositionRequest struct {
	PositionID        string          `json:"positionId"`
	UserID            string          `json:"userId"`
	PoolAddress       string          `json:"poolAddress"`
	LiquidityValueUSD decimal.Decimal `json:"liquidityValueUsd"`
	PriceLower        decimal.Decimal `json:"priceLower"`
	PriceUpper        decimal.Decimal `json:"priceUpper"`
	FullRange         bool            `json:"isFullRange"`
	NFTTokenID        string          `json:"nftTokenId"`
	Reason            string          `json:"reason"`
	CreatedAt         *time.Time      `json:"createdAt,omitempty"`
}

// Register is the manual registration path for positions created outside the
// app. The resulting position and eligibility record always carry
// createdThroughApp=false.
// POST /api/positions/register
func (h *PositionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPositionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PositionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "positionId and userId are required")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "manual registration requires a reason")
		return
	}

	pos := domain.Position{
		ID:                req.PositionID,
		UserID:            req.UserID,
		PoolAddress:       req.PoolAddress,
		LiquidityValueUSD: req.LiquidityValueUSD,
		PriceLower:        req.PriceLower,
		PriceUpper:        req.PriceUpper,
		InRange:           true,
		FullRange:         req.FullRange,
		Active:            true,
	}
	if req.CreatedAt != nil {
		pos.CreatedAt = req.CreatedAt.UTC()
	}

	elig, err := h.provenance.RegisterManualPosition(r.Context(), pos, req.NFTTokenID, req.Reason)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, elig)
}

type registerEligibilityRequest struct {
	NFTTokenID    string `json:"nftTokenId"`
	TransactionID string `json:"transactionId"`
}

// RegisterEligibility marks an app-created position reward-eligible, backed
// by a verified app transaction.
// POST /api/positions/{id}/eligibility
func (h *PositionHandler) RegisterEligibility(w http.ResponseWriter, r *http.Request) {
	var req registerEligibilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "transactionId is required")
		return
	}

	elig, err := h.provenance.RegisterEligibility(r.Context(), r.PathValue("id"), req.NFTTokenID, req.TransactionID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, elig)
}

// ListByUser returns all of a user's positions.
// GET /api/positions?user={userId}
func (h *PositionHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter required")
		return
	}

	positions, err := h.positions.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}
