package handler

import (
	"log/slog"
	"net/http"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/service"
)

// RewardsHandler serves per-user reward summaries.
type RewardsHandler struct {
	claims  *service.ClaimService
	rewards domain.RewardStore
	logger  *slog.Logger
}

// NewRewardsHandler creates a RewardsHandler.
func NewRewardsHandler(claims *service.ClaimService, rewards domain.RewardStore, logger *slog.Logger) *RewardsHandler {
	return &RewardsHandler{claims: claims, rewards: rewards, logger: logger}
}

// Summary returns the user's claimable summary alongside the per-position
// ledgers that back it.
// GET /api/rewards/{userId}
func (h *RewardsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	summary, err := h.claims.Summary(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	records, err := h.rewards.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if records == nil {
		records = []domain.RewardRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"records": records,
	})
}
