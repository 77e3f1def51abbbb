package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/service"
)

// RankingHandler serves the top-N ranking board and replacement checks.
type RankingHandler struct {
	ranking *service.RankingService
	logger  *slog.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(ranking *service.RankingService, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{ranking: ranking, logger: logger}
}

// Board returns the current ranking snapshot.
// GET /api/ranking
func (h *RankingHandler) Board(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ranking.Snapshot(r.Context(), time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if snap.Entries == nil {
		snap.Entries = []service.RankedPosition{}
	}
	writeJSON(w, http.StatusOK, snap)
}

// Replacement answers whether a candidate with the given liquidity and age
// would displace the current last-place holder.
// GET /api/ranking/replacement?liquidity=50000&daysActive=12.5
func (h *RankingHandler) Replacement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	liquidity, err := decimal.NewFromString(q.Get("liquidity"))
	if err != nil || liquidity.IsNegative() {
		writeError(w, http.StatusBadRequest, "liquidity must be a non-negative decimal")
		return
	}

	daysActive := 0.0
	if raw := q.Get("daysActive"); raw != "" {
		daysActive, err = strconv.ParseFloat(raw, 64)
		if err != nil || daysActive < 0 {
			writeError(w, http.StatusBadRequest, "daysActive must be a non-negative number")
			return
		}
	}

	check, err := h.ranking.CheckReplacement(r.Context(), liquidity, daysActive)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
