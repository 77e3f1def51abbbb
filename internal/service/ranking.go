// Package service implements the reward engine's business logic: ranking,
// accrual, claim eligibility, claim authorization, and the app-transaction
// provenance gate. Services are constructed once at process start and hold
// their dependencies explicitly; none of them keep package-level state.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// TopN is the size of the competitively ranked set. Only these positions
// share the reward budget in top-N mode.
const TopN = 100

// RankedPosition is one row of a ranking snapshot.
type RankedPosition struct {
	Rank              int             `json:"rank"`
	PositionID        string          `json:"positionId"`
	UserID            string          `json:"userId"`
	LiquidityValueUSD decimal.Decimal `json:"liquidityValueUsd"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// RankingSnapshot is a read-consistent view of the ranked position set,
// computed once and reused for a whole accrual pass so every position is
// scored against the same competitor set.
type RankingSnapshot struct {
	TakenAt       time.Time        `json:"takenAt"`
	Entries       []RankedPosition `json:"entries"`
	TotalActive   int              `json:"totalActive"`
	TopNLiquidity decimal.Decimal  `json:"topNLiquidity"`
	PoolTVL       decimal.Decimal  `json:"poolTvl"`

	ranks map[string]int
}

// Rank returns the 1-based rank of a position within the snapshot, or false
// when the position is outside the top N.
func (s *RankingSnapshot) Rank(positionID string) (int, bool) {
	r, ok := s.ranks[positionID]
	return r, ok
}

// ReplacementCheck is the answer to "may this candidate displace the current
// Nth-place holder".
type ReplacementCheck struct {
	Eligible      bool `json:"eligible"`
	ProjectedRank int  `json:"projectedRank"`
}

// RankingService maintains the top-N ordering of active positions by USD
// liquidity value.
type RankingService struct {
	positions domain.PositionStore
	topN      int
	logger    *slog.Logger
}

// NewRankingService creates a RankingService over the given position store.
func NewRankingService(positions domain.PositionStore, logger *slog.Logger) *RankingService {
	return &RankingService{
		positions: positions,
		topN:      TopN,
		logger:    logger.With(slog.String("component", "ranking")),
	}
}

// Snapshot loads all active positions and computes a consistent ranking:
// descending liquidity value, ties broken by earlier creation then id so the
// order is deterministic. The snapshot also carries the two candidate
// denominators for the accrual share (top-N aggregate and pool TVL).
func (r *RankingService) Snapshot(ctx context.Context, now time.Time) (*RankingSnapshot, error) {
	active, err := r.positions.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: load active positions: %w", err)
	}

	sort.Slice(active, func(i, j int) bool {
		cmp := active[i].LiquidityValueUSD.Cmp(active[j].LiquidityValueUSD)
		if cmp != 0 {
			return cmp > 0
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	snap := &RankingSnapshot{
		TakenAt:     now,
		TotalActive: len(active),
		PoolTVL:     decimal.Zero,
		TopNLiquidity: decimal.Zero,
		ranks:       make(map[string]int, r.topN),
	}

	for i, p := range active {
		snap.PoolTVL = snap.PoolTVL.Add(p.LiquidityValueUSD)
		if i >= r.topN {
			continue
		}
		rank := i + 1
		snap.Entries = append(snap.Entries, RankedPosition{
			Rank:              rank,
			PositionID:        p.ID,
			UserID:            p.UserID,
			LiquidityValueUSD: p.LiquidityValueUSD,
			CreatedAt:         p.CreatedAt,
		})
		snap.TopNLiquidity = snap.TopNLiquidity.Add(p.LiquidityValueUSD)
		snap.ranks[p.ID] = rank
	}

	return snap, nil
}

// Rank returns the 1-based rank of the user's position, or false when the
// position is not in the top N (or does not belong to the user).
func (r *RankingService) Rank(ctx context.Context, userID, positionID string) (int, bool, error) {
	snap, err := r.Snapshot(ctx, time.Now().UTC())
	if err != nil {
		return 0, false, err
	}
	for _, e := range snap.Entries {
		if e.PositionID == positionID && e.UserID == userID {
			return e.Rank, true, nil
		}
	}
	return 0, false, nil
}

// CheckReplacement decides whether a candidate position may displace the
// current Nth-place holder. While the set is not full every candidate is
// eligible at count+1. A full set is contested on score = liquidity x days
// active, and the candidate must strictly exceed the incumbent's score: an
// exact tie keeps the incumbent, which prevents replacement thrashing.
func (r *RankingService) CheckReplacement(ctx context.Context, candidateLiquidity decimal.Decimal, candidateDaysActive float64) (ReplacementCheck, error) {
	now := time.Now().UTC()
	snap, err := r.Snapshot(ctx, now)
	if err != nil {
		return ReplacementCheck{}, err
	}
	return r.checkReplacement(snap, candidateLiquidity, candidateDaysActive, now), nil
}

func (r *RankingService) checkReplacement(snap *RankingSnapshot, candidateLiquidity decimal.Decimal, candidateDaysActive float64, now time.Time) ReplacementCheck {
	if snap.TotalActive < r.topN {
		return ReplacementCheck{Eligible: true, ProjectedRank: snap.TotalActive + 1}
	}

	incumbent := snap.Entries[len(snap.Entries)-1]
	incumbentDays := now.Sub(incumbent.CreatedAt).Hours() / 24
	if incumbentDays < 0 {
		incumbentDays = 0
	}

	candidateScore := candidateLiquidity.Mul(decimal.NewFromFloat(candidateDaysActive))
	incumbentScore := incumbent.LiquidityValueUSD.Mul(decimal.NewFromFloat(incumbentDays))

	if candidateScore.GreaterThan(incumbentScore) {
		return ReplacementCheck{Eligible: true, ProjectedRank: r.topN}
	}
	return ReplacementCheck{Eligible: false}
}

// RankMultiplier returns m(rank) = 1 - (rank-1)/(N-1) for rank in [1,N] and
// zero outside that range.
func (r *RankingService) RankMultiplier(rank int) decimal.Decimal {
	return RankMultiplier(rank, r.topN)
}

// RankMultiplier is the linear decay from 1.0 at rank 1 to 0 at rank n.
func RankMultiplier(rank, n int) decimal.Decimal {
	if rank < 1 || rank > n || n < 2 {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	return one.Sub(decimal.NewFromInt(int64(rank - 1)).Div(decimal.NewFromInt(int64(n - 1))))
}
