package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/lpboost/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func position(id, userID string, liquidity float64, createdAt time.Time) domain.Position {
	return domain.Position{
		ID:                id,
		UserID:            userID,
		PoolAddress:       "0x0000000000000000000000000000000000000001",
		LiquidityValueUSD: decimal.NewFromFloat(liquidity),
		InRange:           true,
		Active:            true,
		CreatedAt:         createdAt,
	}
}

func TestSnapshotOrdering(t *testing.T) {
	now := time.Now().UTC()
	store := newFakePositionStore(
		position("p1", "u1", 500, now.Add(-48*time.Hour)),
		position("p2", "u2", 2000, now.Add(-24*time.Hour)),
		position("p3", "u3", 1000, now.Add(-72*time.Hour)),
	)
	svc := NewRankingService(store, testLogger())

	snap, err := svc.Snapshot(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, "p2", snap.Entries[0].PositionID)
	assert.Equal(t, "p3", snap.Entries[1].PositionID)
	assert.Equal(t, "p1", snap.Entries[2].PositionID)
	assert.True(t, snap.PoolTVL.Equal(decimal.NewFromInt(3500)))
	assert.True(t, snap.TopNLiquidity.Equal(decimal.NewFromInt(3500)))

	rank, ok := snap.Rank("p3")
	require.True(t, ok)
	assert.Equal(t, 2, rank)
}

func TestSnapshotEmptySet(t *testing.T) {
	svc := NewRankingService(newFakePositionStore(), testLogger())

	snap, err := svc.Snapshot(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, snap.TotalActive)
	assert.Empty(t, snap.Entries)

	_, ok, err := svc.Rank(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	check, err := svc.CheckReplacement(context.Background(), decimal.NewFromInt(100), 1)
	require.NoError(t, err)
	assert.True(t, check.Eligible)
	assert.Equal(t, 1, check.ProjectedRank)
}

func TestRankOutsideTopN(t *testing.T) {
	now := time.Now().UTC()
	positions := make([]domain.Position, 0, TopN+5)
	for i := 0; i < TopN+5; i++ {
		positions = append(positions, position(
			fmt.Sprintf("p%03d", i),
			fmt.Sprintf("u%03d", i),
			float64(10000-i), // strictly descending
			now.Add(-time.Duration(i)*time.Hour),
		))
	}
	svc := NewRankingService(newFakePositionStore(positions...), testLogger())

	snap, err := svc.Snapshot(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, TopN)
	assert.Equal(t, TopN+5, snap.TotalActive)

	// Ranked positions report [1,N].
	rank, ok, err := svc.Rank(context.Background(), "u000", "p000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	// The 101st position has no rank.
	_, ok, err = svc.Rank(context.Background(), "u100", "p100")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckReplacementTieFavorsIncumbent(t *testing.T) {
	now := time.Now().UTC()
	positions := make([]domain.Position, 0, TopN)
	for i := 0; i < TopN; i++ {
		positions = append(positions, position(
			fmt.Sprintf("p%03d", i),
			fmt.Sprintf("u%03d", i),
			float64(1000-i),
			now.Add(-10*24*time.Hour), // all 10 days old
		))
	}
	svc := NewRankingService(newFakePositionStore(positions...), testLogger())
	snap, err := svc.Snapshot(context.Background(), now)
	require.NoError(t, err)

	// Nth holder: liquidity 901, 10 days active, score 9010.
	incumbent := snap.Entries[TopN-1]
	assert.Equal(t, "p099", incumbent.PositionID)

	// Exact tie: not eligible.
	tie := svc.checkReplacement(snap, decimal.NewFromInt(901), 10, now)
	assert.False(t, tie.Eligible)

	// Epsilon over: eligible at rank N.
	over := svc.checkReplacement(snap, decimal.NewFromFloat(901.0001), 10, now)
	assert.True(t, over.Eligible)
	assert.Equal(t, TopN, over.ProjectedRank)

	// Below: not eligible.
	under := svc.checkReplacement(snap, decimal.NewFromInt(901), 9.5, now)
	assert.False(t, under.Eligible)
}

func TestCheckReplacementSetNotFull(t *testing.T) {
	now := time.Now().UTC()
	svc := NewRankingService(newFakePositionStore(
		position("p1", "u1", 100, now),
		position("p2", "u2", 50, now),
	), testLogger())

	check, err := svc.CheckReplacement(context.Background(), decimal.NewFromInt(1), 0)
	require.NoError(t, err)
	assert.True(t, check.Eligible, "tiny candidates are welcome while the set is not full")
	assert.Equal(t, 3, check.ProjectedRank)
}

func TestRankMultiplier(t *testing.T) {
	assert.True(t, RankMultiplier(1, TopN).Equal(decimal.NewFromInt(1)))
	assert.True(t, RankMultiplier(TopN, TopN).IsZero())
	assert.True(t, RankMultiplier(0, TopN).IsZero())
	assert.True(t, RankMultiplier(TopN+1, TopN).IsZero())

	// Rank 50 of 100: 1 - 49/99.
	expected := decimal.NewFromInt(1).Sub(decimal.NewFromInt(49).Div(decimal.NewFromInt(99)))
	assert.True(t, RankMultiplier(50, TopN).Equal(expected))
}
