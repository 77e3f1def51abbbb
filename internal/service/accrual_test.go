package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/lpboost/internal/domain"
)

func testSettings() domain.ProgramSettings {
	return domain.ProgramSettings{
		LockPeriodDays:       7,
		TimeBoostCoefficient: decimal.NewFromFloat(0.6),
		FullRangeBonus:       decimal.NewFromFloat(1.2),
		OutOfRangeMultiplier: decimal.Zero,
		ProgramDurationDays:  90,
		TotalAllocation:      decimal.NewFromInt(900_000), // 10k tokens/day
		Mode:                 domain.RewardModePoolTVL,
		UpdatedAt:            time.Now().UTC(),
	}
}

// snapshotFor builds a ranking snapshot over the given positions.
func snapshotFor(t *testing.T, now time.Time, positions ...domain.Position) *RankingSnapshot {
	t.Helper()
	svc := NewRankingService(newFakePositionStore(positions...), testLogger())
	snap, err := svc.Snapshot(context.Background(), now)
	require.NoError(t, err)
	return snap
}

// TestDailyRewardSpecExample checks the reference figures: L_u=1000,
// L_T=100000, D_u=30, P=90, b_time=0.6, IRM=1, FRB=1, budget 10000/day
// gives 0.01 x 1.2 x 10000 = 120 tokens/day.
func TestDailyRewardSpecExample(t *testing.T) {
	now := time.Now().UTC()
	pos := position("p1", "u1", 1000, now.Add(-30*24*time.Hour))
	rest := position("p2", "u2", 99_000, now.Add(-24*time.Hour))
	snap := snapshotFor(t, now, pos, rest)

	settings := testSettings()
	calc := NewAccrualCalculator(testLogger())

	res := calc.Compute(pos, snap, settings, now)

	daily, _ := res.DailyReward.Float64()
	assert.InDelta(t, 120.0, daily, 0.0001)
}

// TestAccumulationIsIntegralNotRateTimesTime: the day-chunked sum must be
// strictly below currentRate x elapsed days (the boost was smaller on the
// early days) and strictly above the unboosted baseline.
func TestAccumulationIsIntegralNotRateTimesTime(t *testing.T) {
	now := time.Now().UTC()
	pos := position("p1", "u1", 1000, now.Add(-30*24*time.Hour))
	rest := position("p2", "u2", 99_000, now.Add(-24*time.Hour))
	snap := snapshotFor(t, now, pos, rest)

	settings := testSettings()
	calc := NewAccrualCalculator(testLogger())

	res := calc.Compute(pos, snap, settings, now)

	baseDaily := 100.0                     // 0.01 x 10000, unboosted
	naiveCurrent := 120.0 * 30             // today's boosted rate x 30 days
	unboosted := baseDaily * 30            // no boost at all
	accumulated, _ := res.Accumulated.Float64()

	assert.Greater(t, accumulated, unboosted)
	assert.Less(t, accumulated, naiveCurrent)

	// Closed form for whole days: sum_{d=0}^{29} 100 x (1 + d/90*0.6)
	// = 3000 + 100*0.6/90 * (29*30/2) = 3000 + 290 = 3290.
	assert.InDelta(t, 3290.0, accumulated, 0.5)
}

func TestAccumulationMonotonic(t *testing.T) {
	start := time.Now().UTC().Add(-40 * 24 * time.Hour)
	pos := position("p1", "u1", 1000, start)
	rest := position("p2", "u2", 99_000, start)
	settings := testSettings()
	calc := NewAccrualCalculator(testLogger())

	prev := decimal.Zero
	for day := 1; day <= 40; day++ {
		now := start.Add(time.Duration(day) * 24 * time.Hour)
		snap := snapshotFor(t, now, pos, rest)
		res := calc.Compute(pos, snap, settings, now)
		assert.True(t, res.Accumulated.GreaterThanOrEqual(prev),
			"day %d: accumulated %s < previous %s", day, res.Accumulated, prev)
		prev = res.Accumulated
	}
}

func TestAccrualGuards(t *testing.T) {
	now := time.Now().UTC()
	settings := testSettings()
	calc := NewAccrualCalculator(testLogger())

	t.Run("inactive position", func(t *testing.T) {
		pos := position("p1", "u1", 1000, now.Add(-24*time.Hour))
		pos.Active = false
		snap := snapshotFor(t, now, position("p2", "u2", 1000, now))
		res := calc.Compute(pos, snap, settings, now)
		assert.True(t, res.DailyReward.IsZero())
		assert.True(t, res.Accumulated.IsZero())
	})

	t.Run("zero liquidity", func(t *testing.T) {
		pos := position("p1", "u1", 0, now.Add(-24*time.Hour))
		snap := snapshotFor(t, now, pos)
		res := calc.Compute(pos, snap, settings, now)
		assert.True(t, res.DailyReward.IsZero())
	})

	t.Run("zero denominator", func(t *testing.T) {
		pos := position("p1", "u1", 1000, now.Add(-24*time.Hour))
		empty := &RankingSnapshot{TakenAt: now, PoolTVL: decimal.Zero, TopNLiquidity: decimal.Zero}
		res := calc.Compute(pos, empty, settings, now)
		assert.True(t, res.DailyReward.IsZero(), "division guard, not NaN")
	})
}

func TestAccrualOutOfRange(t *testing.T) {
	now := time.Now().UTC()
	settings := testSettings() // out-of-range multiplier 0
	calc := NewAccrualCalculator(testLogger())

	pos := position("p1", "u1", 1000, now.Add(-10*24*time.Hour))
	pos.InRange = false
	snap := snapshotFor(t, now, pos, position("p2", "u2", 99_000, now))

	res := calc.Compute(pos, snap, settings, now)
	assert.True(t, res.DailyReward.IsZero())

	// Partial credit policy.
	settings.OutOfRangeMultiplier = decimal.NewFromFloat(0.5)
	res = calc.Compute(pos, snap, settings, now)
	assert.True(t, res.DailyReward.IsPositive())
}

func TestAccrualFullRangeBonus(t *testing.T) {
	now := time.Now().UTC()
	settings := testSettings()
	calc := NewAccrualCalculator(testLogger())

	narrow := position("p1", "u1", 1000, now.Add(-24*time.Hour))
	full := position("p2", "u2", 1000, now.Add(-24*time.Hour))
	full.FullRange = true
	snap := snapshotFor(t, now, narrow, full, position("p3", "u3", 98_000, now))

	narrowRes := calc.Compute(narrow, snap, settings, now)
	fullRes := calc.Compute(full, snap, settings, now)

	ratio := fullRes.DailyReward.Div(narrowRes.DailyReward)
	expected, _ := ratio.Float64()
	assert.InDelta(t, 1.2, expected, 0.0001)
}

func TestAccrualTopNModeExcludesUnranked(t *testing.T) {
	now := time.Now().UTC()
	settings := testSettings()
	settings.Mode = domain.RewardModeTopN
	calc := NewAccrualCalculator(testLogger())

	positions := make([]domain.Position, 0, TopN+1)
	for i := 0; i < TopN+1; i++ {
		positions = append(positions, position(
			positionID(i), userID(i), float64(10_000-i), now.Add(-24*time.Hour)))
	}
	snap := snapshotFor(t, now, positions...)

	ranked := calc.Compute(positions[0], snap, settings, now)
	assert.True(t, ranked.DailyReward.IsPositive())

	unranked := calc.Compute(positions[TopN], snap, settings, now)
	assert.True(t, unranked.DailyReward.IsZero())
}

func positionID(i int) string { return fmt.Sprintf("p%03d", i) }
func userID(i int) string     { return fmt.Sprintf("u%03d", i) }
