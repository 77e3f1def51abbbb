package service

import (
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/domain"
)

var (
	one         = decimal.NewFromInt(1)
	hoursPerDay = decimal.NewFromInt(24)
)

// AccrualResult carries one position's computed reward figures for a tick.
type AccrualResult struct {
	PositionID  string          `json:"positionId"`
	UserID      string          `json:"userId"`
	DailyReward decimal.Decimal `json:"dailyReward"`
	Accumulated decimal.Decimal `json:"accumulated"`
}

// AccrualCalculator computes the time-boosted reward for a position:
//
//	R_u = (L_u/L_T) x (1 + (D_u/P) x b_time) x IRM x FRB x (R/P)
//
// where the denominator L_T is either the pool TVL or the top-N aggregate
// liquidity depending on the program's reward mode. The accumulated total is
// a day-resolution integral, not rate x elapsed time: the time-boost factor
// grows with position age, so each elapsed day must be summed at the boost
// it actually carried.
type AccrualCalculator struct {
	logger *slog.Logger
}

// NewAccrualCalculator creates an AccrualCalculator.
func NewAccrualCalculator(logger *slog.Logger) *AccrualCalculator {
	return &AccrualCalculator{
		logger: logger.With(slog.String("component", "accrual")),
	}
}

// Compute returns the position's current daily reward rate and its
// accumulated reward since inception, as of now.
//
// Inactive and zero-value positions earn a zero rate; prior accumulation is
// the caller's to retain (the calculator never returns negative increments,
// and the tick keeps the stored total monotonic). A zero denominator
// short-circuits to zero instead of propagating a division error.
func (c *AccrualCalculator) Compute(pos domain.Position, snap *RankingSnapshot, settings domain.ProgramSettings, now time.Time) AccrualResult {
	res := AccrualResult{
		PositionID:  pos.ID,
		UserID:      pos.UserID,
		DailyReward: decimal.Zero,
		Accumulated: decimal.Zero,
	}

	if !pos.Active || !pos.LiquidityValueUSD.IsPositive() {
		return res
	}

	denominator := c.denominator(pos, snap, settings.Mode)
	if !denominator.IsPositive() {
		return res
	}

	share := pos.LiquidityValueUSD.Div(denominator)
	irm := c.inRangeMultiplier(pos, settings)
	frb := c.fullRangeBonus(pos, settings)
	baseDaily := share.Mul(irm).Mul(frb).Mul(settings.DailyBudget())

	ageDays := pos.DaysActive(now)
	boost := timeBoost(ageDays, settings)

	res.DailyReward = baseDaily.Mul(boost)
	res.Accumulated = integrateAccrual(baseDaily, ageDays, settings)
	return res
}

// denominator picks L_T for the configured reward mode. In top-N mode a
// position outside the ranked set earns nothing.
func (c *AccrualCalculator) denominator(pos domain.Position, snap *RankingSnapshot, mode domain.RewardMode) decimal.Decimal {
	switch mode {
	case domain.RewardModeTopN:
		if _, ranked := snap.Rank(pos.ID); !ranked {
			return decimal.Zero
		}
		return snap.TopNLiquidity
	case domain.RewardModePoolTVL:
		return snap.PoolTVL
	default:
		return decimal.Zero
	}
}

func (c *AccrualCalculator) inRangeMultiplier(pos domain.Position, settings domain.ProgramSettings) decimal.Decimal {
	if pos.InRange {
		return one
	}
	return settings.OutOfRangeMultiplier
}

func (c *AccrualCalculator) fullRangeBonus(pos domain.Position, settings domain.ProgramSettings) decimal.Decimal {
	if pos.FullRange {
		return settings.FullRangeBonus
	}
	return one
}

// timeBoost returns (1 + (D_u/P) x b_time) for a position of the given age.
func timeBoost(ageDays float64, settings domain.ProgramSettings) decimal.Decimal {
	p := decimal.NewFromInt(int64(settings.ProgramDurationDays))
	return one.Add(decimal.NewFromFloat(ageDays).Div(p).Mul(settings.TimeBoostCoefficient))
}

// integrateAccrual sums day-resolution contributions:
//
//	sum over d in [0, ceil(age)) of hourlyRate x (1 + (d/P) x b_time) x hoursInDay(d)
//
// where the final partial day contributes its fractional remainder of hours.
// Day chunks are exact enough for daily-granularity admin inputs; the naive
// currentRate x elapsedHours shortcut would over-count old positions because
// today's boosted rate did not apply to their early days.
func integrateAccrual(baseDaily decimal.Decimal, ageDays float64, settings domain.ProgramSettings) decimal.Decimal {
	if ageDays <= 0 || !baseDaily.IsPositive() {
		return decimal.Zero
	}

	hourlyRate := baseDaily.Div(hoursPerDay)
	p := decimal.NewFromInt(int64(settings.ProgramDurationDays))
	fullDays := int(math.Ceil(ageDays))

	total := decimal.Zero
	for d := 0; d < fullDays; d++ {
		hours := hoursPerDay
		if d == fullDays-1 {
			frac := ageDays - float64(fullDays-1)
			hours = hoursPerDay.Mul(decimal.NewFromFloat(frac))
		}
		boost := one.Add(decimal.NewFromInt(int64(d)).Div(p).Mul(settings.TimeBoostCoefficient))
		total = total.Add(hourlyRate.Mul(boost).Mul(hours))
	}
	return total
}
