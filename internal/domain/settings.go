package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RewardMode selects the denominator of the reward share: the whole pool TVL
// or the aggregate liquidity of the top-N ranked positions. One mode is
// picked per deployment and stored with the settings record.
type RewardMode string

const (
	RewardModeTopN    RewardMode = "top_n"
	RewardModePoolTVL RewardMode = "pool_tvl"
)

// ProgramSettings is the admin-supplied reward program configuration. It is
// deliberately not defaulted anywhere in code: when the record is absent the
// engine refuses to compute rewards with ErrConfigurationMissing rather than
// fabricate numbers.
type ProgramSettings struct {
	LockPeriodDays       int             `json:"lockPeriodDays"`
	TimeBoostCoefficient decimal.Decimal `json:"timeBoostCoefficient"`
	FullRangeBonus       decimal.Decimal `json:"fullRangeBonus"`
	OutOfRangeMultiplier decimal.Decimal `json:"outOfRangeMultiplier"`
	DailyRewardsCap      decimal.Decimal `json:"dailyRewardsCap"`
	ProgramDurationDays  int             `json:"programDurationDays"`
	TotalAllocation      decimal.Decimal `json:"totalAllocation"`
	Mode                 RewardMode      `json:"rewardMode"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// DailyBudget returns the token budget distributed per day: the program
// allocation spread over its duration, capped by DailyRewardsCap when set.
func (s ProgramSettings) DailyBudget() decimal.Decimal {
	if s.ProgramDurationDays <= 0 {
		return decimal.Zero
	}
	budget := s.TotalAllocation.Div(decimal.NewFromInt(int64(s.ProgramDurationDays)))
	if s.DailyRewardsCap.IsPositive() && budget.GreaterThan(s.DailyRewardsCap) {
		return s.DailyRewardsCap
	}
	return budget
}

// Validate checks the settings record for values that would poison the
// reward math.
func (s ProgramSettings) Validate() error {
	if s.ProgramDurationDays <= 0 {
		return fmt.Errorf("program_duration_days must be positive, got %d", s.ProgramDurationDays)
	}
	if s.LockPeriodDays < 0 {
		return fmt.Errorf("lock_period_days must not be negative, got %d", s.LockPeriodDays)
	}
	if s.TimeBoostCoefficient.IsNegative() || s.TimeBoostCoefficient.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("time_boost_coefficient must be in [0,1], got %s", s.TimeBoostCoefficient)
	}
	if s.FullRangeBonus.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("full_range_bonus must be >= 1, got %s", s.FullRangeBonus)
	}
	if s.OutOfRangeMultiplier.IsNegative() || s.OutOfRangeMultiplier.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("out_of_range_multiplier must be in [0,1], got %s", s.OutOfRangeMultiplier)
	}
	if !s.TotalAllocation.IsPositive() {
		return fmt.Errorf("total_allocation must be positive, got %s", s.TotalAllocation)
	}
	switch s.Mode {
	case RewardModeTopN, RewardModePoolTVL:
	default:
		return fmt.Errorf("unknown reward_mode %q", s.Mode)
	}
	return nil
}
