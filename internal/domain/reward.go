package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardRecord is the per-position accrual ledger. Accumulated is a running
// integral and only ever grows; Claimed never exceeds Accumulated. Records
// are never deleted (audit trail).
type RewardRecord struct {
	UserID           string          `json:"userId"`
	PositionID       string          `json:"positionId"`
	DailyReward      decimal.Decimal `json:"dailyRewardAmount"`
	Accumulated      decimal.Decimal `json:"accumulatedAmount"`
	Claimed          decimal.Decimal `json:"claimedAmount"`
	LiquidityAddedAt time.Time       `json:"liquidityAddedAt"`
	StakingStartedAt time.Time       `json:"stakingStartDate"`
	EligibleForClaim bool            `json:"isEligibleForClaim"`
	LastClaimedAt    *time.Time      `json:"lastClaimedAt,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Unclaimed returns the portion of the accrued reward not yet claimed.
func (r RewardRecord) Unclaimed() decimal.Decimal {
	u := r.Accumulated.Sub(r.Claimed)
	if u.IsNegative() {
		return decimal.Zero
	}
	return u
}

// LockState is the per-user claim lock state. The lock applies only to a
// user's historically first claim.
type LockState string

const (
	LockStateLocked             LockState = "locked"
	LockStateUnlockedFirstClaim LockState = "unlocked_first_claim"
	LockStateUnlockedReturning  LockState = "unlocked_returning"
)

// ClaimableSummary is the engine's answer to "what can this user claim now".
// While locked, Claimable is zero and DaysRemaining counts down to unlock.
type ClaimableSummary struct {
	UserID        string          `json:"userId"`
	State         LockState       `json:"lockState"`
	Claimable     decimal.Decimal `json:"claimableAmount"`
	Accumulated   decimal.Decimal `json:"accumulatedAmount"`
	Claimed       decimal.Decimal `json:"claimedAmount"`
	LockExpiresAt *time.Time      `json:"lockExpiresAt,omitempty"`
	DaysRemaining int             `json:"daysRemaining"`
}
