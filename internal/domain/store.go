package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PositionStore is the durable record of liquidity positions. Liquidity
// values are refreshed by the external oracle pipeline; the engine only
// creates (manual registration path) and deactivates positions.
type PositionStore interface {
	Create(ctx context.Context, p Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	GetActive(ctx context.Context) ([]Position, error)
	ListByUser(ctx context.Context, userID string) ([]Position, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// RewardStore persists per-position accrual ledgers. Records are never
// deleted; claims only ever increase the claimed column.
type RewardStore interface {
	Upsert(ctx context.Context, r RewardRecord) error
	GetByPosition(ctx context.Context, positionID string) (RewardRecord, error)
	ListByUser(ctx context.Context, userID string) ([]RewardRecord, error)
	// UpdateAccrual writes a new daily rate and accumulated total for a
	// position's ledger.
	UpdateAccrual(ctx context.Context, positionID string, daily, accumulated decimal.Decimal) error
	// ApplyClaim increases the claimed column of a ledger, stamping the
	// claim time. It must refuse to push claimed past accumulated.
	ApplyClaim(ctx context.Context, positionID string, newClaimed decimal.Decimal, at time.Time) error
	// SetEligible flips the claim-eligibility flag once the linked app
	// transaction is verified.
	SetEligible(ctx context.Context, positionID string, eligible bool) error
	// HasClaimed reports whether any of the user's ledgers carries a claim
	// timestamp. Drives the first-claim lock state machine.
	HasClaimed(ctx context.Context, userID string) (bool, error)
	// EarliestLiquidityAddedAt returns the earliest liquidity_added_at
	// across the user's ledgers, or ErrNotFound when the user has none.
	EarliestLiquidityAddedAt(ctx context.Context, userID string) (time.Time, error)
}

// TransactionStore persists app-originated transaction reports. The hash
// column is unique; Create returns ErrDuplicateTransaction on conflict.
type TransactionStore interface {
	Create(ctx context.Context, tx AppTransaction) error
	GetByID(ctx context.Context, id string) (AppTransaction, error)
	GetByHash(ctx context.Context, hash string) (AppTransaction, error)
	// MarkVerified transitions pending -> verified and stamps chain
	// metadata. Verified and rejected rows are immutable.
	MarkVerified(ctx context.Context, id string, receipt ChainReceipt, at time.Time) error
	MarkRejected(ctx context.Context, id string, reason string) error
}

// EligibilityStore persists position eligibility records.
type EligibilityStore interface {
	Create(ctx context.Context, e PositionEligibility) error
	GetByPosition(ctx context.Context, positionID string) (PositionEligibility, error)
}

// SettingsStore supplies the admin-configured program settings. Get returns
// ErrConfigurationMissing when no record exists; callers must surface that,
// never default around it.
type SettingsStore interface {
	Get(ctx context.Context) (ProgramSettings, error)
	Put(ctx context.Context, s ProgramSettings) error
}

// ClaimAuditStore persists claim authorizations and their outcomes.
type ClaimAuditStore interface {
	Create(ctx context.Context, a ClaimAudit) error
	GetByID(ctx context.Context, id string) (ClaimAudit, error)
	MarkConfirmed(ctx context.Context, id string, txHash string, at time.Time) error
	MarkRejected(ctx context.Context, id string, reason string) error
	// ListUnarchivedBefore returns confirmed rows older than the cutoff
	// that have not yet been exported to cold storage.
	ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]ClaimAudit, error)
	MarkArchived(ctx context.Context, ids []string, at time.Time) error
}

// SessionStore holds app sessions. Implementations are ephemeral by
// contract: an in-process map or a shared cache, both lose nothing the
// surrounding app cannot recover by re-authenticating.
type SessionStore interface {
	Put(ctx context.Context, s AppSession) error
	Get(ctx context.Context, id string) (AppSession, error)
	Invalidate(ctx context.Context, id string) error
	// DeleteExpired removes sessions whose TTL elapsed before now and
	// returns how many were evicted.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
