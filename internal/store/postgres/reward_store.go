package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// RewardStore implements domain.RewardStore using PostgreSQL. The table
// carries a claimed <= accumulated CHECK constraint; ApplyClaim additionally
// guards the transition in its WHERE clause so a race surfaces as a domain
// error instead of a constraint violation.
type RewardStore struct {
	pool *pgxpool.Pool
}

// NewRewardStore creates a RewardStore backed by the given pool.
func NewRewardStore(pool *pgxpool.Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

var _ domain.RewardStore = (*RewardStore)(nil)

const rewardSelectCols = `position_id, user_id, daily_reward, accumulated,
	claimed, liquidity_added_at, staking_started_at, eligible_for_claim,
	last_claimed_at, updated_at`

func scanRewardRow(row pgx.Row) (domain.RewardRecord, error) {
	var r domain.RewardRecord
	err := row.Scan(
		&r.PositionID, &r.UserID, &r.DailyReward, &r.Accumulated,
		&r.Claimed, &r.LiquidityAddedAt, &r.StakingStartedAt, &r.EligibleForClaim,
		&r.LastClaimedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.RewardRecord{}, err
	}
	return r, nil
}

// Upsert inserts a ledger or refreshes its mutable fields. Claim bookkeeping
// (claimed, last_claimed_at) is intentionally not touched here; only
// ApplyClaim advances it.
func (s *RewardStore) Upsert(ctx context.Context, r domain.RewardRecord) error {
	const query = `
		INSERT INTO reward_records (
			position_id, user_id, daily_reward, accumulated, claimed,
			liquidity_added_at, staking_started_at, eligible_for_claim,
			last_claimed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (position_id) DO UPDATE SET
			daily_reward       = EXCLUDED.daily_reward,
			accumulated        = EXCLUDED.accumulated,
			eligible_for_claim = EXCLUDED.eligible_for_claim,
			updated_at         = NOW()`

	_, err := s.pool.Exec(ctx, query,
		r.PositionID, r.UserID, r.DailyReward, r.Accumulated, r.Claimed,
		r.LiquidityAddedAt, r.StakingStartedAt, r.EligibleForClaim,
		r.LastClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert reward record %s: %w", r.PositionID, err)
	}
	return nil
}

// GetByPosition retrieves a single ledger.
func (s *RewardStore) GetByPosition(ctx context.Context, positionID string) (domain.RewardRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+rewardSelectCols+` FROM reward_records WHERE position_id = $1`,
		positionID)

	r, err := scanRewardRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RewardRecord{}, domain.ErrNotFound
		}
		return domain.RewardRecord{}, fmt.Errorf("postgres: get reward record %s: %w", positionID, err)
	}
	return r, nil
}

// ListByUser returns all of a user's ledgers.
func (s *RewardStore) ListByUser(ctx context.Context, userID string) ([]domain.RewardRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+rewardSelectCols+` FROM reward_records
		 WHERE user_id = $1 ORDER BY liquidity_added_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reward records for %s: %w", userID, err)
	}
	defer rows.Close()

	var records []domain.RewardRecord
	for rows.Next() {
		r, err := scanRewardRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan reward records for %s: %w", userID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpdateAccrual writes a new daily rate and accumulated total. GREATEST keeps
// the accumulated column monotonic even if a stale tick writes late.
func (s *RewardStore) UpdateAccrual(ctx context.Context, positionID string, daily, accumulated decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reward_records SET
			daily_reward = $2,
			accumulated  = GREATEST(accumulated, $3),
			updated_at   = NOW()
		WHERE position_id = $1`,
		positionID, daily, accumulated)
	if err != nil {
		return fmt.Errorf("postgres: update accrual for %s: %w", positionID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyClaim advances the claimed column, stamping the claim time. The WHERE
// clause refuses to push claimed past accumulated.
func (s *RewardStore) ApplyClaim(ctx context.Context, positionID string, newClaimed decimal.Decimal, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reward_records SET
			claimed         = $2,
			last_claimed_at = $3,
			updated_at      = NOW()
		WHERE position_id = $1 AND $2 <= accumulated`,
		positionID, newClaimed, at)
	if err != nil {
		return fmt.Errorf("postgres: apply claim to %s: %w", positionID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing ledger from an over-claim.
		if _, getErr := s.GetByPosition(ctx, positionID); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrAmountExceedsLimit
	}
	return nil
}

// SetEligible flips the claim-eligibility flag.
func (s *RewardStore) SetEligible(ctx context.Context, positionID string, eligible bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reward_records SET eligible_for_claim = $2, updated_at = NOW()
		 WHERE position_id = $1`,
		positionID, eligible)
	if err != nil {
		return fmt.Errorf("postgres: set reward record %s eligible=%t: %w", positionID, eligible, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HasClaimed reports whether any of the user's ledgers carries a claim stamp.
func (s *RewardStore) HasClaimed(ctx context.Context, userID string) (bool, error) {
	var claimed bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM reward_records
			WHERE user_id = $1 AND last_claimed_at IS NOT NULL
		)`, userID).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("postgres: has claimed %s: %w", userID, err)
	}
	return claimed, nil
}

// EarliestLiquidityAddedAt returns the user's earliest liquidity timestamp.
func (s *RewardStore) EarliestLiquidityAddedAt(ctx context.Context, userID string) (time.Time, error) {
	var earliest time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT liquidity_added_at FROM reward_records
		 WHERE user_id = $1 ORDER BY liquidity_added_at LIMIT 1`,
		userID).Scan(&earliest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("postgres: earliest liquidity for %s: %w", userID, err)
	}
	return earliest, nil
}
