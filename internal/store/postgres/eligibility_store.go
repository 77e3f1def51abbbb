package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// EligibilityStore implements domain.EligibilityStore using PostgreSQL.
type EligibilityStore struct {
	pool *pgxpool.Pool
}

// NewEligibilityStore creates an EligibilityStore backed by the given pool.
func NewEligibilityStore(pool *pgxpool.Pool) *EligibilityStore {
	return &EligibilityStore{pool: pool}
}

var _ domain.EligibilityStore = (*EligibilityStore)(nil)

// Create inserts an eligibility record. One record per position: a second
// insert fails with ErrAlreadyExists.
func (s *EligibilityStore) Create(ctx context.Context, e domain.PositionEligibility) error {
	const query = `
		INSERT INTO position_eligibility (
			position_id, nft_token_id, app_transaction_id,
			eligible, reason, created_through_app, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		e.PositionID, e.NFTTokenID, e.AppTransactionID,
		e.Eligible, e.Reason, e.CreatedThroughApp, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create eligibility for %s: %w", e.PositionID, err)
	}
	return nil
}

// GetByPosition retrieves a position's eligibility record.
func (s *EligibilityStore) GetByPosition(ctx context.Context, positionID string) (domain.PositionEligibility, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT position_id, nft_token_id, app_transaction_id,
		       eligible, reason, created_through_app, created_at
		FROM position_eligibility WHERE position_id = $1`, positionID)

	var e domain.PositionEligibility
	err := row.Scan(
		&e.PositionID, &e.NFTTokenID, &e.AppTransactionID,
		&e.Eligible, &e.Reason, &e.CreatedThroughApp, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PositionEligibility{}, domain.ErrNotFound
		}
		return domain.PositionEligibility{}, fmt.Errorf("postgres: get eligibility for %s: %w", positionID, err)
	}
	return e, nil
}
