package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL. The
// tx_hash unique index is what makes transaction reporting exactly-once:
// concurrent reports of the same hash race on the insert and the loser gets
// ErrDuplicateTransaction.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

var _ domain.TransactionStore = (*TransactionStore)(nil)

const transactionSelectCols = `id, tx_hash, session_id, user_id, user_address,
	tx_type, status, block_number, gas_used, created_at, verified_at`

func scanTransactionRow(row pgx.Row) (domain.AppTransaction, error) {
	var tx domain.AppTransaction
	var txType, status string

	err := row.Scan(
		&tx.ID, &tx.Hash, &tx.SessionID, &tx.UserID, &tx.UserAddress,
		&txType, &status, &tx.BlockNumber, &tx.GasUsed,
		&tx.CreatedAt, &tx.VerifiedAt,
	)
	if err != nil {
		return domain.AppTransaction{}, err
	}
	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.VerificationStatus(status)
	return tx, nil
}

// Create inserts a pending transaction report.
func (s *TransactionStore) Create(ctx context.Context, tx domain.AppTransaction) error {
	const query = `
		INSERT INTO app_transactions (
			id, tx_hash, session_id, user_id, user_address,
			tx_type, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		tx.ID, tx.Hash, tx.SessionID, tx.UserID, tx.UserAddress,
		string(tx.Type), string(tx.Status), tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTransaction
		}
		return fmt.Errorf("postgres: create transaction %s: %w", tx.Hash, err)
	}
	return nil
}

// GetByID retrieves a transaction by its internal id.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.AppTransaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionSelectCols+` FROM app_transactions WHERE id = $1`, id)

	tx, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AppTransaction{}, domain.ErrNotFound
		}
		return domain.AppTransaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return tx, nil
}

// GetByHash retrieves a transaction by its chain hash.
func (s *TransactionStore) GetByHash(ctx context.Context, hash string) (domain.AppTransaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionSelectCols+` FROM app_transactions WHERE tx_hash = $1`, hash)

	tx, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AppTransaction{}, domain.ErrNotFound
		}
		return domain.AppTransaction{}, fmt.Errorf("postgres: get transaction by hash %s: %w", hash, err)
	}
	return tx, nil
}

// MarkVerified transitions pending -> verified with chain metadata. The
// status predicate makes verified/rejected terminal at the database level.
func (s *TransactionStore) MarkVerified(ctx context.Context, id string, receipt domain.ChainReceipt, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE app_transactions SET
			status       = 'verified',
			block_number = $2,
			gas_used     = $3,
			verified_at  = $4
		WHERE id = $1 AND status = 'pending'`,
		id, receipt.BlockNumber, receipt.GasUsed, at)
	if err != nil {
		return fmt.Errorf("postgres: verify transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkRejected transitions pending -> rejected.
func (s *TransactionStore) MarkRejected(ctx context.Context, id string, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE app_transactions SET
			status        = 'rejected',
			reject_reason = $2
		WHERE id = $1 AND status = 'pending'`,
		id, reason)
	if err != nil {
		return fmt.Errorf("postgres: reject transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
