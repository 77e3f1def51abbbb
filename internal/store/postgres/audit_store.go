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

// AuditStore implements domain.ClaimAuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

var _ domain.ClaimAuditStore = (*AuditStore)(nil)

const auditSelectCols = `id, user_id, user_address, amount, nonce, signature,
	status, tx_hash, created_at, confirmed_at, archived_at`

func scanAuditRow(row pgx.Row) (domain.ClaimAudit, error) {
	var a domain.ClaimAudit
	var status string
	var nonce int64

	err := row.Scan(
		&a.ID, &a.UserID, &a.UserAddress, &a.Amount, &nonce, &a.Signature,
		&status, &a.TxHash, &a.CreatedAt, &a.ConfirmedAt, &a.ArchivedAt,
	)
	if err != nil {
		return domain.ClaimAudit{}, err
	}
	a.Nonce = uint64(nonce)
	a.Status = domain.ClaimStatus(status)
	return a, nil
}

// Create inserts a claim audit row.
func (s *AuditStore) Create(ctx context.Context, a domain.ClaimAudit) error {
	const query = `
		INSERT INTO claim_audits (
			id, user_id, user_address, amount, nonce, signature,
			status, tx_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.UserID, a.UserAddress, a.Amount, int64(a.Nonce), a.Signature,
		string(a.Status), a.TxHash, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create claim audit %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves a claim audit row.
func (s *AuditStore) GetByID(ctx context.Context, id string) (domain.ClaimAudit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auditSelectCols+` FROM claim_audits WHERE id = $1`, id)

	a, err := scanAuditRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ClaimAudit{}, domain.ErrNotFound
		}
		return domain.ClaimAudit{}, fmt.Errorf("postgres: get claim audit %s: %w", id, err)
	}
	return a, nil
}

// MarkConfirmed transitions authorized -> confirmed with the settlement hash.
func (s *AuditStore) MarkConfirmed(ctx context.Context, id string, txHash string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE claim_audits SET
			status       = 'confirmed',
			tx_hash      = $2,
			confirmed_at = $3
		WHERE id = $1 AND status = 'authorized'`,
		id, txHash, at)
	if err != nil {
		return fmt.Errorf("postgres: confirm claim audit %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkRejected transitions authorized -> rejected.
func (s *AuditStore) MarkRejected(ctx context.Context, id string, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE claim_audits SET
			status        = 'rejected',
			reject_reason = $2
		WHERE id = $1 AND status = 'authorized'`,
		id, reason)
	if err != nil {
		return fmt.Errorf("postgres: reject claim audit %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUnarchivedBefore returns confirmed rows older than the cutoff that the
// cold-storage archiver has not exported yet.
func (s *AuditStore) ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ClaimAudit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditSelectCols+` FROM claim_audits
		 WHERE status = 'confirmed' AND archived_at IS NULL AND created_at < $1
		 ORDER BY created_at LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived audits: %w", err)
	}
	defer rows.Close()

	var audits []domain.ClaimAudit
	for rows.Next() {
		a, err := scanAuditRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan unarchived audits: %w", err)
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// MarkArchived stamps the given rows as exported.
func (s *AuditStore) MarkArchived(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE claim_audits SET archived_at = $2 WHERE id = ANY($1)`,
		ids, at)
	if err != nil {
		return fmt.Errorf("postgres: mark audits archived: %w", err)
	}
	return nil
}
