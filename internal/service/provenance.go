package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// TxReport is the payload a session submits to register an app-originated
// transaction.
type TxReport struct {
	Hash        string                 `json:"transactionHash"`
	UserID      string                 `json:"userId"`
	UserAddress string                 `json:"userAddress"`
	Type        domain.TransactionType `json:"transactionType"`
}

// ProvenanceService is the app-transaction provenance gate: it issues
// time-boxed sessions, records transactions exactly once, verifies them
// against supplied chain receipts, and creates position eligibility records.
// A position is never reward-eligible without a verified app transaction;
// the manual registration path exists for externally created positions but
// still produces an explicit eligibility record.
type ProvenanceService struct {
	sessions     domain.SessionStore
	transactions domain.TransactionStore
	eligibility  domain.EligibilityStore
	rewards      domain.RewardStore
	positions    domain.PositionStore
	bus          domain.SignalBus // optional
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewProvenanceService creates a ProvenanceService.
func NewProvenanceService(
	sessions domain.SessionStore,
	transactions domain.TransactionStore,
	eligibility domain.EligibilityStore,
	rewards domain.RewardStore,
	positions domain.PositionStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ProvenanceService {
	return &ProvenanceService{
		sessions:     sessions,
		transactions: transactions,
		eligibility:  eligibility,
		rewards:      rewards,
		positions:    positions,
		bus:          bus,
		sessionTTL:   domain.SessionTTL,
		logger:       logger.With(slog.String("component", "provenance")),
	}
}

// WithSessionTTL overrides the default session lifetime. ttl <= 0 keeps the
// default.
func (s *ProvenanceService) WithSessionTTL(ttl time.Duration) *ProvenanceService {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
	return s
}

// CreateSession issues a new session bound to the user and wallet address.
func (s *ProvenanceService) CreateSession(ctx context.Context, userID, userAddress string) (domain.AppSession, error) {
	if userID == "" || userAddress == "" {
		return domain.AppSession{}, errors.New("provenance: user id and address are required")
	}

	id, err := newSessionID()
	if err != nil {
		return domain.AppSession{}, fmt.Errorf("provenance: generate session id: %w", err)
	}

	now := time.Now().UTC()
	sess := domain.AppSession{
		ID:          id,
		UserID:      userID,
		UserAddress: userAddress,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
		Active:      true,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return domain.AppSession{}, fmt.Errorf("provenance: store session: %w", err)
	}

	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", id),
		slog.String("user", userID),
	)
	return sess, nil
}

// ValidateSession returns the session when it is live, or ErrInvalidSession
// when it is missing, expired, or invalidated.
func (s *ProvenanceService) ValidateSession(ctx context.Context, sessionID string) (domain.AppSession, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AppSession{}, domain.ErrInvalidSession
		}
		return domain.AppSession{}, fmt.Errorf("provenance: load session: %w", err)
	}
	if !sess.Valid(time.Now().UTC()) {
		return domain.AppSession{}, domain.ErrInvalidSession
	}
	return sess, nil
}

// InvalidateSession explicitly ends a session.
func (s *ProvenanceService) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Invalidate(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidSession
		}
		return fmt.Errorf("provenance: invalidate session: %w", err)
	}
	return nil
}

// RecordTransaction registers a transaction reported through a session:
//  1. the session must be live,
//  2. the report's identity must match the session's bound identity
//     (addresses compared case-insensitively),
//  3. the hash must not have been recorded before.
//
// The transaction lands as pending; only VerifyTransaction promotes it.
func (s *ProvenanceService) RecordTransaction(ctx context.Context, sessionID string, report TxReport) (domain.AppTransaction, error) {
	sess, err := s.ValidateSession(ctx, sessionID)
	if err != nil {
		return domain.AppTransaction{}, err
	}

	if report.UserID != sess.UserID || !strings.EqualFold(report.UserAddress, sess.UserAddress) {
		return domain.AppTransaction{}, domain.ErrUserMismatch
	}
	if report.Hash == "" {
		return domain.AppTransaction{}, errors.New("provenance: transaction hash is required")
	}

	if _, err := s.transactions.GetByHash(ctx, report.Hash); err == nil {
		return domain.AppTransaction{}, domain.ErrDuplicateTransaction
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.AppTransaction{}, fmt.Errorf("provenance: check hash: %w", err)
	}

	tx := domain.AppTransaction{
		ID:          uuid.New().String(),
		Hash:        report.Hash,
		SessionID:   sessionID,
		UserID:      sess.UserID,
		UserAddress: sess.UserAddress,
		Type:        report.Type,
		Status:      domain.VerificationPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		// A concurrent report of the same hash loses on the unique index.
		if errors.Is(err, domain.ErrDuplicateTransaction) || errors.Is(err, domain.ErrAlreadyExists) {
			return domain.AppTransaction{}, domain.ErrDuplicateTransaction
		}
		return domain.AppTransaction{}, fmt.Errorf("provenance: store transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction recorded",
		slog.String("tx_hash", report.Hash),
		slog.String("user", sess.UserID),
		slog.String("type", string(report.Type)),
	)
	return tx, nil
}

// VerifyTransaction applies an external chain receipt to a pending
// transaction. A successful receipt moves it to verified; a failed one to
// rejected. Verified and rejected are terminal.
func (s *ProvenanceService) VerifyTransaction(ctx context.Context, transactionID string, receipt domain.ChainReceipt) (domain.AppTransaction, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return domain.AppTransaction{}, fmt.Errorf("provenance: load transaction %s: %w", transactionID, err)
	}
	if tx.Status != domain.VerificationPending {
		return domain.AppTransaction{}, fmt.Errorf("provenance: transaction %s already %s: %w",
			transactionID, tx.Status, domain.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	if !receipt.Success {
		if err := s.transactions.MarkRejected(ctx, transactionID, "on-chain execution failed"); err != nil {
			return domain.AppTransaction{}, fmt.Errorf("provenance: reject transaction %s: %w", transactionID, err)
		}
		tx.Status = domain.VerificationRejected
		return tx, nil
	}

	if err := s.transactions.MarkVerified(ctx, transactionID, receipt, now); err != nil {
		return domain.AppTransaction{}, fmt.Errorf("provenance: verify transaction %s: %w", transactionID, err)
	}
	tx.Status = domain.VerificationVerified
	tx.BlockNumber = receipt.BlockNumber
	tx.GasUsed = receipt.GasUsed
	tx.VerifiedAt = &now

	s.publish(ctx, map[string]any{
		"event":  "transaction_verified",
		"txHash": tx.Hash,
		"userId": tx.UserID,
		"block":  receipt.BlockNumber,
	})
	return tx, nil
}

// RegisterEligibility marks a position reward-eligible, backed by a verified
// app transaction. This is the only path to eligibility for app-created
// positions. It also opens the position's reward ledger if none exists yet.
func (s *ProvenanceService) RegisterEligibility(ctx context.Context, positionID, nftTokenID, transactionID string) (domain.PositionEligibility, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return domain.PositionEligibility{}, fmt.Errorf("provenance: load transaction %s: %w", transactionID, err)
	}
	if tx.Status != domain.VerificationVerified {
		return domain.PositionEligibility{}, fmt.Errorf("provenance: transaction %s is %s, eligibility requires verified", transactionID, tx.Status)
	}

	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.PositionEligibility{}, fmt.Errorf("provenance: load position %s: %w", positionID, err)
	}

	elig := domain.PositionEligibility{
		PositionID:        positionID,
		NFTTokenID:        nftTokenID,
		AppTransactionID:  transactionID,
		Eligible:          true,
		Reason:            "verified app transaction",
		CreatedThroughApp: true,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.eligibility.Create(ctx, elig); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.PositionEligibility{}, domain.ErrAlreadyExists
		}
		return domain.PositionEligibility{}, fmt.Errorf("provenance: store eligibility: %w", err)
	}

	if err := s.openLedger(ctx, pos); err != nil {
		return domain.PositionEligibility{}, err
	}

	s.publish(ctx, map[string]any{
		"event":      "position_eligible",
		"positionId": positionID,
		"userId":     pos.UserID,
	})
	return elig, nil
}

// RegisterManualPosition is the escape hatch for positions created outside
// the app (e.g. directly against the pool contract). The position and its
// eligibility record are marked createdThroughApp=false so the provenance
// audit trail stays honest.
func (s *ProvenanceService) RegisterManualPosition(ctx context.Context, pos domain.Position, nftTokenID, reason string) (domain.PositionEligibility, error) {
	if reason == "" {
		return domain.PositionEligibility{}, errors.New("provenance: manual registration requires a reason")
	}

	pos.CreatedThroughApp = false
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = time.Now().UTC()
	}
	if err := s.positions.Create(ctx, pos); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return domain.PositionEligibility{}, fmt.Errorf("provenance: store position: %w", err)
	}

	elig := domain.PositionEligibility{
		PositionID:        pos.ID,
		NFTTokenID:        nftTokenID,
		Eligible:          true,
		Reason:            "manual registration: " + reason,
		CreatedThroughApp: false,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.eligibility.Create(ctx, elig); err != nil {
		return domain.PositionEligibility{}, fmt.Errorf("provenance: store eligibility: %w", err)
	}

	if err := s.openLedger(ctx, pos); err != nil {
		return domain.PositionEligibility{}, err
	}

	s.logger.InfoContext(ctx, "manual position registered",
		slog.String("position_id", pos.ID),
		slog.String("user", pos.UserID),
		slog.String("reason", reason),
	)
	return elig, nil
}

// SweepSessions evicts expired sessions. Called by the pipeline on a timer.
func (s *ProvenanceService) SweepSessions(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("provenance: sweep sessions: %w", err)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "expired sessions evicted", slog.Int("count", n))
	}
	return n, nil
}

// openLedger creates the position's reward ledger if it does not exist and
// flags it claim-eligible.
func (s *ProvenanceService) openLedger(ctx context.Context, pos domain.Position) error {
	_, err := s.rewards.GetByPosition(ctx, pos.ID)
	switch {
	case err == nil:
		if err := s.rewards.SetEligible(ctx, pos.ID, true); err != nil {
			return fmt.Errorf("provenance: flag ledger eligible: %w", err)
		}
		return nil
	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		record := domain.RewardRecord{
			UserID:           pos.UserID,
			PositionID:       pos.ID,
			LiquidityAddedAt: pos.CreatedAt,
			StakingStartedAt: now,
			EligibleForClaim: true,
			UpdatedAt:        now,
		}
		if err := s.rewards.Upsert(ctx, record); err != nil {
			return fmt.Errorf("provenance: open ledger: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("provenance: load ledger: %w", err)
	}
}

func (s *ProvenanceService) publish(ctx context.Context, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelSessions, data); err != nil {
		s.logger.WarnContext(ctx, "publish event failed", slog.String("error", err.Error()))
	}
}

// newSessionID returns a 32-character random hex identifier.
func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
