package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/domain"
)

const (
	// claimLockTTL bounds the per-user exclusive section around claim
	// authorization. The on-chain nonce is the final race guard; this lock
	// only prevents redundant concurrent signing work.
	claimLockTTL = 30 * time.Second

	// authorizationWindow is how long a signed payload is advertised as
	// usable before the caller should request a fresh one.
	authorizationWindow = time.Hour
)

// ClaimService converts raw accrual into claimable amounts (honoring the
// first-claim lock), authorizes claims with a contract-verifiable signature,
// and settles confirmed claims back into the reward ledgers.
type ClaimService struct {
	rewards  domain.RewardStore
	settings *SettingsService
	contract domain.RewardContract
	signer   domain.ClaimSigner // nil when no signing key is configured
	audits   domain.ClaimAuditStore
	locks    domain.LockManager
	bus      domain.SignalBus // optional
	decimals int32
	logger   *slog.Logger
}

// NewClaimService creates a ClaimService. signer may be nil, in which case
// Authorize fails with ErrSignerUnavailable while every read path keeps
// working. tokenDecimals is the reward token's on-chain decimal count.
func NewClaimService(
	rewards domain.RewardStore,
	settings *SettingsService,
	contract domain.RewardContract,
	signer domain.ClaimSigner,
	audits domain.ClaimAuditStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	tokenDecimals int,
	logger *slog.Logger,
) *ClaimService {
	return &ClaimService{
		rewards:  rewards,
		settings: settings,
		contract: contract,
		signer:   signer,
		audits:   audits,
		locks:    locks,
		bus:      bus,
		decimals: int32(tokenDecimals),
		logger:   logger.With(slog.String("component", "claims")),
	}
}

// Summary computes the user's claim state: lock phase, claimable total, and
// countdown while locked. The lock applies only to the historically first
// claim, measured from the earliest liquidity_added_at across all the user's
// ledgers; a user who has claimed before is immediately unlocked.
func (s *ClaimService) Summary(ctx context.Context, userID string) (domain.ClaimableSummary, error) {
	now := time.Now().UTC()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.ClaimableSummary{}, err
	}

	records, err := s.rewards.ListByUser(ctx, userID)
	if err != nil {
		return domain.ClaimableSummary{}, fmt.Errorf("claims: list rewards for %s: %w", userID, err)
	}

	summary := domain.ClaimableSummary{
		UserID:      userID,
		Claimable:   decimal.Zero,
		Accumulated: decimal.Zero,
		Claimed:     decimal.Zero,
	}
	for _, r := range records {
		summary.Accumulated = summary.Accumulated.Add(r.Accumulated)
		summary.Claimed = summary.Claimed.Add(r.Claimed)
	}

	state, lockExpiry, err := s.lockState(ctx, userID, settings, now)
	if err != nil {
		return domain.ClaimableSummary{}, err
	}
	summary.State = state

	if state == domain.LockStateLocked {
		summary.LockExpiresAt = &lockExpiry
		summary.DaysRemaining = daysUntil(now, lockExpiry)
		return summary, nil
	}

	for _, r := range records {
		if !r.EligibleForClaim {
			continue
		}
		summary.Claimable = summary.Claimable.Add(r.Unclaimed())
	}
	return summary, nil
}

// lockState resolves the per-user claim lock state machine.
func (s *ClaimService) lockState(ctx context.Context, userID string, settings domain.ProgramSettings, now time.Time) (domain.LockState, time.Time, error) {
	claimed, err := s.rewards.HasClaimed(ctx, userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("claims: has claimed %s: %w", userID, err)
	}
	if claimed {
		// Subsequent claims carry no lock.
		return domain.LockStateUnlockedReturning, time.Time{}, nil
	}

	earliest, err := s.rewards.EarliestLiquidityAddedAt(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No ledgers yet: nothing to lock, nothing to claim.
			return domain.LockStateUnlockedFirstClaim, time.Time{}, nil
		}
		return "", time.Time{}, fmt.Errorf("claims: earliest liquidity for %s: %w", userID, err)
	}

	lockExpiry := earliest.Add(time.Duration(settings.LockPeriodDays) * 24 * time.Hour)
	if now.Before(lockExpiry) {
		return domain.LockStateLocked, lockExpiry, nil
	}
	return domain.LockStateUnlockedFirstClaim, lockExpiry, nil
}

// Authorize produces a signed claim payload for the user. When amount is nil
// the full claimable balance is used. The call is serialized per user
// address; racing callers get ErrLockHeld and should retry after the winner
// finishes.
func (s *ClaimService) Authorize(ctx context.Context, userID, userAddress string, amount *decimal.Decimal) (domain.ClaimAuthorization, error) {
	if s.signer == nil {
		return domain.ClaimAuthorization{}, domain.ErrSignerUnavailable
	}

	unlock, err := s.locks.Acquire(ctx, "claim:"+userAddress, claimLockTTL)
	if err != nil {
		return domain.ClaimAuthorization{}, err
	}
	defer unlock()

	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return domain.ClaimAuthorization{}, err
	}
	if summary.State == domain.LockStateLocked {
		return domain.ClaimAuthorization{}, fmt.Errorf("%d day(s) remaining: %w", summary.DaysRemaining, domain.ErrLockActive)
	}
	if !summary.Claimable.IsPositive() {
		return domain.ClaimAuthorization{}, domain.ErrNoClaimableRewards
	}

	claimAmount := summary.Claimable
	if amount != nil {
		if !amount.IsPositive() {
			return domain.ClaimAuthorization{}, domain.ErrNoClaimableRewards
		}
		if amount.GreaterThan(summary.Claimable) {
			return domain.ClaimAuthorization{}, fmt.Errorf("requested %s exceeds claimable %s: %w",
				amount, summary.Claimable, domain.ErrAmountExceedsLimit)
		}
		claimAmount = *amount
	}

	// The nonce must be fetched fresh on every attempt: it advances with
	// each successful on-chain claim and is not cacheable across retries.
	nonce, err := s.contract.Nonce(ctx, userAddress)
	if err != nil {
		return domain.ClaimAuthorization{}, err
	}
	maxClaim, err := s.contract.AbsoluteMaxClaim(ctx)
	if err != nil {
		return domain.ClaimAuthorization{}, err
	}

	amountWei := claimAmount.Shift(s.decimals).Truncate(0).BigInt()
	if amountWei.Cmp(maxClaim) > 0 {
		return domain.ClaimAuthorization{}, fmt.Errorf("amount %s wei over contract cap %s: %w",
			amountWei, maxClaim, domain.ErrAmountExceedsLimit)
	}

	signature, hash, err := s.signer.SignClaim(userAddress, amountWei, nonce)
	if err != nil {
		return domain.ClaimAuthorization{}, fmt.Errorf("claims: sign: %w", err)
	}

	now := time.Now().UTC()
	audit := domain.ClaimAudit{
		ID:          uuid.New().String(),
		UserID:      userID,
		UserAddress: userAddress,
		Amount:      claimAmount,
		Nonce:       nonce,
		Signature:   signature,
		Status:      domain.ClaimAuthorized,
		CreatedAt:   now,
	}
	if err := s.audits.Create(ctx, audit); err != nil {
		return domain.ClaimAuthorization{}, fmt.Errorf("claims: record audit: %w", err)
	}

	s.logger.InfoContext(ctx, "claim authorized",
		slog.String("user", userID),
		slog.String("address", userAddress),
		slog.String("amount", claimAmount.String()),
		slog.Uint64("nonce", nonce),
	)

	return domain.ClaimAuthorization{
		AuditID:     audit.ID,
		UserAddress: userAddress,
		Amount:      claimAmount,
		AmountWei:   amountWei,
		Nonce:       nonce,
		Deadline:    now.Add(authorizationWindow),
		Signature:   signature,
		Hash:        hash,
	}, nil
}

// Confirm settles a claim after its on-chain transaction succeeded. Only now
// does claimed advance, distributed across the user's eligible ledgers
// oldest-first, never past each ledger's accumulated total.
func (s *ClaimService) Confirm(ctx context.Context, auditID, txHash string) error {
	audit, err := s.audits.GetByID(ctx, auditID)
	if err != nil {
		return fmt.Errorf("claims: load audit %s: %w", auditID, err)
	}
	if audit.Status != domain.ClaimAuthorized {
		return fmt.Errorf("claims: audit %s is %s: %w", auditID, audit.Status, domain.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	if err := s.audits.MarkConfirmed(ctx, auditID, txHash, now); err != nil {
		return fmt.Errorf("claims: confirm audit %s: %w", auditID, err)
	}

	records, err := s.rewards.ListByUser(ctx, audit.UserID)
	if err != nil {
		return fmt.Errorf("claims: list rewards for %s: %w", audit.UserID, err)
	}
	// Oldest ledgers drain first.
	sortRecordsByLiquidityAdded(records)

	remaining := audit.Amount
	for _, r := range records {
		if !remaining.IsPositive() {
			break
		}
		if !r.EligibleForClaim {
			continue
		}
		take := decimal.Min(r.Unclaimed(), remaining)
		if !take.IsPositive() {
			continue
		}
		if err := s.rewards.ApplyClaim(ctx, r.PositionID, r.Claimed.Add(take), now); err != nil {
			return fmt.Errorf("claims: apply claim to %s: %w", r.PositionID, err)
		}
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		// Should not happen while claimable is computed from the same
		// ledgers; loud log so a drifted ledger gets investigated.
		s.logger.ErrorContext(ctx, "confirmed claim exceeds ledger balance",
			slog.String("audit_id", auditID),
			slog.String("unsettled", remaining.String()),
		)
	}

	s.publish(ctx, domain.ChannelClaims, map[string]any{
		"event":   "claim_confirmed",
		"auditId": auditID,
		"userId":  audit.UserID,
		"amount":  audit.Amount.String(),
		"txHash":  txHash,
	})
	return nil
}

// Reject records a failed or abandoned claim. Ledgers are untouched: a
// failed claim grants no partial credit.
func (s *ClaimService) Reject(ctx context.Context, auditID, reason string) error {
	audit, err := s.audits.GetByID(ctx, auditID)
	if err != nil {
		return fmt.Errorf("claims: load audit %s: %w", auditID, err)
	}
	if audit.Status != domain.ClaimAuthorized {
		return fmt.Errorf("claims: audit %s is %s: %w", auditID, audit.Status, domain.ErrAlreadyExists)
	}
	if err := s.audits.MarkRejected(ctx, auditID, reason); err != nil {
		return fmt.Errorf("claims: reject audit %s: %w", auditID, err)
	}

	s.publish(ctx, domain.ChannelClaims, map[string]any{
		"event":   "claim_rejected",
		"auditId": auditID,
		"userId":  audit.UserID,
		"reason":  reason,
	})
	return nil
}

// SignerAddress returns the trusted signer address, or empty when claim
// authorization is disabled.
func (s *ClaimService) SignerAddress() string {
	if s.signer == nil {
		return ""
	}
	return s.signer.Address()
}

func (s *ClaimService) publish(ctx context.Context, channel string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// daysUntil is the lock countdown: whole days, rounded up.
func daysUntil(now, expiry time.Time) int {
	if !now.Before(expiry) {
		return 0
	}
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

func sortRecordsByLiquidityAdded(records []domain.RewardRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].LiquidityAddedAt.Before(records[j].LiquidityAddedAt)
	})
}
