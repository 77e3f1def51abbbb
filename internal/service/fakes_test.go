package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// In-memory store fakes shared by the service tests.

type fakePositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newFakePositionStore(positions ...domain.Position) *fakePositionStore {
	s := &fakePositionStore{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		s.positions[p.ID] = p
	}
	return s
}

func (s *fakePositionStore) Create(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.positions[p.ID] = p
	return nil
}

func (s *fakePositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakePositionStore) GetActive(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePositionStore) ListByUser(_ context.Context, userID string) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePositionStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = active
	s.positions[id] = p
	return nil
}

type fakeRewardStore struct {
	mu      sync.Mutex
	records map[string]domain.RewardRecord
}

func newFakeRewardStore(records ...domain.RewardRecord) *fakeRewardStore {
	s := &fakeRewardStore{records: make(map[string]domain.RewardRecord)}
	for _, r := range records {
		s.records[r.PositionID] = r
	}
	return s
}

func (s *fakeRewardStore) Upsert(_ context.Context, r domain.RewardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.PositionID] = r
	return nil
}

func (s *fakeRewardStore) GetByPosition(_ context.Context, positionID string) (domain.RewardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[positionID]
	if !ok {
		return domain.RewardRecord{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *fakeRewardStore) ListByUser(_ context.Context, userID string) ([]domain.RewardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RewardRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRewardStore) UpdateAccrual(_ context.Context, positionID string, daily, accumulated decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[positionID]
	if !ok {
		return domain.ErrNotFound
	}
	r.DailyReward = daily
	r.Accumulated = accumulated
	r.UpdatedAt = time.Now()
	s.records[positionID] = r
	return nil
}

func (s *fakeRewardStore) ApplyClaim(_ context.Context, positionID string, newClaimed decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[positionID]
	if !ok {
		return domain.ErrNotFound
	}
	if newClaimed.GreaterThan(r.Accumulated) {
		return domain.ErrAmountExceedsLimit
	}
	r.Claimed = newClaimed
	r.LastClaimedAt = &at
	s.records[positionID] = r
	return nil
}

func (s *fakeRewardStore) SetEligible(_ context.Context, positionID string, eligible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[positionID]
	if !ok {
		return domain.ErrNotFound
	}
	r.EligibleForClaim = eligible
	s.records[positionID] = r
	return nil
}

func (s *fakeRewardStore) HasClaimed(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.UserID == userID && r.LastClaimedAt != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRewardStore) EarliestLiquidityAddedAt(_ context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest time.Time
	found := false
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if !found || r.LiquidityAddedAt.Before(earliest) {
			earliest = r.LiquidityAddedAt
			found = true
		}
	}
	if !found {
		return time.Time{}, domain.ErrNotFound
	}
	return earliest, nil
}

type fakeTransactionStore struct {
	mu     sync.Mutex
	byID   map[string]domain.AppTransaction
	byHash map[string]string
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{
		byID:   make(map[string]domain.AppTransaction),
		byHash: make(map[string]string),
	}
}

func (s *fakeTransactionStore) Create(_ context.Context, tx domain.AppTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[tx.Hash]; ok {
		return domain.ErrDuplicateTransaction
	}
	s.byID[tx.ID] = tx
	s.byHash[tx.Hash] = tx.ID
	return nil
}

func (s *fakeTransactionStore) GetByID(_ context.Context, id string) (domain.AppTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return domain.AppTransaction{}, domain.ErrNotFound
	}
	return tx, nil
}

func (s *fakeTransactionStore) GetByHash(_ context.Context, hash string) (domain.AppTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[hash]
	if !ok {
		return domain.AppTransaction{}, domain.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *fakeTransactionStore) MarkVerified(_ context.Context, id string, receipt domain.ChainReceipt, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	tx.Status = domain.VerificationVerified
	tx.BlockNumber = receipt.BlockNumber
	tx.GasUsed = receipt.GasUsed
	tx.VerifiedAt = &at
	s.byID[id] = tx
	return nil
}

func (s *fakeTransactionStore) MarkRejected(_ context.Context, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	tx.Status = domain.VerificationRejected
	s.byID[id] = tx
	return nil
}

type fakeEligibilityStore struct {
	mu      sync.Mutex
	records map[string]domain.PositionEligibility
}

func newFakeEligibilityStore() *fakeEligibilityStore {
	return &fakeEligibilityStore{records: make(map[string]domain.PositionEligibility)}
}

func (s *fakeEligibilityStore) Create(_ context.Context, e domain.PositionEligibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.PositionID]; ok {
		return domain.ErrAlreadyExists
	}
	s.records[e.PositionID] = e
	return nil
}

func (s *fakeEligibilityStore) GetByPosition(_ context.Context, positionID string) (domain.PositionEligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[positionID]
	if !ok {
		return domain.PositionEligibility{}, domain.ErrNotFound
	}
	return e, nil
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings *domain.ProgramSettings
}

func (s *fakeSettingsStore) Get(_ context.Context) (domain.ProgramSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return domain.ProgramSettings{}, domain.ErrConfigurationMissing
	}
	return *s.settings, nil
}

func (s *fakeSettingsStore) Put(_ context.Context, settings domain.ProgramSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

type fakeAuditStore struct {
	mu     sync.Mutex
	audits map[string]domain.ClaimAudit
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{audits: make(map[string]domain.ClaimAudit)}
}

func (s *fakeAuditStore) Create(_ context.Context, a domain.ClaimAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[a.ID] = a
	return nil
}

func (s *fakeAuditStore) GetByID(_ context.Context, id string) (domain.ClaimAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok {
		return domain.ClaimAudit{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeAuditStore) MarkConfirmed(_ context.Context, id string, txHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = domain.ClaimConfirmed
	a.TxHash = txHash
	a.ConfirmedAt = &at
	s.audits[id] = a
	return nil
}

func (s *fakeAuditStore) MarkRejected(_ context.Context, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = domain.ClaimRejected
	s.audits[id] = a
	return nil
}

func (s *fakeAuditStore) ListUnarchivedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.ClaimAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ClaimAudit
	for _, a := range s.audits {
		if a.Status == domain.ClaimConfirmed && a.ArchivedAt == nil && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeAuditStore) MarkArchived(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		a, ok := s.audits[id]
		if !ok {
			continue
		}
		a.ArchivedAt = &at
		s.audits[id] = a
	}
	return nil
}

// fakeLockManager serializes like the redis lock: a held key refuses a
// second acquisition until released.
type fakeLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (l *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	released := false
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !released {
			released = true
			delete(l.held, key)
		}
	}, nil
}

// fakeContract serves nonce/cap reads and lets tests advance the nonce the
// way a successful on-chain claim would.
type fakeContract struct {
	mu       sync.Mutex
	nonce    uint64
	maxClaim *big.Int
	claimed  *big.Int
	err      error
}

func (c *fakeContract) Nonce(_ context.Context, _ string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, c.err
}

func (c *fakeContract) AbsoluteMaxClaim(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxClaim, c.err
}

func (c *fakeContract) ClaimedAmount(_ context.Context, _ string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimed, c.err
}

func (c *fakeContract) advanceNonce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce++
}
