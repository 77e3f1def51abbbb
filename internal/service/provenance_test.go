package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/session"
)

type provenanceFixture struct {
	svc          *ProvenanceService
	sessions     *session.MemoryStore
	transactions *fakeTransactionStore
	eligibility  *fakeEligibilityStore
	rewards      *fakeRewardStore
	positions    *fakePositionStore
}

func newProvenanceFixture(positions ...domain.Position) *provenanceFixture {
	f := &provenanceFixture{
		sessions:     session.NewMemoryStore(),
		transactions: newFakeTransactionStore(),
		eligibility:  newFakeEligibilityStore(),
		rewards:      newFakeRewardStore(),
		positions:    newFakePositionStore(positions...),
	}
	f.svc = NewProvenanceService(
		f.sessions, f.transactions, f.eligibility, f.rewards, f.positions, nil, testLogger())
	return f
}

func (f *provenanceFixture) session(t *testing.T) domain.AppSession {
	t.Helper()
	sess, err := f.svc.CreateSession(context.Background(), "u1", "0xAbC0000000000000000000000000000000000001")
	require.NoError(t, err)
	return sess
}

func TestSessionLifecycle(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)

	assert.Len(t, sess.ID, 32, "session id is 16 random bytes hex-encoded")
	assert.WithinDuration(t, sess.CreatedAt.Add(domain.SessionTTL), sess.ExpiresAt, time.Second)

	got, err := f.svc.ValidateSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)

	require.NoError(t, f.svc.InvalidateSession(context.Background(), sess.ID))
	_, err = f.svc.ValidateSession(context.Background(), sess.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestValidateSessionUnknownID(t *testing.T) {
	f := newProvenanceFixture()
	_, err := f.svc.ValidateSession(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestValidateSessionExpired(t *testing.T) {
	f := newProvenanceFixture()
	expired := domain.AppSession{
		ID:          "aaaabbbbccccddddeeeeffff00001111",
		UserID:      "u1",
		UserAddress: "0xAbC0000000000000000000000000000000000001",
		CreatedAt:   time.Now().UTC().Add(-25 * time.Hour),
		ExpiresAt:   time.Now().UTC().Add(-time.Hour),
		Active:      true,
	}
	require.NoError(t, f.sessions.Put(context.Background(), expired))

	_, err := f.svc.ValidateSession(context.Background(), expired.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
	assert.Zero(t, f.sessions.Len(), "expired session evicted on access")
}

func TestRecordTransaction(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)

	tx, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed01",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPending, tx.Status)
	assert.Equal(t, sess.ID, tx.SessionID)
	assert.NotEmpty(t, tx.ID)
}

func TestRecordTransactionAddressCaseInsensitive(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)

	_, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed02",
		UserID:      "u1",
		UserAddress: "0xABC0000000000000000000000000000000000001",
		Type:        domain.TxTypeAddLiquidity,
	})
	assert.NoError(t, err, "checksummed vs lowercased address is the same wallet")
}

func TestRecordTransactionIdentityMismatch(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)

	_, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed03",
		UserID:      "u2", // not the session's user
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	assert.ErrorIs(t, err, domain.ErrUserMismatch)

	_, err = f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed03",
		UserID:      "u1",
		UserAddress: "0xAbC0000000000000000000000000000000000002",
		Type:        domain.TxTypeAddLiquidity,
	})
	assert.ErrorIs(t, err, domain.ErrUserMismatch)
}

func TestRecordTransactionDuplicateHash(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)

	report := TxReport{
		Hash:        "0xfeed04",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	}
	_, err := f.svc.RecordTransaction(context.Background(), sess.ID, report)
	require.NoError(t, err)

	// Same hash again, even through a different session.
	other := f.session(t)
	_, err = f.svc.RecordTransaction(context.Background(), other.ID, report)
	assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)
}

func TestRecordTransactionRequiresLiveSession(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)
	require.NoError(t, f.svc.InvalidateSession(context.Background(), sess.ID))

	_, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed05",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestVerifyTransactionSuccess(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)
	tx, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed06",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	require.NoError(t, err)

	verified, err := f.svc.VerifyTransaction(context.Background(), tx.ID, domain.ChainReceipt{
		BlockNumber: 123456,
		GasUsed:     21000,
		Success:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, verified.Status)
	assert.Equal(t, int64(123456), verified.BlockNumber)
	require.NotNil(t, verified.VerifiedAt)

	// Terminal: a second receipt is refused.
	_, err = f.svc.VerifyTransaction(context.Background(), tx.ID, domain.ChainReceipt{Success: true})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestVerifyTransactionFailedReceipt(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)
	tx, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed07",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	require.NoError(t, err)

	rejected, err := f.svc.VerifyTransaction(context.Background(), tx.ID, domain.ChainReceipt{Success: false})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, rejected.Status)
}

func TestRegisterEligibility(t *testing.T) {
	now := time.Now().UTC()
	pos := position("p1", "u1", 1000, now.Add(-time.Hour))
	pos.CreatedThroughApp = true
	f := newProvenanceFixture(pos)

	sess := f.session(t)
	tx, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed08",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	require.NoError(t, err)

	// Pending transactions cannot back eligibility.
	_, err = f.svc.RegisterEligibility(context.Background(), "p1", "nft-42", tx.ID)
	assert.Error(t, err)

	_, err = f.svc.VerifyTransaction(context.Background(), tx.ID, domain.ChainReceipt{Success: true})
	require.NoError(t, err)

	elig, err := f.svc.RegisterEligibility(context.Background(), "p1", "nft-42", tx.ID)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
	assert.True(t, elig.CreatedThroughApp)
	assert.Equal(t, tx.ID, elig.AppTransactionID)

	// The reward ledger opened alongside, claim-eligible from day one.
	rec, err := f.rewards.GetByPosition(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, rec.EligibleForClaim)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, pos.CreatedAt, rec.LiquidityAddedAt)
	assert.True(t, rec.Accumulated.IsZero())

	// Eligibility is recorded once per position.
	_, err = f.svc.RegisterEligibility(context.Background(), "p1", "nft-42", tx.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestRegisterEligibilityUnknownPosition(t *testing.T) {
	f := newProvenanceFixture()
	sess := f.session(t)
	tx, err := f.svc.RecordTransaction(context.Background(), sess.ID, TxReport{
		Hash:        "0xfeed09",
		UserID:      "u1",
		UserAddress: sess.UserAddress,
		Type:        domain.TxTypeAddLiquidity,
	})
	require.NoError(t, err)
	_, err = f.svc.VerifyTransaction(context.Background(), tx.ID, domain.ChainReceipt{Success: true})
	require.NoError(t, err)

	_, err = f.svc.RegisterEligibility(context.Background(), "missing", "nft-1", tx.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegisterManualPosition(t *testing.T) {
	f := newProvenanceFixture()

	now := time.Now().UTC()
	pos := position("p9", "u9", 750, now.Add(-48*time.Hour))
	pos.CreatedThroughApp = true // the service must not trust this flag

	elig, err := f.svc.RegisterManualPosition(context.Background(), pos, "nft-9", "migrated from v1 pool")
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
	assert.False(t, elig.CreatedThroughApp, "manual path always records false")
	assert.Contains(t, elig.Reason, "migrated from v1 pool")

	stored, err := f.positions.GetByID(context.Background(), "p9")
	require.NoError(t, err)
	assert.False(t, stored.CreatedThroughApp)

	rec, err := f.rewards.GetByPosition(context.Background(), "p9")
	require.NoError(t, err)
	assert.True(t, rec.EligibleForClaim)

	// No reason, no registration.
	_, err = f.svc.RegisterManualPosition(context.Background(),
		position("p10", "u9", 10, now), "nft-10", "")
	assert.Error(t, err)
}

func TestOpenLedgerPreservesExistingAccrual(t *testing.T) {
	now := time.Now().UTC()
	pos := position("p1", "u1", 1000, now.Add(-72*time.Hour))
	f := newProvenanceFixture(pos)

	// A ledger already exists from a prior accrual run but lost its flag.
	require.NoError(t, f.rewards.Upsert(context.Background(), domain.RewardRecord{
		UserID:           "u1",
		PositionID:       "p1",
		Accumulated:      decimal.NewFromInt(42),
		LiquidityAddedAt: pos.CreatedAt,
		StakingStartedAt: pos.CreatedAt,
		EligibleForClaim: false,
		UpdatedAt:        now,
	}))

	_, err := f.svc.RegisterManualPosition(context.Background(), pos, "nft-1", "re-registration")
	require.NoError(t, err)

	rec, err := f.rewards.GetByPosition(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, rec.EligibleForClaim)
	assert.True(t, rec.Accumulated.Equal(decimal.NewFromInt(42)), "existing accrual untouched")
}

func TestSweepSessions(t *testing.T) {
	f := newProvenanceFixture()
	f.session(t)

	require.NoError(t, f.sessions.Put(context.Background(), domain.AppSession{
		ID:        "00001111222233334444555566667777",
		UserID:    "u2",
		CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
		Active:    true,
	}))

	n, err := f.svc.SweepSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.sessions.Len(), "live session survives the sweep")
}
