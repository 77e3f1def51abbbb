package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() domain.ProgramSettings {
	return domain.ProgramSettings{
		LockPeriodDays:       7,
		TimeBoostCoefficient: decimal.NewFromFloat(0.6),
		FullRangeBonus:       decimal.NewFromFloat(1.2),
		OutOfRangeMultiplier: decimal.Zero,
		ProgramDurationDays:  90,
		TotalAllocation:      decimal.NewFromInt(900_000),
		Mode:                 domain.RewardModePoolTVL,
		UpdatedAt:            time.Now().UTC(),
	}
}

func position(id, userID string, liquidity float64, createdAt time.Time) domain.Position {
	return domain.Position{
		ID:                id,
		UserID:            userID,
		PoolAddress:       "0x0000000000000000000000000000000000000001",
		LiquidityValueUSD: decimal.NewFromFloat(liquidity),
		InRange:           true,
		Active:            true,
		CreatedAt:         createdAt,
	}
}

type fakePositionStore struct {
	positions []domain.Position
}

func (f *fakePositionStore) Create(context.Context, domain.Position) error { return nil }

func (f *fakePositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	for _, p := range f.positions {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Position{}, domain.ErrNotFound
}

func (f *fakePositionStore) GetActive(context.Context) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositionStore) ListByUser(_ context.Context, userID string) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositionStore) SetActive(context.Context, string, bool) error { return nil }

// fakeRewardStore holds ledgers keyed by position and records accrual writes.
// UpdateAccrual on a position without a ledger returns ErrNotFound, matching
// the store contract.
type fakeRewardStore struct {
	mu      sync.Mutex
	records map[string]domain.RewardRecord
	updates []string
}

func newFakeRewardStore(records ...domain.RewardRecord) *fakeRewardStore {
	s := &fakeRewardStore{records: make(map[string]domain.RewardRecord)}
	for _, r := range records {
		s.records[r.PositionID] = r
	}
	return s
}

func (f *fakeRewardStore) Upsert(_ context.Context, r domain.RewardRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[r.PositionID] = r
	return nil
}

func (f *fakeRewardStore) GetByPosition(_ context.Context, positionID string) (domain.RewardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[positionID]
	if !ok {
		return domain.RewardRecord{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRewardStore) ListByUser(_ context.Context, userID string) ([]domain.RewardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RewardRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRewardStore) UpdateAccrual(_ context.Context, positionID string, daily, accumulated decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[positionID]
	if !ok {
		return domain.ErrNotFound
	}
	r.DailyReward = daily
	r.Accumulated = accumulated
	f.records[positionID] = r
	f.updates = append(f.updates, positionID)
	return nil
}

func (f *fakeRewardStore) ApplyClaim(context.Context, string, decimal.Decimal, time.Time) error {
	return nil
}

func (f *fakeRewardStore) SetEligible(context.Context, string, bool) error { return nil }

func (f *fakeRewardStore) HasClaimed(context.Context, string) (bool, error) { return false, nil }

func (f *fakeRewardStore) EarliestLiquidityAddedAt(context.Context, string) (time.Time, error) {
	return time.Time{}, domain.ErrNotFound
}

func (f *fakeRewardStore) updatedPositions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updates...)
}

type fakeSettingsStore struct {
	settings *domain.ProgramSettings
}

func (f *fakeSettingsStore) Get(context.Context) (domain.ProgramSettings, error) {
	if f.settings == nil {
		return domain.ProgramSettings{}, domain.ErrConfigurationMissing
	}
	return *f.settings, nil
}

func (f *fakeSettingsStore) Put(_ context.Context, s domain.ProgramSettings) error {
	f.settings = &s
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []domain.Signal
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, domain.Signal{Channel: channel, Payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(context.Context, ...string) (<-chan domain.Signal, func(), error) {
	ch := make(chan domain.Signal)
	return ch, func() {}, nil
}

func (f *fakeBus) signals() []domain.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Signal(nil), f.published...)
}

func newRunner(positions *fakePositionStore, rewards *fakeRewardStore, settings *fakeSettingsStore, bus domain.SignalBus) *AccrualRunner {
	logger := testLogger()
	return NewAccrualRunner(
		positions,
		rewards,
		service.NewRankingService(positions, logger),
		service.NewAccrualCalculator(logger),
		service.NewSettingsService(settings, nil, logger),
		bus,
		2,
		logger,
	)
}

func TestRunOnceSkipsWhenUnconfigured(t *testing.T) {
	now := time.Now().UTC()
	positions := &fakePositionStore{positions: []domain.Position{
		position("p1", "u1", 1000, now.Add(-24*time.Hour)),
	}}
	rewards := newFakeRewardStore(domain.RewardRecord{UserID: "u1", PositionID: "p1"})

	runner := newRunner(positions, rewards, &fakeSettingsStore{}, nil)

	n, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rewards.updatedPositions())
}

func TestRunOnceSkipsPositionsWithoutLedger(t *testing.T) {
	now := time.Now().UTC()
	positions := &fakePositionStore{positions: []domain.Position{
		position("p1", "u1", 1000, now.Add(-48*time.Hour)),
		position("p2", "u2", 2000, now.Add(-24*time.Hour)),
	}}
	// Only p1 has a ledger; p2 was never registered eligible.
	rewards := newFakeRewardStore(domain.RewardRecord{UserID: "u1", PositionID: "p1"})
	settings := testSettings()

	runner := newRunner(positions, rewards, &fakeSettingsStore{settings: &settings}, nil)

	n, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"p1"}, rewards.updatedPositions())
}

func TestRunOnceUpdatesAllLedgers(t *testing.T) {
	now := time.Now().UTC()
	positions := &fakePositionStore{positions: []domain.Position{
		position("p1", "u1", 1000, now.Add(-30*24*time.Hour)),
		position("p2", "u2", 5000, now.Add(-10*24*time.Hour)),
		position("p3", "u3", 250, now.Add(-24*time.Hour)),
	}}
	rewards := newFakeRewardStore(
		domain.RewardRecord{UserID: "u1", PositionID: "p1"},
		domain.RewardRecord{UserID: "u2", PositionID: "p2"},
		domain.RewardRecord{UserID: "u3", PositionID: "p3"},
	)
	settings := testSettings()

	runner := newRunner(positions, rewards, &fakeSettingsStore{settings: &settings}, nil)

	n, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range []string{"p1", "p2", "p3"} {
		rec, err := rewards.GetByPosition(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, rec.DailyReward.IsPositive(), "daily reward for %s", id)
		assert.False(t, rec.Accumulated.IsNegative(), "accumulated for %s", id)
	}
}

func TestRunOncePublishesTick(t *testing.T) {
	now := time.Now().UTC()
	positions := &fakePositionStore{positions: []domain.Position{
		position("p1", "u1", 1000, now.Add(-24*time.Hour)),
	}}
	rewards := newFakeRewardStore(domain.RewardRecord{UserID: "u1", PositionID: "p1"})
	settings := testSettings()
	bus := &fakeBus{}

	runner := newRunner(positions, rewards, &fakeSettingsStore{settings: &settings}, bus)

	_, err := runner.RunOnce(context.Background())
	require.NoError(t, err)

	sigs := bus.signals()
	require.Len(t, sigs, 1)
	assert.Equal(t, domain.ChannelAccrual, sigs[0].Channel)

	var tick struct {
		Event       string `json:"event"`
		Updated     int    `json:"updated"`
		TotalActive int    `json:"totalActive"`
	}
	require.NoError(t, json.Unmarshal(sigs[0].Payload, &tick))
	assert.Equal(t, "accrual_tick", tick.Event)
	assert.Equal(t, 1, tick.Updated)
	assert.Equal(t, 1, tick.TotalActive)
}
