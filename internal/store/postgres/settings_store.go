package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// SettingsStore implements domain.SettingsStore using PostgreSQL. The table
// holds at most one row (id = 1) and is never seeded: an empty table means
// the program is unconfigured and Get says so with ErrConfigurationMissing.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a SettingsStore backed by the given pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

var _ domain.SettingsStore = (*SettingsStore)(nil)

// Get returns the program settings record.
func (s *SettingsStore) Get(ctx context.Context) (domain.ProgramSettings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT lock_period_days, time_boost_coefficient, full_range_bonus,
		       out_of_range_multiplier, daily_rewards_cap,
		       program_duration_days, total_allocation, reward_mode, updated_at
		FROM program_settings WHERE id = 1`)

	var st domain.ProgramSettings
	var mode string
	err := row.Scan(
		&st.LockPeriodDays, &st.TimeBoostCoefficient, &st.FullRangeBonus,
		&st.OutOfRangeMultiplier, &st.DailyRewardsCap,
		&st.ProgramDurationDays, &st.TotalAllocation, &mode, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProgramSettings{}, domain.ErrConfigurationMissing
		}
		return domain.ProgramSettings{}, fmt.Errorf("postgres: get settings: %w", err)
	}
	st.Mode = domain.RewardMode(mode)
	return st, nil
}

// Put writes the settings record, replacing any previous one.
func (s *SettingsStore) Put(ctx context.Context, st domain.ProgramSettings) error {
	const query = `
		INSERT INTO program_settings (
			id, lock_period_days, time_boost_coefficient, full_range_bonus,
			out_of_range_multiplier, daily_rewards_cap,
			program_duration_days, total_allocation, reward_mode, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			lock_period_days        = EXCLUDED.lock_period_days,
			time_boost_coefficient  = EXCLUDED.time_boost_coefficient,
			full_range_bonus        = EXCLUDED.full_range_bonus,
			out_of_range_multiplier = EXCLUDED.out_of_range_multiplier,
			daily_rewards_cap       = EXCLUDED.daily_rewards_cap,
			program_duration_days   = EXCLUDED.program_duration_days,
			total_allocation        = EXCLUDED.total_allocation,
			reward_mode             = EXCLUDED.reward_mode,
			updated_at              = NOW()`

	_, err := s.pool.Exec(ctx, query,
		st.LockPeriodDays, st.TimeBoostCoefficient, st.FullRangeBonus,
		st.OutOfRangeMultiplier, st.DailyRewardsCap,
		st.ProgramDurationDays, st.TotalAllocation, string(st.Mode),
	)
	if err != nil {
		return fmt.Errorf("postgres: put settings: %w", err)
	}
	return nil
}
