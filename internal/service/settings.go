package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// SettingsService supplies the admin-configured program settings with an
// optional read-through cache. There is deliberately no built-in default: a
// missing settings record surfaces as ErrConfigurationMissing so
// misconfiguration can never hide behind fabricated numbers.
type SettingsService struct {
	store  domain.SettingsStore
	cache  domain.SettingsCache // optional
	logger *slog.Logger
}

// NewSettingsService creates a SettingsService. cache may be nil.
func NewSettingsService(store domain.SettingsStore, cache domain.SettingsCache, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "settings")),
	}
}

// Get returns the current program settings, validated.
func (s *SettingsService) Get(ctx context.Context) (domain.ProgramSettings, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "settings cache read failed", slog.String("error", err.Error()))
		} else if ok {
			return cached, nil
		}
	}

	settings, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			return domain.ProgramSettings{}, domain.ErrConfigurationMissing
		}
		return domain.ProgramSettings{}, fmt.Errorf("settings: load: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return domain.ProgramSettings{}, fmt.Errorf("settings: invalid record: %v: %w", err, domain.ErrConfigurationMissing)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, settings); err != nil {
			s.logger.WarnContext(ctx, "settings cache write failed", slog.String("error", err.Error()))
		}
	}
	return settings, nil
}

// Update validates and stores a new settings record, then drops the cache.
func (s *SettingsService) Update(ctx context.Context, settings domain.ProgramSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := s.store.Put(ctx, settings); err != nil {
		return fmt.Errorf("settings: store: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "settings cache invalidate failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
