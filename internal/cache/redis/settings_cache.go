package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridianlabs/lpboost/internal/domain"
)

const (
	settingsKey = "settings:program"
	settingsTTL = 5 * time.Minute
)

// SettingsCache implements domain.SettingsCache with a single JSON-serialized
// key. A short TTL bounds staleness after an out-of-band settings change; an
// in-band Update invalidates immediately.
type SettingsCache struct {
	rdb *redis.Client
}

// NewSettingsCache creates a SettingsCache backed by the given Client.
func NewSettingsCache(c *Client) *SettingsCache {
	return &SettingsCache{rdb: c.Underlying()}
}

// Get retrieves the cached settings. The second return value reports whether
// the cache held a value.
func (sc *SettingsCache) Get(ctx context.Context) (domain.ProgramSettings, bool, error) {
	data, err := sc.rdb.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ProgramSettings{}, false, nil
		}
		return domain.ProgramSettings{}, false, fmt.Errorf("redis: get settings: %w", err)
	}

	var settings domain.ProgramSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.ProgramSettings{}, false, fmt.Errorf("redis: unmarshal settings: %w", err)
	}
	return settings, true, nil
}

// Set stores the settings with the cache TTL.
func (sc *SettingsCache) Set(ctx context.Context, settings domain.ProgramSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("redis: marshal settings: %w", err)
	}
	if err := sc.rdb.Set(ctx, settingsKey, data, settingsTTL).Err(); err != nil {
		return fmt.Errorf("redis: set settings: %w", err)
	}
	return nil
}

// Invalidate drops the cached settings.
func (sc *SettingsCache) Invalidate(ctx context.Context) error {
	if err := sc.rdb.Del(ctx, settingsKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate settings: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SettingsCache = (*SettingsCache)(nil)
