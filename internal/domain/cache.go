package domain

import (
	"context"
	"time"
)

// LockManager provides short-lived exclusive sections, used to serialize
// claim authorization per user. The on-chain nonce remains the final race
// guard; this lock only keeps the backend from doing redundant signing work.
type LockManager interface {
	// Acquire obtains the lock for key or returns ErrLockHeld. The
	// returned release function is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SettingsCache is a read-through cache in front of the settings store so
// the hourly accrual pass and every claim request do not hammer the
// database for a record that changes rarely.
type SettingsCache interface {
	Get(ctx context.Context) (ProgramSettings, bool, error)
	Set(ctx context.Context, s ProgramSettings) error
	Invalidate(ctx context.Context) error
}

// RateLimiter bounds request rates per key (sliding window).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus publishes engine events (accrual ticks, claim outcomes) to
// subscribers such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan Signal, func(), error)
}

// Signal is a single message delivered by the SignalBus.
type Signal struct {
	Channel string
	Payload []byte
}

// Event channel names published by the engine.
const (
	ChannelAccrual  = "rewards:accrual"
	ChannelClaims   = "rewards:claims"
	ChannelSessions = "rewards:sessions"
)
