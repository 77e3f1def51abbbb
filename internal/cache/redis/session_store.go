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

// SessionStore implements domain.SessionStore on Redis, for deployments that
// run more than one engine instance behind a balancer. Keys carry the session
// TTL so Redis itself handles expiry; DeleteExpired is a no-op kept for
// interface parity with the in-process store.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a SessionStore backed by the given Client.
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.Underlying()}
}

func sessionKey(id string) string { return "session:" + id }

// Put stores a session with a TTL matching its expiry.
func (ss *SessionStore) Put(ctx context.Context, s domain.AppSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal session %s: %w", s.ID, err)
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := ss.rdb.Set(ctx, sessionKey(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put session %s: %w", s.ID, err)
	}
	return nil
}

// Get retrieves a session, or domain.ErrNotFound once the TTL elapsed.
func (ss *SessionStore) Get(ctx context.Context, id string) (domain.AppSession, error) {
	data, err := ss.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AppSession{}, domain.ErrNotFound
		}
		return domain.AppSession{}, fmt.Errorf("redis: get session %s: %w", id, err)
	}

	var s domain.AppSession
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.AppSession{}, fmt.Errorf("redis: unmarshal session %s: %w", id, err)
	}
	return s, nil
}

// Invalidate marks a session inactive while keeping it readable until expiry.
func (ss *SessionStore) Invalidate(ctx context.Context, id string) error {
	s, err := ss.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Active = false

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal session %s: %w", id, err)
	}
	if err := ss.rdb.Set(ctx, sessionKey(id), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis: invalidate session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired session keys on its own.
func (ss *SessionStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
