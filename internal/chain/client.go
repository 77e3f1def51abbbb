// Package chain wraps the JSON-RPC access to the rewards distributor
// contract: endpoint failover, bounded retries with exponential backoff, and
// typed read calls for the nonce, claim cap, and claimed totals.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/meridianlabs/lpboost/internal/domain"
)

const (
	// maxAttempts bounds the retry loop per logical call.
	maxAttempts = 3
	// attemptTimeout bounds each individual RPC attempt.
	attemptTimeout = 10 * time.Second
	// baseBackoff is the initial retry delay; it doubles per attempt.
	baseBackoff = 500 * time.Millisecond
)

// ClientConfig holds the RPC endpoint pool configuration.
type ClientConfig struct {
	// Endpoints is the ordered list of JSON-RPC URLs. The first entry is
	// the preferred provider; the rest are failover targets.
	Endpoints []string
}

// Client is a JSON-RPC client pool. When an endpoint returns a
// rate-limit-class error the pool rotates to the next endpoint before
// retrying instead of hammering the same provider.
type Client struct {
	endpoints []string
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[int]*ethclient.Client
	current int
}

// NewClient creates a Client over the given endpoints. Connections are
// dialed lazily on first use.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("chain: at least one RPC endpoint is required")
	}
	return &Client{
		endpoints: cfg.Endpoints,
		clients:   make(map[int]*ethclient.Client),
		logger:    logger.With(slog.String("component", "chain")),
	}, nil
}

// Close releases all dialed connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ec := range c.clients {
		ec.Close()
	}
	c.clients = make(map[int]*ethclient.Client)
}

// eth returns the ethclient for the given endpoint index, dialing if needed.
func (c *Client) eth(ctx context.Context, idx int) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ec, ok := c.clients[idx]; ok {
		return ec, nil
	}
	ec, err := ethclient.DialContext(ctx, c.endpoints[idx])
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", c.endpoints[idx], err)
	}
	c.clients[idx] = ec
	return ec, nil
}

// call runs fn against the current endpoint with bounded retries. Rate-limit
// errors rotate to the next endpoint immediately; other transient errors
// back off exponentially on the same endpoint. When all attempts fail the
// error wraps domain.ErrContractUnreachable so callers can classify it as
// retryable.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context, ec *ethclient.Client) error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		c.mu.Lock()
		idx := c.current
		c.mu.Unlock()

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		ec, err := c.eth(attemptCtx, idx)
		if err == nil {
			err = fn(attemptCtx, ec)
		}
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("chain: %s: %w", op, ctx.Err())
		}

		if isRateLimitError(err) {
			next := (idx + 1) % len(c.endpoints)
			c.mu.Lock()
			c.current = next
			c.mu.Unlock()
			c.logger.Warn("rpc endpoint rate limited, failing over",
				slog.String("op", op),
				slog.String("from", c.endpoints[idx]),
				slog.String("to", c.endpoints[next]),
			)
			continue
		}

		delay := baseBackoff << attempt
		c.logger.Warn("rpc call failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("chain: %s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("chain: %s after %d attempts: %v: %w", op, maxAttempts, lastErr, domain.ErrContractUnreachable)
}

// isRateLimitError classifies provider throttling responses.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "exceeded")
}
