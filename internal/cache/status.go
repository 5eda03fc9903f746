// Package cache holds the redis-backed ephemeral state the engine keeps
// around notifications: the last processed status per order (idempotency)
// and the charge-time actions captured at checkout (init charge).
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adiprasetio/marketplace-payments/internal/model"
)

const statusKeyPrefix = "payment:status:"

// StatusStore remembers the last processed provider status per order.  It
// is the storage half of the idempotency guard; the accept/reject decision
// lives in the service layer.
type StatusStore struct {
	rdb *redis.Client
}

// NewStatusStore binds a store to the given redis client.
func NewStatusStore(rdb *redis.Client) *StatusStore { return &StatusStore{rdb: rdb} }

func statusKey(orderID string) string { return statusKeyPrefix + orderID }

// LastStatus returns the cached status for an order.  The boolean is
// false when no entry exists.
func (s *StatusStore) LastStatus(ctx context.Context, orderID string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, statusKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency get: %w", err)
	}
	return v, true, nil
}

// Remember stores the newly processed status with the given TTL.
func (s *StatusStore) Remember(ctx context.Context, orderID, status string, ttl time.Duration) error {
	if err := s.rdb.SetEx(ctx, statusKey(orderID), status, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency set: %w", err)
	}
	return nil
}

// Refresh extends the lifetime of an existing entry.  Used when a
// duplicate delivery is rejected, so the guard outlives provider retries.
func (s *StatusStore) Refresh(ctx context.Context, orderID string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, statusKey(orderID), ttl).Err(); err != nil {
		return fmt.Errorf("idempotency refresh: %w", err)
	}
	return nil
}

// TTLFor computes the cache lifetime for a processed status: while the
// charge is still pending the entry lives until the payment expires; once
// terminal a short fixed TTL is enough to absorb provider retries.  An
// expiry already in the past also falls back to the fixed TTL.
func TTLFor(status model.ProviderStatus, expiry, now time.Time, terminalTTL time.Duration) time.Duration {
	if status == model.StatusPending && !expiry.IsZero() {
		if remaining := expiry.Sub(now); remaining > 0 {
			return remaining
		}
	}
	return terminalTTL
}
