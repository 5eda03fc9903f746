package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const initChargeKeyPrefix = "charge:init:"

// InitCharge carries the redirect/QR actions captured when the charge was
// created.  The first pending notification for redirect/QR payment methods
// consumes it; afterwards the entry is deleted.
type InitCharge struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	QRString    string `json:"qr_string,omitempty"`
}

// InitChargeStore persists InitCharge entries in redis.
type InitChargeStore struct {
	rdb *redis.Client
}

// NewInitChargeStore binds a store to the given redis client.
func NewInitChargeStore(rdb *redis.Client) *InitChargeStore { return &InitChargeStore{rdb: rdb} }

func initChargeKey(orderID string) string { return initChargeKeyPrefix + orderID }

// Put stores the charge-time actions for an order.  Written by the
// checkout flow when the charge is created.
func (s *InitChargeStore) Put(ctx context.Context, orderID string, ic InitCharge, ttl time.Duration) error {
	b, err := json.Marshal(ic)
	if err != nil {
		return err
	}
	if err := s.rdb.SetEx(ctx, initChargeKey(orderID), b, ttl).Err(); err != nil {
		return fmt.Errorf("init charge set: %w", err)
	}
	return nil
}

// Get returns the stored actions for an order.  The boolean is false when
// no entry exists.
func (s *InitChargeStore) Get(ctx context.Context, orderID string) (InitCharge, bool, error) {
	b, err := s.rdb.Get(ctx, initChargeKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return InitCharge{}, false, nil
	}
	if err != nil {
		return InitCharge{}, false, fmt.Errorf("init charge get: %w", err)
	}
	var ic InitCharge
	if err := json.Unmarshal(b, &ic); err != nil {
		return InitCharge{}, false, fmt.Errorf("init charge decode: %w", err)
	}
	return ic, true, nil
}

// Delete removes the entry for an order.  Absence is not an error: the
// caller treats deletion as best-effort.
func (s *InitChargeStore) Delete(ctx context.Context, orderID string) error {
	if err := s.rdb.Del(ctx, initChargeKey(orderID)).Err(); err != nil {
		return fmt.Errorf("init charge delete: %w", err)
	}
	return nil
}
