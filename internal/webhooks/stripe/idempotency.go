package stripe

import (
	"context"
	"time"

	"github.com/angelvaldez/creatorkit-backend/pkg/redis"
)

const (
	idempotencyScope = "stripe-event"
	idempotencyTTL   = 24 * time.Hour
)

// IdempotencyGuard short-circuits redelivered webhook events using a Redis
// SetNX marker keyed by the gateway event id.
//
// The guard is an optimization in front of the database-level conditional
// updates, not the correctness mechanism: a Redis outage degrades to
// reprocessing, which the conditional updates absorb.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
}

// NewIdempotencyGuard builds a guard backed by the given store. A nil store
// disables the guard, letting every event through.
func NewIdempotencyGuard(store redis.IdempotencyStore) *IdempotencyGuard {
	return &IdempotencyGuard{store: store}
}

// CheckAndMark reserves the event id. It returns true when this delivery is
// the first one seen; false means a previous delivery already claimed it.
// Store failures are reported as first-seen so processing proceeds.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if g == nil || g.store == nil || eventID == "" {
		return true, nil
	}
	key := g.store.IdempotencyKey(idempotencyScope, eventID)
	ok, err := g.store.SetNX(ctx, key, "1", idempotencyTTL)
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Release drops the marker so a failed delivery can be retried by the
// gateway without waiting for the TTL.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) {
	if g == nil || g.store == nil || eventID == "" {
		return
	}
	key := g.store.IdempotencyKey(idempotencyScope, eventID)
	_ = g.store.Del(ctx, key)
}
