package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is an advisory availability answer for display purposes
// ("2 left" on a product page). It is computed without the event lock
// and may be stale the moment it is produced; the authoritative check
// always re-runs inside the lock at reservation and promotion time.
type Snapshot struct {
	QuotaID   uint64    `json:"quota_id"`
	Status    string    `json:"status"`
	Remaining *int64    `json:"remaining"` // nil = unlimited
	TakenAt   time.Time `json:"taken_at"`
}

// Availability computes a snapshot directly from the store, unlocked.
func (e *Engine) Availability(ctx context.Context, quotaID uint64) (*Snapshot, error) {
	var snap *Snapshot
	err := e.inTx(ctx, func(tx Tx) error {
		quota, err := tx.QuotaByID(ctx, quotaID)
		if err != nil {
			return err
		}
		event, err := tx.EventByID(ctx, quota.EventID)
		if err != nil {
			return err
		}
		now := e.now()
		usage, err := tx.QuotaUsage(ctx, quota, nil, event.CountPending, now)
		if err != nil {
			return err
		}
		status, remaining := ComputeAvailability(quota, usage)
		snap = &Snapshot{QuotaID: quotaID, Status: status, Remaining: remaining, TakenAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// SnapshotCache caches snapshots in Redis with a short TTL so hot
// product pages do not hammer the aggregation query. A nil client
// disables caching entirely and every lookup recomputes, mirroring how
// the rest of the system degrades when Redis is down.
type SnapshotCache struct {
	engine *Engine
	rdb    *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache builds a cache over the engine. ttl bounds
// staleness of the advisory numbers.
func NewSnapshotCache(engine *Engine, rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SnapshotCache{engine: engine, rdb: rdb, ttl: ttl}
}

func snapshotKey(quotaID uint64) string { return fmt.Sprintf("avail:quota:%d", quotaID) }

// Get returns the cached snapshot for a quota, recomputing and
// re-caching on miss. Cache errors fall back to recomputation; the
// advisory path never fails because Redis did.
func (c *SnapshotCache) Get(ctx context.Context, quotaID uint64) (*Snapshot, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, snapshotKey(quotaID)).Result()
		if err == nil {
			var snap Snapshot
			if jsonErr := json.Unmarshal([]byte(raw), &snap); jsonErr == nil {
				return &snap, nil
			}
		}
	}
	snap, err := c.engine.Availability(ctx, quotaID)
	if err != nil {
		return nil, err
	}
	if c.rdb != nil {
		if raw, err := json.Marshal(snap); err == nil {
			c.rdb.Set(ctx, snapshotKey(quotaID), raw, c.ttl)
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot of a quota, e.g. after an order
// or cancellation changed its usage. Best effort only.
func (c *SnapshotCache) Invalidate(ctx context.Context, quotaID uint64) {
	if c.rdb != nil {
		c.rdb.Del(ctx, snapshotKey(quotaID))
	}
}
