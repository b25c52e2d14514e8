package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	mentorCapacityKeyPrefix = "mentor:%s:capacity"
	mentorCapacityGenPrefix = "mentor:%s:capacity:gen"
)

// DefaultCapacityTTL bounds how stale a cached capacity snapshot may be.
const DefaultCapacityTTL = time.Minute

// MentorCapacityKey returns the cache key holding a mentor's capacity snapshot.
func MentorCapacityKey(mentorID uuid.UUID) string {
	return fmt.Sprintf(mentorCapacityKeyPrefix, mentorID)
}

// MentorCapacityGenKey returns the key counting invalidations of a mentor's snapshot.
func MentorCapacityGenKey(mentorID uuid.UUID) string {
	return fmt.Sprintf(mentorCapacityGenPrefix, mentorID)
}

// setIfCurrent writes the snapshot only while the generation still matches
// the one the caller read before counting.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CapacitySnapshot is the cached view of a mentor's accepted load.
type CapacitySnapshot struct {
	Accepted int  `json:"accepted"`
	Limit    int  `json:"limit"`
	Full     bool `json:"full"`
}

// CapacityCache is a read-through helper for capacity snapshots. A nil client
// disables caching: every Get misses and writes are no-ops.
type CapacityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCapacityCache creates a CapacityCache. ttl <= 0 uses DefaultCapacityTTL.
func NewCapacityCache(rdb *redis.Client, ttl time.Duration) *CapacityCache {
	if ttl <= 0 {
		ttl = DefaultCapacityTTL
	}
	return &CapacityCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached snapshot, or ok=false on miss or any Redis failure.
func (c *CapacityCache) Get(ctx context.Context, mentorID uuid.UUID) (CapacitySnapshot, bool) {
	var snap CapacitySnapshot
	if c == nil || c.rdb == nil {
		return snap, false
	}
	raw, err := c.rdb.Get(ctx, MentorCapacityKey(mentorID)).Bytes()
	if err != nil {
		return snap, false
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

// Generation returns the mentor's invalidation counter. Read it before
// computing a snapshot and hand it to Set. It returns -1 when Redis is
// unavailable, which makes the following Set a no-op.
func (c *CapacityCache) Generation(ctx context.Context, mentorID uuid.UUID) int64 {
	if c == nil || c.rdb == nil {
		return -1
	}
	gen, err := c.rdb.Get(ctx, MentorCapacityGenKey(mentorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		return -1
	}
	return gen
}

// Set stores a snapshot computed at generation gen. The write is dropped if
// Invalidate ran since gen was read; stored reports whether it landed.
func (c *CapacityCache) Set(ctx context.Context, mentorID uuid.UUID, gen int64, snap CapacitySnapshot) (stored bool, err error) {
	if c == nil || c.rdb == nil || gen < 0 {
		return false, nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("marshal capacity snapshot: %w", err)
	}
	keys := []string{MentorCapacityKey(mentorID), MentorCapacityGenKey(mentorID)}
	n, err := setIfCurrent.Run(ctx, c.rdb, keys, gen, raw, c.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate drops cached snapshots for the given mentors and bumps their
// generations so in-flight reads cannot write back an older count.
func (c *CapacityCache) Invalidate(ctx context.Context, mentorIDs ...uuid.UUID) error {
	if c == nil || c.rdb == nil || len(mentorIDs) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range mentorIDs {
			pipe.Incr(ctx, MentorCapacityGenKey(id))
			pipe.Del(ctx, MentorCapacityKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
