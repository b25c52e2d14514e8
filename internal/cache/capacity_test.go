package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityCache_RoundTripAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	c := NewCapacityCache(rdb, 30*time.Second)
	mentor := uuid.New()

	_, ok := c.Get(ctx, mentor)
	assert.False(t, ok)

	stored, err := c.Set(ctx, mentor, c.Generation(ctx, mentor), CapacitySnapshot{Accepted: 5, Limit: 5, Full: true})
	require.NoError(t, err)
	require.True(t, stored)
	snap, ok := c.Get(ctx, mentor)
	require.True(t, ok)
	assert.Equal(t, CapacitySnapshot{Accepted: 5, Limit: 5, Full: true}, snap)
	assert.Equal(t, 30*time.Second, mr.TTL(MentorCapacityKey(mentor)))

	require.NoError(t, c.Invalidate(ctx, mentor, uuid.New()))
	_, ok = c.Get(ctx, mentor)
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Generation(ctx, mentor))
}

func TestCapacityCache_SetAfterInvalidateIsDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	c := NewCapacityCache(rdb, time.Minute)
	mentor := uuid.New()

	// A reader counts 4 accepted, then an accept lands and invalidates
	// before the reader writes its count back.
	gen := c.Generation(ctx, mentor)
	require.NoError(t, c.Invalidate(ctx, mentor))

	stored, err := c.Set(ctx, mentor, gen, CapacitySnapshot{Accepted: 4, Limit: 5})
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists(MentorCapacityKey(mentor)))
	_, ok := c.Get(ctx, mentor)
	assert.False(t, ok)

	// A read started after the invalidation may populate the cache.
	stored, err = c.Set(ctx, mentor, c.Generation(ctx, mentor), CapacitySnapshot{Accepted: 5, Limit: 5, Full: true})
	require.NoError(t, err)
	assert.True(t, stored)
	snap, ok := c.Get(ctx, mentor)
	require.True(t, ok)
	assert.Equal(t, 5, snap.Accepted)
}

func TestCapacityCache_InvalidateIsPerMentor(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	c := NewCapacityCache(rdb, time.Minute)
	busy, quiet := uuid.New(), uuid.New()

	quietGen := c.Generation(ctx, quiet)
	require.NoError(t, c.Invalidate(ctx, busy))

	stored, err := c.Set(ctx, quiet, quietGen, CapacitySnapshot{Accepted: 1, Limit: 5})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists(MentorCapacityKey(quiet)))
}

func TestCapacityCache_ExpiresAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	c := NewCapacityCache(rdb, 0)
	mentor := uuid.New()
	_, err := c.Set(ctx, mentor, 0, CapacitySnapshot{Accepted: 1, Limit: 5})
	require.NoError(t, err)

	mr.FastForward(DefaultCapacityTTL + time.Second)
	_, ok := c.Get(ctx, mentor)
	assert.False(t, ok)
}

func TestCapacityCache_NilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	c := NewCapacityCache(nil, time.Minute)

	assert.EqualValues(t, -1, c.Generation(ctx, uuid.New()))
	stored, err := c.Set(ctx, uuid.New(), 0, CapacitySnapshot{})
	assert.NoError(t, err)
	assert.False(t, stored)
	assert.NoError(t, c.Invalidate(ctx, uuid.New()))
	_, ok := c.Get(ctx, uuid.New())
	assert.False(t, ok)
}

func TestCapacityCache_CorruptValueIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	mentor := uuid.New()
	require.NoError(t, mr.Set(MentorCapacityKey(mentor), "not-json"))

	_, ok := NewCapacityCache(rdb, time.Minute).Get(context.Background(), mentor)
	assert.False(t, ok)
}
