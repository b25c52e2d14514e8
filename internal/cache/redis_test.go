package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(" localhost:6379 ")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = ParseOptions("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = ParseOptions("")
	assert.Error(t, err)
	_, err = ParseOptions("redis://host:6379/not-a-db")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rdb, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()
	require.NoError(t, rdb.Set(ctx, "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))

	mr.Close()
	assert.Error(t, rdb.Get(ctx, "k").Err())
}

func TestConnectOptional_UnreachableIsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr)
	assert.ErrorContains(t, err, addr)
	assert.Nil(t, ConnectOptional(context.Background(), addr))
	assert.Nil(t, ConnectOptional(context.Background(), "redis://%zz"))
}
