package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"edulearn-connect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopCache(t *testing.T) {
	c := NewUserListCache(nil, time.Minute)
	ctx := context.Background()

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, gen, []models.User{{ID: 1, Name: "A"}}))
	users, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, users)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRedisUserListCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis cache test: REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	c := NewUserListCache(rdb, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []models.User{{ID: 2, Name: "B", Email: "b@example.com", ProfilePic: "uploads/2-b.png"}, {ID: 1, Name: "A"}}
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, gen, want))
	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisUserListCache_StaleSetIsDropped(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis cache test: REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	c := NewUserListCache(rdb, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	// A reader takes the generation, then a write lands before it stores.
	before, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	after, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	require.NoError(t, c.Set(ctx, before, []models.User{}))
	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "listing read before the write must not be cached")

	require.NoError(t, c.Set(ctx, after, []models.User{{ID: 1, Name: "A"}}))
	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, got, 1)
}
