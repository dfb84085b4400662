package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemFreshFor(t *testing.T) {
	mtime := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	item := &Item{Value: "h", SourceMTime: mtime, StoredAt: mtime.Add(time.Second)}

	assert.True(t, item.FreshFor(mtime))
	assert.False(t, item.FreshFor(mtime.Add(time.Minute)), "source modified after caching")

	stale := &Item{Value: "h", SourceMTime: mtime, StoredAt: mtime.Add(-time.Second)}
	assert.False(t, stale.FreshFor(mtime))

	var missing *Item
	assert.False(t, missing.FreshFor(mtime))
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)

	item, err := s.Get(ctx, "hash:unac-a")
	require.NoError(t, err)
	assert.Nil(t, item)

	require.NoError(t, s.Set(ctx, "hash:unac-a", Item{Value: "abc", SourceMTime: mtime}))
	value, ok := Lookup(ctx, s, "hash:unac-a", mtime)
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	_, ok = Lookup(ctx, s, "hash:unac-a", mtime.Add(time.Minute))
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "hash:unac-a"))
	_, ok = Lookup(ctx, s, "hash:unac-a", mtime)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k1", Item{Value: "1"}))
	require.NoError(t, s.Set(ctx, "k2", Item{Value: "2"}))
	require.NoError(t, s.Clear(ctx))
	item, err = s.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore(0))
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", Item{Value: "v"}))
	time.Sleep(30 * time.Millisecond)

	item, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, 0, s.Len())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := ConnectRedis(url, time.Minute)
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}
