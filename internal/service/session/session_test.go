package session

import (
	"context"
	"os"
	"testing"
	"time"

	"commerce-basket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	key, err := s.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "missing-"+key)
	require.NoError(t, err)
	assert.False(t, ok)

	prior, err := s.PriorKey(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, prior)

	rot, err := s.Rotate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, rot.Old)
	assert.NotEqual(t, key, rot.New)

	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "rotated key is retired")

	require.NoError(t, s.SetPriorKey(ctx, rot.New, rot.Old))
	prior, err = s.PriorKey(ctx, rot.New)
	require.NoError(t, err)
	assert.Equal(t, key, prior)

	require.NoError(t, s.ClearPriorKey(ctx, rot.New))
	prior, err = s.PriorKey(ctx, rot.New)
	require.NoError(t, err)
	assert.Empty(t, prior)

	_, err = s.Rotate(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.SetPriorKey(ctx, key, "x"), domain.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(time.Hour))
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	key, err := m.Issue(ctx)
	require.NoError(t, err)
	require.NoError(t, m.SetPriorKey(ctx, key, "old"))

	now = now.Add(2 * time.Minute)
	ok, err := m.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	prior, err := m.PriorKey(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, prior)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := Dial(context.Background(), addr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedis(rdb, time.Hour, nil)
	exerciseStore(t, s)

	key, err := s.Issue(context.Background())
	require.NoError(t, err)
	ttl, err := rdb.TTL(context.Background(), redisKey(key)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}
