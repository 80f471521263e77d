package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisDB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisDB("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, mr
}

func TestCacheRoundTripUsesPrefix(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.SetCache(ctx, "team-name:19:eng", "Engineering", time.Hour))
	assert.True(t, mr.Exists("cache:team-name:19:eng"))

	var name string
	require.NoError(t, r.GetCache(ctx, "team-name:19:eng", &name))
	assert.Equal(t, "Engineering", name)

	mr.FastForward(time.Hour + time.Second)
	assert.Error(t, r.GetCache(ctx, "team-name:19:eng", &name))
}

func TestAcquireLockIsExclusive(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	release, ok, err := r.AcquireLock(ctx, "pairup", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = r.AcquireLock(ctx, "pairup", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("lock:pairup"))

	release, ok, err = r.AcquireLock(ctx, "pairup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestStaleReleaseKeepsNewHoldersLock(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	staleRelease, ok, err := r.AcquireLock(ctx, "mood-poll", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)
	assert.False(t, mr.Exists("lock:mood-poll"))

	release, ok, err := r.AcquireLock(ctx, "mood-poll", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	holder, err := mr.Get("lock:mood-poll")
	require.NoError(t, err)

	staleRelease()
	require.True(t, mr.Exists("lock:mood-poll"))
	got, err := mr.Get("lock:mood-poll")
	require.NoError(t, err)
	assert.Equal(t, holder, got)

	release()
	assert.False(t, mr.Exists("lock:mood-poll"))
}
