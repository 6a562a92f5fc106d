package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/collab-core/internal/model"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func newLock(user, tab string) *model.Lock {
	now := time.Now().UTC()
	return &model.Lock{
		ResourceID:       "ch1",
		OwnerUserID:      user,
		OwnerDisplayName: user,
		TabID:            tab,
		Since:            now,
		LastBeat:         now,
	}
}

func TestAcquireSetsIfAbsent(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	ok, current, err := store.Acquire(ctx, "lock:ch1", newLock("alice", "tab-a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, current)

	// second caller loses and sees the holder untouched
	ok, current, err = store.Acquire(ctx, "lock:ch1", newLock("bob", "tab-b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, current)
	assert.Equal(t, "alice", current.OwnerUserID)
	assert.Equal(t, "tab-a", current.TabID)
}

func TestAcquireAfterTTLExpiry(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	ok, _, err := store.Acquire(ctx, "lock:ch1", newLock("alice", "tab-a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, current, err := store.Acquire(ctx, "lock:ch1", newLock("bob", "tab-b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, current)
}

func TestRenewRefreshesTTLAndPreservesTab(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	lock := newLock("alice", "tab-a")
	ok, _, err := store.Acquire(ctx, "lock:ch1", lock, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(40 * time.Second)

	renewed, err := store.Renew(ctx, "lock:ch1", "alice", time.Minute)
	require.NoError(t, err)
	assert.True(t, renewed)

	// would have expired without the renewal
	mr.FastForward(40 * time.Second)

	got, err := store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tab-a", got.TabID)
	assert.Equal(t, "alice", got.OwnerUserID)
	assert.True(t, got.LastBeat.After(got.Since))
	assert.Equal(t, lock.Since.Format(time.RFC3339Nano), got.Since.Format(time.RFC3339Nano))
}

func TestRenewGuards(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	renewed, err := store.Renew(ctx, "lock:absent", "alice", time.Minute)
	require.NoError(t, err)
	assert.False(t, renewed)

	ok, _, err := store.Acquire(ctx, "lock:ch1", newLock("alice", "tab-a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	renewed, err = store.Renew(ctx, "lock:ch1", "bob", time.Minute)
	require.NoError(t, err)
	assert.False(t, renewed)

	// foreign renew attempt must not extend the lease
	mr.FastForward(time.Minute + time.Second)
	got, err := store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReleaseGuards(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	ok, _, err := store.Acquire(ctx, "lock:ch1", newLock("alice", "tab-a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// non-owner: no-op
	released, err := store.Release(ctx, "lock:ch1", "bob", "tab-b")
	require.NoError(t, err)
	assert.False(t, released)

	// owner with wrong tab: no-op
	released, err = store.Release(ctx, "lock:ch1", "alice", "tab-other")
	require.NoError(t, err)
	assert.False(t, released)

	got, err := store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// owner with matching tab deletes
	released, err = store.Release(ctx, "lock:ch1", "alice", "tab-a")
	require.NoError(t, err)
	assert.True(t, released)

	got, err = store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReleaseWithoutRecordedTab(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	ok, _, err := store.Acquire(ctx, "lock:ch1", newLock("alice", ""), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// no tab recorded: any of the owner's tabs may release
	released, err := store.Release(ctx, "lock:ch1", "alice", "tab-whatever")
	require.NoError(t, err)
	assert.True(t, released)
}

func TestForceRelease(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	ok, _, err := store.Acquire(ctx, "lock:ch1", newLock("alice", "tab-a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.ForceRelease(ctx, "lock:ch1"))
	got, err := store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// absent key is not an error
	require.NoError(t, store.ForceRelease(ctx, "lock:ch1"))
}

func TestGetDoesNotTouchTTL(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	ok, _, err := store.Acquire(ctx, "lock:ch1", newLock("alice", "tab-a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(50 * time.Second)
	got, err := store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// a read must not have extended the lease
	mr.FastForward(11 * time.Second)
	got, err = store.Get(ctx, "lock:ch1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
