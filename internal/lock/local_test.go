package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLock(t *testing.T) {
	locker := NewLocalLock()
	ctx := context.Background()

	token, ok, err := locker.Lock(ctx, "mechanic:m1:2025-09-02", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = locker.Lock(ctx, "mechanic:m1:2025-09-02", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a different key is independent
	_, ok, err = locker.Lock(ctx, "mechanic:m2:2025-09-02", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locker.Unlock(ctx, "mechanic:m1:2025-09-02", token))

	_, ok, err = locker.Lock(ctx, "mechanic:m1:2025-09-02", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock_TTLExpiry(t *testing.T) {
	locker := NewLocalLock()
	ctx := context.Background()

	_, ok, err := locker.Lock(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok, err = locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock_StaleTokenKeepsSuccessorHold(t *testing.T) {
	locker := NewLocalLock()
	ctx := context.Background()

	stale, ok, err := locker.Lock(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	// the hold expired and a second flow reclaimed the key
	next, ok, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the first flow unlocking late must not release the second flow's hold
	require.NoError(t, locker.Unlock(ctx, "k", stale))

	_, ok, err = locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Unlock(ctx, "k", next))

	_, ok, err = locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMechanicDateKey(t *testing.T) {
	date := time.Date(2025, 9, 2, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, "mechanic:m1:2025-09-02", MechanicDateKey("m1", date))
}
