package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCreateAndValidate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	manager := NewSessionManager(store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := manager.Create(ctx, 7, "user@example.com", "user", now)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, ok, err := manager.Validate(ctx, id, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), session.UserID)
	assert.Equal(t, "user@example.com", session.Email)
	assert.Equal(t, "user", session.Username)
}

func TestSessionSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	manager := NewSessionManager(store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := manager.Create(ctx, 7, "user@example.com", "user", now)
	require.NoError(t, err)

	// Touches at 50-minute intervals keep the session alive well past
	// the absolute timeout.
	at := now
	for i := 0; i < 5; i++ {
		at = at.Add(50 * time.Minute)
		_, ok, err := manager.Validate(ctx, id, at)
		require.NoError(t, err)
		require.True(t, ok, "touch %d", i+1)
	}
}

func TestSessionIdleGapExpiresPermanently(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	manager := NewSessionManager(store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := manager.Create(ctx, 7, "user@example.com", "user", now)
	require.NoError(t, err)

	_, ok, err := manager.Validate(ctx, id, now.Add(time.Hour+time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	// A later read inside what would have been a fresh window cannot
	// revive the destroyed session.
	_, ok, err = manager.Validate(ctx, id, now.Add(time.Hour+2*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionDestroyIdempotent(t *testing.T) {
	ctx := context.Background()
	manager := NewSessionManager(newMemStore(), time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := manager.Create(ctx, 7, "user@example.com", "user", now)
	require.NoError(t, err)

	require.NoError(t, manager.Destroy(ctx, id))
	require.NoError(t, manager.Destroy(ctx, id))

	_, ok, err := manager.Validate(ctx, id, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionUnknownHandle(t *testing.T) {
	ctx := context.Background()
	manager := NewSessionManager(newMemStore(), time.Hour)

	_, ok, err := manager.Validate(ctx, "no-such-session", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = manager.Validate(ctx, "", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}
