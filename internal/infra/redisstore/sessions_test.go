package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

func setupSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := New("redis://" + mr.Addr())
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create session store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store, mr
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("://nope")
	assert.Error(t, err)
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store, mr := setupSessionStore(t)
	ctx := context.Background()
	now := time.Now()

	sess := &domain.Session{ID: "abc", UserID: 7, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.CreateSession(ctx, sess))

	assert.True(t, mr.Exists("session:abc"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:abc").Seconds(), 2)

	got, err := store.GetSession(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)

	got.ImpersonatedBrandID = 3
	require.NoError(t, store.UpdateSession(ctx, got))

	got, err = store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ImpersonatedBrandID)

	require.NoError(t, store.DeleteSession(ctx, "abc"))
	got, err = store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_ExpiresWithTTL(t *testing.T) {
	store, mr := setupSessionStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateSession(ctx, &domain.Session{ID: "s1", UserID: 1, ExpiresAt: now.Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.UpdateSession(ctx, &domain.Session{ID: "s1", UserID: 1, ExpiresAt: now.Add(time.Hour)})
	var unauthorized *domain.ErrUnauthorized
	assert.True(t, errors.As(err, &unauthorized), "expected unauthorized, got %v", err)
	assert.False(t, mr.Exists("session:s1"))

	n, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionStore_CorruptValueIsDropped(t *testing.T) {
	store, mr := setupSessionStore(t)
	require.NoError(t, mr.Set("session:bad", "{not json"))

	_, err := store.GetSession(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, mr.Exists("session:bad"))
}
