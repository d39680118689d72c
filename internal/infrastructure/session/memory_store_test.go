package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/gateway/internal/domain/storefront"
)

func newStoredSession() *storefront.Session {
	session := storefront.NewSession("gid://shopify/Customer/7001", "ada@example.com")
	session.AccessToken = "shcat_access"
	session.RefreshToken = "shcrt_refresh"
	session.IDToken = "header.payload.signature"
	session.TokenExpiresAt = time.Now().Add(2 * time.Hour).UTC()
	return session
}

func TestMemorySessionStore_SaveAndGet(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("round-trips a session", func(t *testing.T) {
		session := newStoredSession()

		require.NoError(t, store.Save(ctx, session, time.Hour))

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.CustomerID, got.CustomerID)
		assert.Equal(t, session.Email, got.Email)
		assert.Equal(t, session.AccessToken, got.AccessToken)
		assert.Equal(t, session.RefreshToken, got.RefreshToken)
	})

	t.Run("returns a copy, not the stored value", func(t *testing.T) {
		session := newStoredSession()
		require.NoError(t, store.Save(ctx, session, time.Hour))

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		got.AccessToken = "mutated"

		again, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "shcat_access", again.AccessToken)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, storefront.ErrSessionNotFound)
	})

	t.Run("expired session", func(t *testing.T) {
		session := newStoredSession()
		require.NoError(t, store.Save(ctx, session, 10*time.Millisecond))

		time.Sleep(20 * time.Millisecond)

		_, err := store.Get(ctx, session.ID)
		assert.ErrorIs(t, err, storefront.ErrSessionNotFound)
	})
}

func TestMemorySessionStore_Delete(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()
	session := newStoredSession()
	require.NoError(t, store.Save(ctx, session, time.Hour))

	require.NoError(t, store.Delete(ctx, session.ID))

	_, err := store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, storefront.ErrSessionNotFound)

	// Deleting an absent session is not an error
	assert.NoError(t, store.Delete(ctx, uuid.New()))
}

func TestMemorySessionStore_Touch(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("extends the TTL and bumps LastSeenAt", func(t *testing.T) {
		session := newStoredSession()
		before := session.LastSeenAt
		require.NoError(t, store.Save(ctx, session, 50*time.Millisecond))

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, store.Touch(ctx, session.ID, time.Hour))

		// Past the original deadline, the touched session must still exist
		time.Sleep(60 * time.Millisecond)
		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, got.LastSeenAt.After(before))
	})

	t.Run("unknown session", func(t *testing.T) {
		err := store.Touch(ctx, uuid.New(), time.Hour)
		assert.ErrorIs(t, err, storefront.ErrSessionNotFound)
	})

	t.Run("expired session", func(t *testing.T) {
		session := newStoredSession()
		require.NoError(t, store.Save(ctx, session, 10*time.Millisecond))

		time.Sleep(20 * time.Millisecond)

		err := store.Touch(ctx, session.ID, time.Hour)
		assert.ErrorIs(t, err, storefront.ErrSessionNotFound)
	})
}

func TestMemorySessionStore_Cleanup(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	shortLived := newStoredSession()
	longLived := newStoredSession()
	require.NoError(t, store.Save(ctx, shortLived, 10*time.Millisecond))
	require.NoError(t, store.Save(ctx, longLived, time.Hour))
	assert.Equal(t, 2, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	_, err := store.Get(ctx, longLived.ID)
	assert.NoError(t, err)
}

func TestMemorySessionStore_Close(t *testing.T) {
	store := NewMemorySessionStore()

	assert.NoError(t, store.Close())
	// Close is idempotent
	assert.NoError(t, store.Close())
}

func newStoredLoginState() *storefront.LoginState {
	return &storefront.LoginState{
		State:     uuid.New().String(),
		Verifier:  "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		Nonce:     "nonce-123",
		ReturnTo:  "com.shop.app://callback",
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryLoginStateStore_Take(t *testing.T) {
	store := NewMemoryLoginStateStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("returns the saved state once", func(t *testing.T) {
		state := newStoredLoginState()
		require.NoError(t, store.Save(ctx, state, time.Minute))

		got, err := store.Take(ctx, state.State)
		require.NoError(t, err)
		assert.Equal(t, state.Verifier, got.Verifier)
		assert.Equal(t, state.Nonce, got.Nonce)
		assert.Equal(t, state.ReturnTo, got.ReturnTo)

		// Second take must fail, the state is single use
		_, err = store.Take(ctx, state.State)
		assert.ErrorIs(t, err, storefront.ErrLoginStateNotFound)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := store.Take(ctx, "never-saved")
		assert.ErrorIs(t, err, storefront.ErrLoginStateNotFound)
	})

	t.Run("expired state", func(t *testing.T) {
		state := newStoredLoginState()
		require.NoError(t, store.Save(ctx, state, 10*time.Millisecond))

		time.Sleep(20 * time.Millisecond)

		_, err := store.Take(ctx, state.State)
		assert.ErrorIs(t, err, storefront.ErrLoginStateNotFound)
	})
}

func TestMemoryLoginStateStore_ConcurrentTake(t *testing.T) {
	store := NewMemoryLoginStateStore()
	defer store.Close()

	ctx := context.Background()
	state := newStoredLoginState()
	require.NoError(t, store.Save(ctx, state, time.Minute))

	const numGoroutines = 50
	results := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			_, err := store.Take(ctx, state.State)
			results <- err == nil
		}()
	}

	wins := 0
	for i := 0; i < numGoroutines; i++ {
		if <-results {
			wins++
		}
	}

	// Exactly one goroutine may complete the login
	assert.Equal(t, 1, wins)
}

func TestMemoryLoginStateStore_Cleanup(t *testing.T) {
	store := NewMemoryLoginStateStore()
	defer store.Close()

	ctx := context.Background()

	expiring := newStoredLoginState()
	fresh := newStoredLoginState()
	require.NoError(t, store.Save(ctx, expiring, 10*time.Millisecond))
	require.NoError(t, store.Save(ctx, fresh, time.Hour))

	time.Sleep(20 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
}
