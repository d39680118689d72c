package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// sessionEntry holds a session value with its expiration
type sessionEntry struct {
	session   storefront.Session
	expiresAt time.Time
}

// MemorySessionStore implements SessionStore using an in-memory map.
// This is suitable for single-instance deployments and testing; sessions
// do not survive a restart and are not shared across instances.
type MemorySessionStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]sessionEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemorySessionStore creates an in-memory session store.
// It starts a background goroutine to clean up expired entries.
func NewMemorySessionStore() *MemorySessionStore {
	store := &MemorySessionStore{
		entries:  make(map[uuid.UUID]sessionEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Save writes the session with the given TTL, replacing any prior value
func (s *MemorySessionStore) Save(_ context.Context, session *storefront.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[session.ID] = sessionEntry{
		session:   *session,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns a copy of the session or ErrSessionNotFound
func (s *MemorySessionStore) Get(_ context.Context, id uuid.UUID) (*storefront.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[id]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, storefront.ErrSessionNotFound
	}

	session := e.session
	return &session, nil
}

// Delete removes the session; deleting an absent session is not an error
func (s *MemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// Touch extends the session's TTL and updates LastSeenAt
func (s *MemorySessionStore) Touch(_ context.Context, id uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists || time.Now().After(e.expiresAt) {
		return storefront.ErrSessionNotFound
	}

	e.session.LastSeenAt = time.Now().UTC()
	e.expiresAt = time.Now().Add(ttl)
	s.entries[id] = e
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemorySessionStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop sweeps expired sessions until Close.
func (s *MemorySessionStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Size reports the number of stored sessions. The active-sessions gauge
// reads it when this backend is selected.
func (s *MemorySessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ storefront.SessionStore = (*MemorySessionStore)(nil)

// loginStateEntry holds a pending login with its expiration
type loginStateEntry struct {
	state     storefront.LoginState
	expiresAt time.Time
}

// MemoryLoginStateStore implements LoginStateStore using an in-memory map
type MemoryLoginStateStore struct {
	mu        sync.Mutex
	entries   map[string]loginStateEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryLoginStateStore creates an in-memory login state store.
// It starts a background goroutine to clean up expired entries.
func NewMemoryLoginStateStore() *MemoryLoginStateStore {
	store := &MemoryLoginStateStore{
		entries:  make(map[string]loginStateEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Save writes the login state with the given TTL
func (s *MemoryLoginStateStore) Save(_ context.Context, state *storefront.LoginState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[state.State] = loginStateEntry{
		state:     *state,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Take returns the login state and deletes it in one step, so a state value
// can complete at most one login even under concurrent callbacks.
func (s *MemoryLoginStateStore) Take(_ context.Context, state string) (*storefront.LoginState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[state]
	if !exists {
		return nil, storefront.ErrLoginStateNotFound
	}
	delete(s.entries, state)

	if time.Now().After(e.expiresAt) {
		return nil, storefront.ErrLoginStateNotFound
	}

	loginState := e.state
	return &loginState, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryLoginStateStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop sweeps abandoned logins until Close. Most entries never reach
// it: a completed callback removes its state via Take.
func (s *MemoryLoginStateStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryLoginStateStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for state, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, state)
		}
	}
}

// Size reports the number of logins still waiting for their callback.
func (s *MemoryLoginStateStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ storefront.LoginStateStore = (*MemoryLoginStateStore)(nil)
