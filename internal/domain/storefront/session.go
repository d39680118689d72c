package storefront

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of an authenticated customer. The
// Shopify tokens never leave the gateway; clients only ever hold the
// gateway's own token pair, whose claims reference the session by ID.
type Session struct {
	// ID is the gateway-assigned session ID.
	ID uuid.UUID
	// CustomerID is the customer GID the session belongs to.
	CustomerID string
	// Email is the account email, used to scope VAT operations.
	Email string
	// AccessToken is the Customer Account API access token.
	AccessToken string
	// RefreshToken is the Customer Account API refresh token.
	RefreshToken string
	// IDToken is the OIDC ID token, needed for the logout redirect.
	IDToken string
	// TokenExpiresAt is when AccessToken stops working.
	TokenExpiresAt time.Time
	// CreatedAt is when the customer logged in.
	CreatedAt time.Time
	// LastSeenAt is the last authenticated request, drives the sliding TTL.
	LastSeenAt time.Time
}

// NewSession creates a session for a freshly authenticated customer.
func NewSession(customerID, email string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.New(),
		CustomerID: customerID,
		Email:      email,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// TokenExpired reports whether the Shopify access token has expired.
func (s *Session) TokenExpired(now time.Time) bool {
	return !s.TokenExpiresAt.IsZero() && !now.Before(s.TokenExpiresAt)
}

// NeedsRefresh reports whether the Shopify access token is expired or will
// expire within the leeway window.
func (s *Session) NeedsRefresh(now time.Time, leeway time.Duration) bool {
	if s.TokenExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.TokenExpiresAt)
}

// LoginState is the one-shot state of a login attempt awaiting its OAuth
// callback. It is deleted the moment the callback consumes it.
type LoginState struct {
	// State is the random value round-tripped through the authorize URL.
	State string
	// Verifier is the PKCE code verifier for the token exchange.
	Verifier string
	// Nonce is the OIDC nonce expected back in the ID token.
	Nonce string
	// ReturnTo is the allowlisted deep link to redirect to after login,
	// empty for a plain JSON response.
	ReturnTo string
	// CreatedAt is when the login began.
	CreatedAt time.Time
}

// SessionStore persists sessions under a TTL.
type SessionStore interface {
	// Save writes the session with the given TTL, replacing any prior value.
	Save(ctx context.Context, session *Session, ttl time.Duration) error

	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Touch extends the session's TTL and updates LastSeenAt.
	Touch(ctx context.Context, id uuid.UUID, ttl time.Duration) error

	// Close closes the store and releases resources.
	Close() error
}

// LoginStateStore persists login states under a short TTL.
type LoginStateStore interface {
	// Save writes the login state with the given TTL.
	Save(ctx context.Context, state *LoginState, ttl time.Duration) error

	// Take returns the login state and deletes it atomically, or
	// ErrLoginStateNotFound when absent, expired, or already taken.
	Take(ctx context.Context, state string) (*LoginState, error)

	// Close closes the store and releases resources.
	Close() error
}
