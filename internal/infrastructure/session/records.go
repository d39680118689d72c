package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// sessionRecord is the JSON shape a session is stored as. Records go through
// the sealer before hitting Redis, so the Shopify tokens never land in
// plaintext outside process memory.
type sessionRecord struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id"`
	Email          string    `json:"email"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	IDToken        string    `json:"id_token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

func newSessionRecord(s *storefront.Session) sessionRecord {
	return sessionRecord{
		ID:             s.ID.String(),
		CustomerID:     s.CustomerID,
		Email:          s.Email,
		AccessToken:    s.AccessToken,
		RefreshToken:   s.RefreshToken,
		IDToken:        s.IDToken,
		TokenExpiresAt: s.TokenExpiresAt,
		CreatedAt:      s.CreatedAt,
		LastSeenAt:     s.LastSeenAt,
	}
}

func (r sessionRecord) toDomain() (*storefront.Session, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", r.ID, err)
	}
	return &storefront.Session{
		ID:             id,
		CustomerID:     r.CustomerID,
		Email:          r.Email,
		AccessToken:    r.AccessToken,
		RefreshToken:   r.RefreshToken,
		IDToken:        r.IDToken,
		TokenExpiresAt: r.TokenExpiresAt,
		CreatedAt:      r.CreatedAt,
		LastSeenAt:     r.LastSeenAt,
	}, nil
}

// loginStateRecord is the JSON shape a pending login is stored as.
// The PKCE verifier makes these worth sealing too.
type loginStateRecord struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	Nonce     string    `json:"nonce"`
	ReturnTo  string    `json:"return_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newLoginStateRecord(s *storefront.LoginState) loginStateRecord {
	return loginStateRecord{
		State:     s.State,
		Verifier:  s.Verifier,
		Nonce:     s.Nonce,
		ReturnTo:  s.ReturnTo,
		CreatedAt: s.CreatedAt,
	}
}

func (r loginStateRecord) toDomain() *storefront.LoginState {
	return &storefront.LoginState{
		State:     r.State,
		Verifier:  r.Verifier,
		Nonce:     r.Nonce,
		ReturnTo:  r.ReturnTo,
		CreatedAt: r.CreatedAt,
	}
}
