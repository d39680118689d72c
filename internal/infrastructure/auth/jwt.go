// Package auth issues and checks the gateway's own credentials: the JWT
// session-token pair the browser holds, the OAuth client for Shopify's
// Customer Account token endpoints, and the PKCE material the login flow
// needs. Gateway JWTs reference the server-side session by ID only, so
// Shopify tokens never reach the browser.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/config"
)

// TokenType distinguishes the two halves of a session token pair.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken     = errors.New("token is invalid")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("wrong token type for this operation")
	ErrInvalidClaims    = errors.New("token claims are malformed")
	ErrTokenNotYetValid = errors.New("token is not valid yet")
	ErrMissingSessionID = errors.New("token carries no session reference")
)

// Claims are the gateway's JWT claims: a reference to the server-side
// session plus enough identity to tag logs and spans. The Shopify tokens
// themselves never appear in any claim.
type Claims struct {
	jwt.RegisteredClaims
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	Email      string    `json:"email,omitempty"`
	TokenType  TokenType `json:"token_type"`
}

// SessionUUID parses the session reference out of the claims.
func (c *Claims) SessionUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.SessionID)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return id, nil
}

// TokenPair is what a successful login or refresh hands the storefront.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"` // always Bearer
}

// JWTService signs and validates session token pairs with a single HMAC
// secret. Issuer and audience are pinned from configuration on both the
// signing and the verifying side.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
}

func NewJWTService(cfg config.SessionConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenExpiration,
		refreshTTL: cfg.RefreshTokenExpiration,
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
	}
}

// GenerateTokenPair mints the access and refresh tokens for a session. The
// refresh token carries the session reference but no email.
func (s *JWTService) GenerateTokenPair(session *storefront.Session) (*TokenPair, error) {
	now := time.Now()

	access, err := s.mint(s.claims(session, TokenTypeAccess, now))
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(s.claims(session, TokenTypeRefresh, now))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  now.Add(s.accessTTL),
		RefreshTokenExpiresAt: now.Add(s.refreshTTL),
		TokenType:             "Bearer",
	}, nil
}

func (s *JWTService) claims(session *storefront.Session, typ TokenType, now time.Time) *Claims {
	ttl := s.accessTTL
	email := session.Email
	if typ == TokenTypeRefresh {
		ttl = s.refreshTTL
		email = ""
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   session.CustomerID,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID:  session.ID.String(),
		CustomerID: session.CustomerID,
		Email:      email,
		TokenType:  typ,
	}
}

func (s *JWTService) mint(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateAccessToken checks an access token and returns its claims.
func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	return s.parse(token, TokenTypeAccess)
}

// ValidateRefreshToken checks a refresh token and returns its claims.
func (s *JWTService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.parse(token, TokenTypeRefresh)
}

// parse verifies signature, lifetime, issuer, and audience, then the
// gateway's own claims: the declared token type and the session reference.
func (s *JWTService) parse(token string, want TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYetValid
	case err != nil:
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != want {
		return nil, ErrInvalidTokenType
	}
	if claims.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	return claims, nil
}
