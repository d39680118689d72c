package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/auth"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
)

// OAuthFlow is the part of the OAuth client the auth service drives. It is
// an interface so tests can run the flow without a live token endpoint.
type OAuthFlow interface {
	AuthorizeURL(state, nonce, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*auth.TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*auth.TokenSet, error)
	LogoutURL(idToken string) string
}

// AuthServiceConfig carries the session and OAuth timing knobs.
type AuthServiceConfig struct {
	// SessionTTL is the sliding session lifetime
	SessionTTL time.Duration
	// LoginStateTTL bounds how long an OAuth callback may take
	LoginStateTTL time.Duration
	// TokenRefreshLeeway refreshes Shopify tokens this long before expiry
	TokenRefreshLeeway time.Duration
	// AllowedReturnURLs is the deep-link allowlist for post-login redirects
	AllowedReturnURLs []string
}

// DefaultAuthServiceConfig matches the config package defaults.
func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{
		SessionTTL:         168 * time.Hour,
		LoginStateTTL:      10 * time.Minute,
		TokenRefreshLeeway: 60 * time.Second,
	}
}

// AuthService runs the customer login lifecycle: the PKCE authorization
// flow, the server-side session, and the gateway's own token pair. Shopify
// tokens never leave this service except toward Shopify itself.
type AuthService struct {
	oauth       OAuthFlow
	jwtService  *auth.JWTService
	sessions    storefront.SessionStore
	loginStates storefront.LoginStateStore
	customers   storefront.CustomerAccountAPI
	config      AuthServiceConfig
	metrics     *telemetry.GatewayMetrics
	logger      *zap.Logger
}

// NewAuthService wires the OAuth flow, token issuer and stores together.
func NewAuthService(
	oauth OAuthFlow,
	jwtService *auth.JWTService,
	sessions storefront.SessionStore,
	loginStates storefront.LoginStateStore,
	customers storefront.CustomerAccountAPI,
	config AuthServiceConfig,
	logger *zap.Logger,
) *AuthService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultAuthServiceConfig().SessionTTL
	}
	if config.LoginStateTTL <= 0 {
		config.LoginStateTTL = DefaultAuthServiceConfig().LoginStateTTL
	}
	if config.TokenRefreshLeeway <= 0 {
		config.TokenRefreshLeeway = DefaultAuthServiceConfig().TokenRefreshLeeway
	}
	return &AuthService{
		oauth:       oauth,
		jwtService:  jwtService,
		sessions:    sessions,
		loginStates: loginStates,
		customers:   customers,
		config:      config,
		logger:      logger,
	}
}

// SetMetrics installs the gateway metrics recorder. Wire it during startup;
// it is not safe to swap with requests in flight.
func (s *AuthService) SetMetrics(m *telemetry.GatewayMetrics) {
	s.metrics = m
}

// BeginLogin starts a PKCE login attempt: it generates the verifier, state
// and nonce, persists them as a one-shot login state, and returns the
// authorization URL the customer is sent to.
func (s *AuthService) BeginLogin(ctx context.Context, input BeginLoginInput) (*BeginLoginResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "begin_login")
	defer span.End()

	returnTo := strings.TrimSpace(input.ReturnTo)
	if returnTo != "" && !s.returnToAllowed(returnTo) {
		s.logger.Warn("Rejected return_to outside the allowlist", zap.String("return_to", returnTo))
		return nil, shared.NewDomainError("VALIDATION_ERROR", "return_to does not match the allowlist")
	}

	verifier, err := auth.NewCodeVerifier()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate login material")
	}
	state, err := auth.NewState()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate login material")
	}
	nonce, err := auth.NewNonce()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate login material")
	}

	loginState := &storefront.LoginState{
		State:     state,
		Verifier:  verifier,
		Nonce:     nonce,
		ReturnTo:  returnTo,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.loginStates.Save(ctx, loginState, s.config.LoginStateTTL); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to persist login state", zap.Error(err))
		return nil, shared.NewDomainError("UNAVAILABLE", "Login is temporarily unavailable")
	}

	s.logger.Info("Login started", zap.Bool("deep_link", returnTo != ""))

	return &BeginLoginResult{
		AuthorizeURL: s.oauth.AuthorizeURL(state, nonce, auth.CodeChallengeS256(verifier)),
		State:        state,
	}, nil
}

// CompleteLogin consumes the OAuth callback: it takes the one-shot login
// state, exchanges the code, verifies the ID token nonce, loads the customer
// profile, creates the session and issues the gateway token pair.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*LoginResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "complete_login")
	defer span.End()

	if input.State == "" || input.Code == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "state and code are required")
	}

	loginState, err := s.loginStates.Take(ctx, input.State)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, storefront.ErrLoginStateNotFound) {
			s.recordLogin(ctx, telemetry.AuthOutcomeExpired)
			s.logger.Warn("Callback with unknown or reused login state")
			return nil, shared.NewDomainError("AUTH_FAILED", "Login state is unknown, expired, or already used")
		}
		return nil, shared.NewDomainError("UNAVAILABLE", "Login is temporarily unavailable")
	}

	tokens, err := s.oauth.ExchangeCode(ctx, input.Code, loginState.Verifier)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordLogin(ctx, telemetry.AuthOutcomeFailure)
		s.logger.Warn("Token exchange failed", zap.Error(err))
		return nil, s.mapOAuthError(err)
	}

	if err := auth.VerifyIDTokenNonce(tokens.IDToken, loginState.Nonce); err != nil {
		telemetry.RecordError(span, err)
		s.recordLogin(ctx, telemetry.AuthOutcomeFailure)
		s.logger.Warn("ID token nonce verification failed")
		return nil, shared.NewDomainError("AUTH_FAILED", "ID token verification failed")
	}

	profile, err := s.customers.Profile(ctx, tokens.AccessToken)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordLogin(ctx, telemetry.AuthOutcomeFailure)
		s.logger.Error("Failed to load customer profile after login", zap.Error(err))
		return nil, s.mapOAuthError(err)
	}

	session := storefront.NewSession(profile.ID, profile.Email)
	session.AccessToken = tokens.AccessToken
	session.RefreshToken = tokens.RefreshToken
	session.IDToken = tokens.IDToken
	session.TokenExpiresAt = tokens.ExpiresAt

	if err := s.sessions.Save(ctx, session, s.config.SessionTTL); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to persist session", zap.Error(err))
		return nil, shared.NewDomainError("UNAVAILABLE", "Login is temporarily unavailable")
	}

	pair, err := s.jwtService.GenerateTokenPair(session)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Token pair generation failed", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate session tokens")
	}

	s.recordLogin(ctx, telemetry.AuthOutcomeSuccess)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSessionID, session.ID.String(),
		telemetry.SpanAttrCustomerID, session.CustomerID,
	)
	s.logger.Info("Customer logged in",
		zap.String("session_id", session.ID.String()),
		zap.String("customer_id", session.CustomerID))

	return &LoginResult{
		TokenPairResult: tokenPairResult(pair),
		Customer:        profile,
		ReturnTo:        loginState.ReturnTo,
	}, nil
}

func tokenPairResult(pair *auth.TokenPair) TokenPairResult {
	return TokenPairResult{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
	}
}

// Refresh rotates the gateway token pair against a valid refresh token.
// The Shopify token is refreshed too when it is inside the leeway window,
// and the session's sliding TTL is extended either way.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (*RefreshResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "refresh")
	defer span.End()

	claims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, auth.ErrExpiredToken) {
			s.recordTokenRefresh(ctx, telemetry.AuthOutcomeExpired)
			return nil, shared.NewDomainError("TOKEN_EXPIRED", "Refresh token expired")
		}
		s.recordTokenRefresh(ctx, telemetry.AuthOutcomeFailure)
		return nil, shared.NewDomainError("TOKEN_INVALID", "Refresh token is not valid")
	}

	sessionID, err := claims.SessionUUID()
	if err != nil {
		s.recordTokenRefresh(ctx, telemetry.AuthOutcomeFailure)
		return nil, shared.NewDomainError("TOKEN_INVALID", "Refresh token is not valid")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, storefront.ErrSessionNotFound) {
			s.recordTokenRefresh(ctx, telemetry.AuthOutcomeExpired)
			return nil, shared.NewDomainError("SESSION_EXPIRED", "Session has expired, please log in again")
		}
		s.recordTokenRefresh(ctx, telemetry.AuthOutcomeFailure)
		return nil, shared.NewDomainError("UNAVAILABLE", "Session store is unavailable")
	}

	if session.NeedsRefresh(time.Now(), s.config.TokenRefreshLeeway) {
		if _, err := s.EnsureFreshToken(ctx, session); err != nil {
			telemetry.RecordError(span, err)
			s.recordTokenRefresh(ctx, telemetry.AuthOutcomeFailure)
			return nil, err
		}
	} else if err := s.sessions.Touch(ctx, session.ID, s.config.SessionTTL); err != nil {
		// Not fatal: the pair still rotates, only the sliding TTL lags
		s.logger.Warn("Failed to extend session TTL", zap.String("session_id", session.ID.String()), zap.Error(err))
	}

	pair, err := s.jwtService.GenerateTokenPair(session)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordTokenRefresh(ctx, telemetry.AuthOutcomeFailure)
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate session tokens")
	}

	s.recordTokenRefresh(ctx, telemetry.AuthOutcomeSuccess)
	s.logger.Info("Token pair rotated", zap.String("session_id", session.ID.String()))

	return &RefreshResult{TokenPairResult: tokenPairResult(pair)}, nil
}

// EnsureFreshToken returns a Shopify access token that is valid for at
// least the refresh leeway, refreshing it against the token endpoint when
// needed. A successful refresh updates the session in place and in the
// store; a revoked refresh token deletes the session.
func (s *AuthService) EnsureFreshToken(ctx context.Context, session *storefront.Session) (string, error) {
	if !session.NeedsRefresh(time.Now(), s.config.TokenRefreshLeeway) {
		return session.AccessToken, nil
	}

	tokens, err := s.oauth.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		if errors.Is(err, storefront.ErrAuthFailed) {
			// Shopify revoked the refresh token; the session cannot recover.
			s.logger.Warn("Shopify refresh token revoked, deleting session",
				zap.String("session_id", session.ID.String()))
			if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
				s.logger.Error("Failed to delete dead session", zap.Error(delErr))
			}
			return "", shared.NewDomainError("SESSION_EXPIRED", "Session has expired, please log in again")
		}
		s.logger.Warn("Shopify token refresh failed", zap.Error(err))
		return "", s.mapOAuthError(err)
	}

	session.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		session.RefreshToken = tokens.RefreshToken
	}
	// Refresh grants carry no ID token; keep the login's for logout.
	session.TokenExpiresAt = tokens.ExpiresAt
	session.LastSeenAt = time.Now().UTC()

	if err := s.sessions.Save(ctx, session, s.config.SessionTTL); err != nil {
		s.logger.Error("Failed to persist refreshed session", zap.Error(err))
		return "", shared.NewDomainError("UNAVAILABLE", "Session store is unavailable")
	}

	s.logger.Debug("Shopify token refreshed", zap.String("session_id", session.ID.String()))
	return session.AccessToken, nil
}

// Logout deletes the session, which invalidates every gateway token that
// references it, and returns the Shopify logout URL for the client to visit.
func (s *AuthService) Logout(ctx context.Context, session *storefront.Session) (*LogoutResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "logout")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrSessionID, session.ID.String())

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to delete session", zap.String("session_id", session.ID.String()), zap.Error(err))
		return nil, shared.NewDomainError("UNAVAILABLE", "Session store is unavailable")
	}

	s.logger.Info("Customer logged out", zap.String("session_id", session.ID.String()))
	return &LogoutResult{LogoutURL: s.oauth.LogoutURL(session.IDToken)}, nil
}

// LoadSession returns the session behind validated access token claims, or
// SESSION_EXPIRED when the session is gone. The middleware uses it on every
// authenticated request.
func (s *AuthService) LoadSession(ctx context.Context, claims *auth.Claims) (*storefront.Session, error) {
	sessionID, err := claims.SessionUUID()
	if err != nil {
		return nil, shared.NewDomainError("TOKEN_INVALID", "Access token is not valid")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storefront.ErrSessionNotFound) {
			return nil, shared.NewDomainError("SESSION_EXPIRED", "Session has expired, please log in again")
		}
		return nil, shared.NewDomainError("UNAVAILABLE", "Session store is unavailable")
	}

	// Sliding TTL: every authenticated request keeps the session alive.
	if err := s.sessions.Touch(ctx, session.ID, s.config.SessionTTL); err != nil {
		s.logger.Warn("Failed to extend session TTL", zap.String("session_id", session.ID.String()), zap.Error(err))
	}

	return session, nil
}

// ValidateAccessToken validates a gateway access token and returns its
// claims. Exposed for the session middleware.
func (s *AuthService) ValidateAccessToken(token string) (*auth.Claims, error) {
	return s.jwtService.ValidateAccessToken(token)
}

// returnToAllowed reports whether returnTo matches the configured deep-link
// allowlist. Entries match by prefix so one entry covers path and query
// variants of the same callback.
func (s *AuthService) returnToAllowed(returnTo string) bool {
	for _, allowed := range s.config.AllowedReturnURLs {
		if allowed != "" && strings.HasPrefix(returnTo, allowed) {
			return true
		}
	}
	return false
}

// mapOAuthError converts token endpoint and profile errors into domain errors
func (s *AuthService) mapOAuthError(err error) error {
	switch {
	case errors.Is(err, storefront.ErrAuthFailed), errors.Is(err, storefront.ErrTokenExpired):
		return shared.NewDomainError("AUTH_FAILED", "Shopify rejected the login")
	case errors.Is(err, storefront.ErrRateLimited):
		return shared.NewDomainError("RATE_LIMITED", "Shopify is throttling requests, please retry shortly")
	case errors.Is(err, storefront.ErrUnavailable):
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify login is unreachable")
	default:
		return shared.NewDomainError("UPSTREAM_FAILED", "Login failed")
	}
}

// recordLogin records a login outcome when metrics are wired
func (s *AuthService) recordLogin(ctx context.Context, outcome telemetry.AuthOutcome) {
	if s.metrics != nil {
		s.metrics.RecordLogin(ctx, outcome)
	}
}

// recordTokenRefresh records a refresh outcome when metrics are wired
func (s *AuthService) recordTokenRefresh(ctx context.Context, outcome telemetry.AuthOutcome) {
	if s.metrics != nil {
		s.metrics.RecordTokenRefresh(ctx, outcome)
	}
}
