package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/auth"
	"github.com/storefront/gateway/internal/infrastructure/logger"
	"github.com/storefront/gateway/internal/interfaces/http/dto"
)

// Session context keys
const (
	SessionClaimsKey = "session_claims"
	SessionKey       = "session"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
)

// SessionAuthenticator validates gateway access tokens and resolves the
// server-side session behind them. The identity auth service implements it.
type SessionAuthenticator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
	LoadSession(ctx context.Context, claims *auth.Claims) (*storefront.Session, error)
}

// SessionAuth creates middleware that requires a valid gateway access token
// backed by a live session. The session is stored in the context for
// handlers, and its sliding TTL is extended as a side effect of loading it.
func SessionAuth(authenticator SessionAuthenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortAuthError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		claims, err := authenticator.ValidateAccessToken(token)
		if err != nil {
			code, message := classifyTokenError(err)
			if log != nil {
				log.Debug("Access token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			}
			abortAuthError(c, code, message)
			return
		}

		session, err := authenticator.LoadSession(c.Request.Context(), claims)
		if err != nil {
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) {
				abortAuthError(c, domainErr.Code, domainErr.Message)
				return
			}
			abortAuthError(c, dto.ErrCodeUnavailable, "Session store is unavailable")
			return
		}

		attachSession(c, claims, session)
		c.Next()
	}
}

// OptionalSessionAuth creates middleware that attaches the session when a
// valid token is presented but lets anonymous requests through untouched.
// Routes that merely personalize their behavior (buyer identity, checkout
// URL) use it.
func OptionalSessionAuth(authenticator SessionAuthenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := authenticator.ValidateAccessToken(token)
		if err != nil {
			c.Next()
			return
		}

		session, err := authenticator.LoadSession(c.Request.Context(), claims)
		if err != nil {
			if log != nil {
				log.Debug("Ignoring stale session on optional-auth route", zap.Error(err))
			}
			c.Next()
			return
		}

		attachSession(c, claims, session)
		c.Next()
	}
}

// bearerToken extracts the bearer token from the Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthHeaderKey)
	if header == "" || !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// classifyTokenError maps token validation failures onto API error codes
func classifyTokenError(err error) (code, message string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrInvalidTokenType):
		return dto.ErrCodeTokenInvalid, "Wrong token type"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return dto.ErrCodeTokenInvalid, "Token is not yet valid"
	default:
		return dto.ErrCodeTokenInvalid, "Invalid token"
	}
}

// attachSession stores the claims and session in the gin context and
// propagates session identity into the request context for logging.
func attachSession(c *gin.Context, claims *auth.Claims, session *storefront.Session) {
	c.Set(SessionClaimsKey, claims)
	c.Set(SessionKey, session)

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	ctx, log = logger.WithSessionID(ctx, log, session.ID.String())
	ctx, _ = logger.WithCustomerID(ctx, log, session.CustomerID)
	c.Request = c.Request.WithContext(ctx)
}

// abortAuthError rejects the request with the envelope and the status the
// error code maps to.
func abortAuthError(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, RequestIDFrom(c)))
}

// GetSession retrieves the session from gin.Context, or nil when the
// request is anonymous.
func GetSession(c *gin.Context) *storefront.Session {
	if value, exists := c.Get(SessionKey); exists {
		if session, ok := value.(*storefront.Session); ok {
			return session
		}
	}
	return nil
}

// GetSessionClaims retrieves the validated token claims from gin.Context
func GetSessionClaims(c *gin.Context) *auth.Claims {
	if value, exists := c.Get(SessionClaimsKey); exists {
		if claims, ok := value.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
