package handler

import (
	"time"

	"github.com/storefront/gateway/internal/application/identity"
)

// =====================
// Auth Request DTOs
// =====================

// LoginRequest is the body for starting a PKCE login. It is optional; an
// empty body starts a login without a deep link.
type LoginRequest struct {
	ReturnTo string `json:"return_to" binding:"omitempty,max=2048"`
}

// CallbackQuery holds the OAuth callback query parameters. Error and
// ErrorDescription arrive instead of a code when the customer cancels.
type CallbackQuery struct {
	State            string `form:"state"`
	Code             string `form:"code"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// RefreshTokenRequest carries the refresh token being rotated.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// =====================
// Auth Response DTOs
// =====================

// LoginResponse carries the authorization URL the client opens for login.
type LoginResponse struct {
	AuthorizeURL string `json:"authorize_url"`
	State        string `json:"state"`
}

// TokenResponse is the gateway token pair as auth endpoints return it.
type TokenResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

func newTokenResponse(pair identity.TokenPairResult) TokenResponse {
	return TokenResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
	}
}

// CallbackResponse is the JSON shape of a completed login.
type CallbackResponse struct {
	Token    TokenResponse    `json:"token"`
	Customer CustomerResponse `json:"customer"`
}

// RefreshTokenResponse is the JSON shape of a rotated token pair.
type RefreshTokenResponse struct {
	Token TokenResponse `json:"token"`
}

// LogoutResponse carries the Shopify logout URL for the client to visit.
type LogoutResponse struct {
	LogoutURL string `json:"logout_url"`
}
