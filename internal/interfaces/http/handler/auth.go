package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/application/identity"
	"github.com/storefront/gateway/internal/interfaces/http/dto"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
)

// AuthHandler exposes the customer login lifecycle over HTTP.
type AuthHandler struct {
	BaseHandler
	authService *identity.AuthService
}

// NewAuthHandler returns a handler backed by the given auth service.
func NewAuthHandler(authService *identity.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login starts a PKCE login and returns the authorization URL.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// The body is optional; EOF means the client sent none.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.authService.BeginLogin(c.Request.Context(), identity.BeginLoginInput{
		ReturnTo: req.ReturnTo,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LoginResponse{
		AuthorizeURL: result.AuthorizeURL,
		State:        result.State,
	})
}

// Callback completes the OAuth flow. Logins started with a return_to deep
// link get a 302 to that link with the token pair in the URL fragment;
// everything else gets JSON.
// GET /api/v1/auth/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	var query CallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if query.Error != "" {
		message := query.ErrorDescription
		if message == "" {
			message = "Shopify rejected the login"
		}
		h.ErrorWithCode(c, dto.ErrCodeAuthFailed, message)
		return
	}

	result, err := h.authService.CompleteLogin(c.Request.Context(), identity.CompleteLoginInput{
		State: query.State,
		Code:  query.Code,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.ReturnTo != "" {
		c.Redirect(http.StatusFound, deepLinkWithTokens(result))
		return
	}

	h.Success(c, CallbackResponse{
		Token:    newTokenResponse(result.TokenPairResult),
		Customer: newCustomerResponse(result.Customer),
	})
}

// deepLinkWithTokens appends the token pair to the deep link as a URL
// fragment. Fragments stay on the device: they are not sent with requests
// and never land in proxy or server logs along the redirect.
func deepLinkWithTokens(result *identity.LoginResult) string {
	fragment := url.Values{}
	fragment.Set("access_token", result.AccessToken)
	fragment.Set("refresh_token", result.RefreshToken)
	fragment.Set("token_type", result.TokenType)
	fragment.Set("expires_at", strconv.FormatInt(result.AccessTokenExpiresAt.Unix(), 10))
	return result.ReturnTo + "#" + fragment.Encode()
}

// RefreshToken rotates the gateway token pair.
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), identity.RefreshInput{
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RefreshTokenResponse{Token: newTokenResponse(result.TokenPairResult)})
}

// Logout deletes the session and returns the Shopify logout URL.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	result, err := h.authService.Logout(c.Request.Context(), session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LogoutResponse{LogoutURL: result.LogoutURL})
}
