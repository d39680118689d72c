package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// Errors for OAuth client configuration
var (
	ErrOAuthMissingShopID      = errors.New("oauth: shop id is required")
	ErrOAuthMissingClientID    = errors.New("oauth: client id is required")
	ErrOAuthMissingRedirectURI = errors.New("oauth: redirect uri is required")
)

// maxTokenResponseSize caps token endpoint responses, which are small JSON
// documents; anything larger indicates a broken upstream.
const maxTokenResponseSize = 1 * 1024 * 1024

// defaultScopes is requested when the configuration names none.
var defaultScopes = []string{"openid", "email", "customer-account-api:full"}

// OAuthClientConfig holds configuration for the Customer Account OAuth client
type OAuthClientConfig struct {
	// ShopID is the numeric shop ID in the authentication URLs
	ShopID string
	// ClientID is the public OAuth client ID
	ClientID string
	// RedirectURI is the callback registered with Shopify
	RedirectURI string
	// Scopes requested at authorization
	Scopes []string
	// Timeout is the HTTP request timeout for the token endpoint
	Timeout time.Duration
}

// Validate validates the OAuth client configuration
func (c *OAuthClientConfig) Validate() error {
	if c.ShopID == "" {
		return ErrOAuthMissingShopID
	}
	if c.ClientID == "" {
		return ErrOAuthMissingClientID
	}
	if c.RedirectURI == "" {
		return ErrOAuthMissingRedirectURI
	}
	if len(c.Scopes) == 0 {
		c.Scopes = defaultScopes
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// AuthorizeEndpoint returns the authorization endpoint for this shop
func (c *OAuthClientConfig) AuthorizeEndpoint() string {
	return fmt.Sprintf("https://shopify.com/authentication/%s/oauth/authorize", c.ShopID)
}

// TokenEndpoint returns the token endpoint for this shop
func (c *OAuthClientConfig) TokenEndpoint() string {
	return fmt.Sprintf("https://shopify.com/authentication/%s/oauth/token", c.ShopID)
}

// LogoutEndpoint returns the front-channel logout endpoint for this shop
func (c *OAuthClientConfig) LogoutEndpoint() string {
	return fmt.Sprintf("https://shopify.com/authentication/%s/logout", c.ShopID)
}

// TokenSet is the Shopify token material issued by the token endpoint.
// It lives only in the server-side session, never in a client response.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	// IDToken is empty on refresh grants; keep the original for logout.
	IDToken   string
	ExpiresAt time.Time
}

// tokenResponse is the wire shape of a successful token endpoint response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// oauthErrorResponse is the wire shape of a token endpoint failure
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// OAuthClient drives the authorization-code + PKCE flow against the
// Customer Account API.
type OAuthClient struct {
	clientID     string
	redirectURI  string
	scopes       []string
	authorizeURL string
	tokenURL     string
	logoutURL    string
	httpClient   *http.Client
}

// NewOAuthClient creates an OAuth client with the given configuration
func NewOAuthClient(config *OAuthClientConfig) (*OAuthClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &OAuthClient{
		clientID:     config.ClientID,
		redirectURI:  config.RedirectURI,
		scopes:       config.Scopes,
		authorizeURL: config.AuthorizeEndpoint(),
		tokenURL:     config.TokenEndpoint(),
		logoutURL:    config.LogoutEndpoint(),
		httpClient:   &http.Client{Timeout: config.Timeout},
	}, nil
}

// AuthorizeURL builds the URL the customer is sent to for login.
func (c *OAuthClient) AuthorizeURL(state, nonce, codeChallenge string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(c.scopes, " "))
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	return c.authorizeURL + "?" + q.Encode()
}

// ExchangeCode swaps an authorization code and its PKCE verifier for tokens.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code, verifier string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("redirect_uri", c.redirectURI)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	return c.requestToken(ctx, form)
}

// RefreshToken exchanges a refresh token for a fresh token set.
// The response carries no ID token; callers keep the one from login.
func (c *OAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.clientID)
	form.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, form)
}

// LogoutURL builds the logout URL the client visits to end the Shopify
// session, passing the login's ID token as a hint.
func (c *OAuthClient) LogoutURL(idToken string) string {
	if idToken == "" {
		return c.logoutURL
	}
	q := url.Values{}
	q.Set("id_token_hint", idToken)
	return c.logoutURL + "?" + q.Encode()
}

// requestToken POSTs a form to the token endpoint and decodes the result
func (c *OAuthClient) requestToken(ctx context.Context, form url.Values) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storefront.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyTokenError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", storefront.ErrInvalidResponse, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", storefront.ErrInvalidResponse)
	}

	return &TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// classifyTokenError maps a token endpoint failure onto domain errors
func classifyTokenError(status int, body []byte) error {
	var oe oauthErrorResponse
	_ = json.Unmarshal(body, &oe)
	detail := oe.Error
	if oe.ErrorDescription != "" {
		detail = oe.ErrorDescription
	}
	if detail == "" {
		detail = fmt.Sprintf("status %d", status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", storefront.ErrRateLimited, detail)
	case status >= 500:
		return fmt.Errorf("%w: %s", storefront.ErrUnavailable, detail)
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", storefront.ErrAuthFailed, detail)
	default:
		return fmt.Errorf("%w: %s", storefront.ErrRequestFailed, detail)
	}
}

// VerifyIDTokenNonce checks that an ID token carries the nonce generated at
// login. The token arrives over TLS directly from the token endpoint, so
// only the nonce claim is inspected; no signature verification happens here.
func VerifyIDTokenNonce(idToken, wantNonce string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return fmt.Errorf("%w: malformed id token", storefront.ErrAuthFailed)
	}
	nonce, _ := claims["nonce"].(string)
	if nonce == "" || nonce != wantNonce {
		return fmt.Errorf("%w: id token nonce mismatch", storefront.ErrAuthFailed)
	}
	return nil
}
