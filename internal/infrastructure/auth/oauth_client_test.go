package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/gateway/internal/domain/storefront"
)

func newTestOAuthClientConfig() *OAuthClientConfig {
	return &OAuthClientConfig{
		ShopID:      "12345678",
		ClientID:    "shp_client_id",
		RedirectURI: "https://gateway.example.com/api/v1/auth/callback",
		Scopes:      []string{"openid", "email", "customer-account-api:full"},
		Timeout:     5 * time.Second,
	}
}

// newTestOAuthClient points the token endpoint at a local test server.
func newTestOAuthClient(serverURL string) *OAuthClient {
	cfg := newTestOAuthClientConfig()
	return &OAuthClient{
		clientID:     cfg.ClientID,
		redirectURI:  cfg.RedirectURI,
		scopes:       cfg.Scopes,
		authorizeURL: cfg.AuthorizeEndpoint(),
		tokenURL:     serverURL,
		logoutURL:    cfg.LogoutEndpoint(),
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestOAuthClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *OAuthClientConfig
		wantErr error
	}{
		{
			name:   "valid config",
			config: newTestOAuthClientConfig(),
		},
		{
			name: "missing shop id",
			config: &OAuthClientConfig{
				ClientID:    "shp_client_id",
				RedirectURI: "https://gateway.example.com/callback",
			},
			wantErr: ErrOAuthMissingShopID,
		},
		{
			name: "missing client id",
			config: &OAuthClientConfig{
				ShopID:      "12345678",
				RedirectURI: "https://gateway.example.com/callback",
			},
			wantErr: ErrOAuthMissingClientID,
		},
		{
			name: "missing redirect uri",
			config: &OAuthClientConfig{
				ShopID:   "12345678",
				ClientID: "shp_client_id",
			},
			wantErr: ErrOAuthMissingRedirectURI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOAuthClientConfig_ValidateDefaults(t *testing.T) {
	cfg := &OAuthClientConfig{
		ShopID:      "12345678",
		ClientID:    "shp_client_id",
		RedirectURI: "https://gateway.example.com/callback",
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"openid", "email", "customer-account-api:full"}, cfg.Scopes)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestOAuthClientConfig_Endpoints(t *testing.T) {
	cfg := newTestOAuthClientConfig()

	assert.Equal(t, "https://shopify.com/authentication/12345678/oauth/authorize", cfg.AuthorizeEndpoint())
	assert.Equal(t, "https://shopify.com/authentication/12345678/oauth/token", cfg.TokenEndpoint())
	assert.Equal(t, "https://shopify.com/authentication/12345678/logout", cfg.LogoutEndpoint())
}

func TestNewOAuthClient_InvalidConfig(t *testing.T) {
	_, err := NewOAuthClient(&OAuthClientConfig{})

	assert.ErrorIs(t, err, ErrOAuthMissingShopID)
}

func TestOAuthClient_AuthorizeURL(t *testing.T) {
	client, err := NewOAuthClient(newTestOAuthClientConfig())
	require.NoError(t, err)

	raw := client.AuthorizeURL("state-123", "nonce-456", "challenge-789")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "shopify.com", u.Host)
	assert.Equal(t, "/authentication/12345678/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "shp_client_id", q.Get("client_id"))
	assert.Equal(t, "https://gateway.example.com/api/v1/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email customer-account-api:full", q.Get("scope"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "nonce-456", q.Get("nonce"))
	assert.Equal(t, "challenge-789", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestOAuthClient_ExchangeCode(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "shcat_access",
			"refresh_token": "shcrt_refresh",
			"id_token":      "header.payload.signature",
			"expires_in":    7200,
			"token_type":    "Bearer",
		})
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)

	tokens, err := client.ExchangeCode(context.Background(), "auth-code", "code-verifier")

	require.NoError(t, err)
	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "shp_client_id", gotForm.Get("client_id"))
	assert.Equal(t, "https://gateway.example.com/api/v1/auth/callback", gotForm.Get("redirect_uri"))
	assert.Equal(t, "auth-code", gotForm.Get("code"))
	assert.Equal(t, "code-verifier", gotForm.Get("code_verifier"))

	assert.Equal(t, "shcat_access", tokens.AccessToken)
	assert.Equal(t, "shcrt_refresh", tokens.RefreshToken)
	assert.Equal(t, "header.payload.signature", tokens.IDToken)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), tokens.ExpiresAt, 10*time.Second)
}

func TestOAuthClient_ExchangeCode_InvalidGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "code has expired",
		})
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)

	_, err := client.ExchangeCode(context.Background(), "stale-code", "verifier")

	assert.ErrorIs(t, err, storefront.ErrAuthFailed)
	assert.Contains(t, err.Error(), "code has expired")
}

func TestOAuthClient_ExchangeCode_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)

	_, err := client.ExchangeCode(context.Background(), "code", "verifier")

	assert.ErrorIs(t, err, storefront.ErrUnavailable)
}

func TestOAuthClient_ExchangeCode_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)

	_, err := client.ExchangeCode(context.Background(), "code", "verifier")

	assert.ErrorIs(t, err, storefront.ErrRateLimited)
}

func TestOAuthClient_ExchangeCode_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"expires_in": 7200})
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)

	_, err := client.ExchangeCode(context.Background(), "code", "verifier")

	assert.ErrorIs(t, err, storefront.ErrInvalidResponse)
}

func TestOAuthClient_ExchangeCode_UnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestOAuthClient(server.URL)

	_, err := client.ExchangeCode(context.Background(), "code", "verifier")

	assert.ErrorIs(t, err, storefront.ErrUnavailable)
}

func TestOAuthClient_RefreshToken(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "shcat_rotated",
			"refresh_token": "shcrt_rotated",
			"expires_in":    7200,
			"token_type":    "Bearer",
		})
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)

	tokens, err := client.RefreshToken(context.Background(), "shcrt_old")

	require.NoError(t, err)
	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "shp_client_id", gotForm.Get("client_id"))
	assert.Equal(t, "shcrt_old", gotForm.Get("refresh_token"))

	assert.Equal(t, "shcat_rotated", tokens.AccessToken)
	assert.Equal(t, "shcrt_rotated", tokens.RefreshToken)
	assert.Empty(t, tokens.IDToken)
}

func TestOAuthClient_LogoutURL(t *testing.T) {
	client, err := NewOAuthClient(newTestOAuthClientConfig())
	require.NoError(t, err)

	raw := client.LogoutURL("the-id-token")

	u, parseErr := url.Parse(raw)
	require.NoError(t, parseErr)
	assert.Equal(t, "/authentication/12345678/logout", u.Path)
	assert.Equal(t, "the-id-token", u.Query().Get("id_token_hint"))
}

func TestOAuthClient_LogoutURL_NoIDToken(t *testing.T) {
	client, err := NewOAuthClient(newTestOAuthClientConfig())
	require.NoError(t, err)

	raw := client.LogoutURL("")

	assert.Equal(t, "https://shopify.com/authentication/12345678/logout", raw)
}

// signTestIDToken builds a signed JWT carrying the given nonce. Nonce
// verification parses without checking the signature, so any key works.
func signTestIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("shopify-side-secret"))
	require.NoError(t, err)
	return signed
}

func TestVerifyIDTokenNonce(t *testing.T) {
	idToken := signTestIDToken(t, jwt.MapClaims{
		"sub":   "gid://shopify/Customer/7001",
		"nonce": "expected-nonce",
	})

	assert.NoError(t, VerifyIDTokenNonce(idToken, "expected-nonce"))
}

func TestVerifyIDTokenNonce_Mismatch(t *testing.T) {
	idToken := signTestIDToken(t, jwt.MapClaims{"nonce": "other-nonce"})

	err := VerifyIDTokenNonce(idToken, "expected-nonce")

	assert.ErrorIs(t, err, storefront.ErrAuthFailed)
}

func TestVerifyIDTokenNonce_MissingNonce(t *testing.T) {
	idToken := signTestIDToken(t, jwt.MapClaims{"sub": "gid://shopify/Customer/7001"})

	err := VerifyIDTokenNonce(idToken, "expected-nonce")

	assert.ErrorIs(t, err, storefront.ErrAuthFailed)
}

func TestVerifyIDTokenNonce_Malformed(t *testing.T) {
	err := VerifyIDTokenNonce("not-a-jwt", "expected-nonce")

	assert.ErrorIs(t, err, storefront.ErrAuthFailed)
}
