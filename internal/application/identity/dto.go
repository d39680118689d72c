package identity

import (
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// BeginLoginInput contains the input for starting a login attempt
type BeginLoginInput struct {
	// ReturnTo is an optional deep link to redirect to after login. It must
	// match the configured allowlist.
	ReturnTo string
}

// BeginLoginResult contains the authorization URL for the customer
type BeginLoginResult struct {
	// AuthorizeURL is where the client sends the customer to log in
	AuthorizeURL string
	// State identifies the attempt; it returns on the callback
	State string
}

// CompleteLoginInput contains the OAuth callback parameters
type CompleteLoginInput struct {
	State string
	Code  string
}

// TokenPairResult is the gateway token pair as login and refresh results
// carry it.
type TokenPairResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// LoginResult contains the gateway token pair issued for a new session
type LoginResult struct {
	TokenPairResult
	// Customer is the profile loaded during login
	Customer *storefront.Customer
	// ReturnTo is the deep link stored when the login began, empty for a
	// plain JSON response
	ReturnTo string
}

// RefreshInput contains the input for rotating the gateway token pair
type RefreshInput struct {
	RefreshToken string
}

// RefreshResult contains the rotated gateway token pair
type RefreshResult struct {
	TokenPairResult
}

// LogoutResult contains the Shopify logout URL for the client to visit
type LogoutResult struct {
	LogoutURL string
}

// OrdersInput contains the parameters of an order history request
type OrdersInput struct {
	First int
	After string
}
