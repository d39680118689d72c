package dto

import "net/http"

// Error codes surfaced by the API. Application services produce these as
// domain error codes; the handlers map them to HTTP statuses here.

// Input error codes
const (
	// ErrCodeValidation is used when input fails validation, including
	// Shopify userErrors surfaced from mutations
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeBadRequest is used for malformed requests (unparseable JSON,
	// wrong content type)
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeRequestTooLarge is used when the body exceeds the size limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeAuthFailed is used when a login attempt is rejected
	ErrCodeAuthFailed = "AUTH_FAILED"
	// ErrCodeTokenExpired is used when the gateway token has expired
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the gateway token is invalid
	ErrCodeTokenInvalid = "TOKEN_INVALID"
	// ErrCodeSessionExpired is used when the server-side session is gone
	ErrCodeSessionExpired = "SESSION_EXPIRED"
	// ErrCodeForbidden is used when the session may not touch the resource
	ErrCodeForbidden = "FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when the product, cart, order or exemption
	// does not exist
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadySubmitted is used when a duplicate VAT exemption
	// request is still pending review
	ErrCodeAlreadySubmitted = "ALREADY_SUBMITTED"
)

// Upstream and availability error codes
const (
	// ErrCodeRateLimited is used when Shopify or the gateway throttles
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeUpstreamFailed is used when Shopify is unreachable or errors
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
	// ErrCodeUnavailable is used when the gateway is misconfigured or a
	// required backing service is down
	ErrCodeUnavailable = "UNAVAILABLE"
	// ErrCodeInternal is used for unexpected gateway-side failures
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps API error codes to response statuses.
var ErrorCodeHTTPStatus = map[string]int{
	// Input errors
	ErrCodeValidation:      http.StatusUnprocessableEntity,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Auth errors
	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeAuthFailed:     http.StatusUnauthorized,
	ErrCodeTokenExpired:   http.StatusUnauthorized,
	ErrCodeTokenInvalid:   http.StatusUnauthorized,
	ErrCodeSessionExpired: http.StatusUnauthorized,
	ErrCodeForbidden:      http.StatusForbidden,

	// Resource errors
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeAlreadySubmitted: http.StatusConflict,

	// Upstream and availability
	ErrCodeRateLimited:    http.StatusTooManyRequests,
	ErrCodeUpstreamFailed: http.StatusBadGateway,
	ErrCodeUnavailable:    http.StatusServiceUnavailable,
	ErrCodeInternal:       http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
