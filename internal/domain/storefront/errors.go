package storefront

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Shopify API errors
	ErrNotConfigured   = errors.New("storefront: shopify api not configured")
	ErrUnavailable     = errors.New("storefront: shopify temporarily unavailable")
	ErrRequestFailed   = errors.New("storefront: shopify request failed")
	ErrInvalidResponse = errors.New("storefront: invalid shopify response")
	ErrAuthFailed      = errors.New("storefront: shopify authentication failed")
	ErrTokenExpired    = errors.New("storefront: customer token expired")
	ErrRateLimited     = errors.New("storefront: shopify rate limited")
	ErrNotFound        = errors.New("storefront: resource not found")
	ErrUserRejected    = errors.New("storefront: shopify rejected the input")

	// Session errors
	ErrSessionNotFound    = errors.New("storefront: session not found")
	ErrLoginStateNotFound = errors.New("storefront: login state not found or already used")

	// VAT exemption errors
	ErrExemptionInvalidVATNumber = errors.New("storefront: invalid vat number")
	ErrExemptionInvalidCountry   = errors.New("storefront: invalid country code")
	ErrExemptionCustomerUnknown  = errors.New("storefront: customer not found on shopify")
	ErrExemptionAlreadyPending   = errors.New("storefront: exemption request already pending")
)

// UserError is one field-level message from a mutation's userErrors array.
type UserError struct {
	// Field is the input path the error refers to, joined with dots.
	Field string
	// Message is Shopify's human-readable description.
	Message string
	// Code is the machine-readable error code, when provided.
	Code string
}

// MutationError carries the userErrors of a rejected mutation.
// It unwraps to ErrUserRejected so callers can classify it with errors.Is.
type MutationError struct {
	Operation  string
	UserErrors []UserError
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	if len(e.UserErrors) == 0 {
		return fmt.Sprintf("%s: rejected", e.Operation)
	}
	msgs := make([]string, 0, len(e.UserErrors))
	for _, ue := range e.UserErrors {
		if ue.Field != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", ue.Field, ue.Message))
			continue
		}
		msgs = append(msgs, ue.Message)
	}
	return fmt.Sprintf("%s: %s", e.Operation, strings.Join(msgs, "; "))
}

// Unwrap allows errors.Is(err, ErrUserRejected) to match.
func (e *MutationError) Unwrap() error {
	return ErrUserRejected
}
