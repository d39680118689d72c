// Package shared holds the small domain kernel every layer may depend on.
// Today that is DomainError, the coded error the application services
// return and the HTTP layer translates into response envelopes.
package shared

// DomainError is an error with a stable machine-readable code. Services
// return it when a failure is part of the API contract; the HTTP layer maps
// the code to a status and serializes code and message into the error
// envelope. Anything that is not a DomainError surfaces as an opaque 500.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError builds a DomainError. The message is shown to storefront
// clients as-is, so it must not leak internals.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}
