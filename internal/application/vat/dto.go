package vat

import (
	"github.com/google/uuid"

	"github.com/storefront/gateway/internal/domain/storefront"
)

const (
	// defaultExemptionsLimit is used when the client names no limit
	defaultExemptionsLimit = 20
	// maxExemptionsLimit caps one audit listing
	maxExemptionsLimit = 100
)

// CustomerSearchInput carries a customer lookup by email. SessionEmail is
// the logged-in customer's email; the lookup is refused when they differ.
type CustomerSearchInput struct {
	Email        string
	SessionEmail string
}

// CustomerSearchResult reports whether the email belongs to a known
// customer and whether that customer is already VAT exempt.
type CustomerSearchResult struct {
	Found      bool
	CustomerID string
	Email      string
	Tags       []string
	VATExempt  bool
	VATNumber  string
}

// SubmitExemptionInput carries one VAT-exemption submission.
type SubmitExemptionInput struct {
	Email        string
	VATNumber    string
	CountryCode  string
	CompanyName  string
	SessionEmail string
}

// SubmitExemptionResult reports what the submission wrote to Shopify.
type SubmitExemptionResult struct {
	RequestID  uuid.UUID
	CustomerID string
	Status     storefront.ExemptionStatus
	TagsAdded  []string
	Metafield  *storefront.Metafield
}

// ListExemptionsInput pages through a customer's audit rows.
type ListExemptionsInput struct {
	CustomerID string
	Limit      int
}
