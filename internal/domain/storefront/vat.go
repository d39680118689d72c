package storefront

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ExemptionStatus
// ---------------------------------------------------------------------------

// ExemptionStatus is the review state of a VAT-exemption request.
type ExemptionStatus string

const (
	// ExemptionSubmitted means the request was forwarded to Shopify and
	// awaits merchant review.
	ExemptionSubmitted ExemptionStatus = "SUBMITTED"
	// ExemptionApproved means the merchant accepted the request.
	ExemptionApproved ExemptionStatus = "APPROVED"
	// ExemptionRejected means the merchant declined the request.
	ExemptionRejected ExemptionStatus = "REJECTED"
)

// IsValid returns true if the status is valid.
func (s ExemptionStatus) IsValid() bool {
	switch s {
	case ExemptionSubmitted, ExemptionApproved, ExemptionRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of ExemptionStatus.
func (s ExemptionStatus) String() string {
	return string(s)
}

// IsFinal returns true for terminal states.
func (s ExemptionStatus) IsFinal() bool {
	return s == ExemptionApproved || s == ExemptionRejected
}

// ---------------------------------------------------------------------------
// VAT number validation
// ---------------------------------------------------------------------------

// vatFormats maps ISO country codes to the national VAT number format,
// matched against the normalized number including its country prefix.
// Greece uses the EL prefix per EU convention.
var vatFormats = map[string]*regexp.Regexp{
	"AT": regexp.MustCompile(`^ATU\d{8}$`),
	"BE": regexp.MustCompile(`^BE[01]\d{9}$`),
	"BG": regexp.MustCompile(`^BG\d{9,10}$`),
	"CY": regexp.MustCompile(`^CY\d{8}[A-Z]$`),
	"CZ": regexp.MustCompile(`^CZ\d{8,10}$`),
	"DE": regexp.MustCompile(`^DE\d{9}$`),
	"DK": regexp.MustCompile(`^DK\d{8}$`),
	"EE": regexp.MustCompile(`^EE\d{9}$`),
	"ES": regexp.MustCompile(`^ES[A-Z0-9]\d{7}[A-Z0-9]$`),
	"FI": regexp.MustCompile(`^FI\d{8}$`),
	"FR": regexp.MustCompile(`^FR[A-Z0-9]{2}\d{9}$`),
	"GB": regexp.MustCompile(`^GB(\d{9}|\d{12}|(GD|HA)\d{3})$`),
	"GR": regexp.MustCompile(`^EL\d{9}$`),
	"HR": regexp.MustCompile(`^HR\d{11}$`),
	"HU": regexp.MustCompile(`^HU\d{8}$`),
	"IE": regexp.MustCompile(`^IE(\d{7}[A-Z]{1,2}|\d[A-Z0-9+*]\d{5}[A-Z])$`),
	"IT": regexp.MustCompile(`^IT\d{11}$`),
	"LT": regexp.MustCompile(`^LT(\d{9}|\d{12})$`),
	"LU": regexp.MustCompile(`^LU\d{8}$`),
	"LV": regexp.MustCompile(`^LV\d{11}$`),
	"MT": regexp.MustCompile(`^MT\d{8}$`),
	"NL": regexp.MustCompile(`^NL\d{9}B\d{2}$`),
	"PL": regexp.MustCompile(`^PL\d{10}$`),
	"PT": regexp.MustCompile(`^PT\d{9}$`),
	"RO": regexp.MustCompile(`^RO\d{2,10}$`),
	"SE": regexp.MustCompile(`^SE\d{12}$`),
	"SI": regexp.MustCompile(`^SI\d{8}$`),
	"SK": regexp.MustCompile(`^SK\d{10}$`),
}

// genericVATFormat accepts numbers from countries without a known format:
// a two-letter prefix followed by 2 to 13 alphanumerics.
var genericVATFormat = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{2,13}$`)

// NormalizeVATNumber uppercases the number and strips spaces, dots, and
// hyphens, the separators buyers habitually type.
func NormalizeVATNumber(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-':
			return -1
		}
		return r
	}, s)
}

// ValidateVATNumber checks a normalized VAT number against the national
// format for countryCode. Countries without a known format get the generic
// prefix check only; format validity does not imply the number is
// registered, that is the merchant's review step.
func ValidateVATNumber(countryCode, vatNumber string) error {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(cc) != 2 || cc[0] < 'A' || cc[0] > 'Z' || cc[1] < 'A' || cc[1] > 'Z' {
		return fmt.Errorf("%w: %q", ErrExemptionInvalidCountry, countryCode)
	}
	if vatNumber == "" {
		return fmt.Errorf("%w: empty", ErrExemptionInvalidVATNumber)
	}
	format, ok := vatFormats[cc]
	if !ok {
		format = genericVATFormat
	}
	if !format.MatchString(vatNumber) {
		return fmt.Errorf("%w: %q does not match the %s format", ErrExemptionInvalidVATNumber, vatNumber, cc)
	}
	return nil
}

// ---------------------------------------------------------------------------
// ExemptionRequest
// ---------------------------------------------------------------------------

// ExemptionRequest is the audit record of one VAT-exemption submission.
// Shopify holds the authoritative state (metafield + tags); this row exists
// so the merchant can trace who submitted what and when.
type ExemptionRequest struct {
	// ID is the gateway-assigned request ID.
	ID uuid.UUID
	// CustomerID is the Shopify customer GID.
	CustomerID string
	// Email is the customer email at submission time.
	Email string
	// VATNumber is the normalized VAT number.
	VATNumber string
	// CountryCode is the ISO country code the number was validated against.
	CountryCode string
	// CompanyName is the buyer-entered company name, may be empty.
	CompanyName string
	// Status is the review state.
	Status ExemptionStatus
	// CreatedAt is when the request was submitted.
	CreatedAt time.Time
	// UpdatedAt is when the status last changed.
	UpdatedAt time.Time
}

// NewExemptionRequest validates and normalizes the submission into an
// auditable request in the SUBMITTED state.
func NewExemptionRequest(customerID, email, vatNumber, countryCode, companyName string) (*ExemptionRequest, error) {
	normalized := NormalizeVATNumber(vatNumber)
	if err := ValidateVATNumber(countryCode, normalized); err != nil {
		return nil, err
	}
	if !ValidGID(customerID, "Customer") {
		return nil, fmt.Errorf("%w: %q", ErrExemptionCustomerUnknown, customerID)
	}
	now := time.Now().UTC()
	return &ExemptionRequest{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Email:       email,
		VATNumber:   normalized,
		CountryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
		CompanyName: strings.TrimSpace(companyName),
		Status:      ExemptionSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ExemptionRepository persists exemption requests.
type ExemptionRepository interface {
	// Create inserts a new request.
	Create(ctx context.Context, req *ExemptionRequest) error

	// FindByID returns the request or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*ExemptionRequest, error)

	// FindByCustomer returns the customer's requests, newest first.
	FindByCustomer(ctx context.Context, customerID string, limit int) ([]ExemptionRequest, error)

	// HasPending reports whether the customer already has a SUBMITTED
	// request for the same VAT number.
	HasPending(ctx context.Context, customerID, vatNumber string) (bool, error)
}
