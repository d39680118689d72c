package storefront

import "time"

// ---------------------------------------------------------------------------
// Customer
// ---------------------------------------------------------------------------

// Address is a customer address as formatted by Shopify.
type Address struct {
	Address1    string
	Address2    string
	City        string
	Province    string
	Zip         string
	CountryCode string
	// Formatted is Shopify's display rendering, one line per element.
	Formatted []string
}

// Customer is the authenticated customer's profile.
type Customer struct {
	// ID is the customer GID.
	ID string
	// FirstName and LastName may be empty for email-only accounts.
	FirstName string
	LastName  string
	// DisplayName is Shopify's preferred display form.
	DisplayName string
	// Email is the account email address.
	Email string
	// Phone is the account phone number, may be empty.
	Phone string
	// DefaultAddress is the default shipping address, nil when unset.
	DefaultAddress *Address
	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// ---------------------------------------------------------------------------
// Order statuses
// ---------------------------------------------------------------------------

// FinancialStatus is the payment state of an order.
type FinancialStatus string

const (
	FinancialPending           FinancialStatus = "PENDING"
	FinancialAuthorized        FinancialStatus = "AUTHORIZED"
	FinancialPaid              FinancialStatus = "PAID"
	FinancialPartiallyPaid     FinancialStatus = "PARTIALLY_PAID"
	FinancialPartiallyRefunded FinancialStatus = "PARTIALLY_REFUNDED"
	FinancialRefunded          FinancialStatus = "REFUNDED"
	FinancialVoided            FinancialStatus = "VOIDED"
)

// IsValid returns true if the status is one Shopify emits.
func (s FinancialStatus) IsValid() bool {
	switch s {
	case FinancialPending, FinancialAuthorized, FinancialPaid, FinancialPartiallyPaid,
		FinancialPartiallyRefunded, FinancialRefunded, FinancialVoided:
		return true
	default:
		return false
	}
}

// String returns the string representation of FinancialStatus.
func (s FinancialStatus) String() string {
	return string(s)
}

// IsSettled returns true once the order needs no further payment action.
func (s FinancialStatus) IsSettled() bool {
	switch s {
	case FinancialPaid, FinancialRefunded, FinancialVoided:
		return true
	default:
		return false
	}
}

// FulfillmentStatus is the shipping state of an order.
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled        FulfillmentStatus = "UNFULFILLED"
	FulfillmentPartiallyFulfilled FulfillmentStatus = "PARTIALLY_FULFILLED"
	FulfillmentFulfilled          FulfillmentStatus = "FULFILLED"
	FulfillmentOnHold             FulfillmentStatus = "ON_HOLD"
	FulfillmentScheduled          FulfillmentStatus = "SCHEDULED"
)

// IsValid returns true if the status is one Shopify emits.
func (s FulfillmentStatus) IsValid() bool {
	switch s {
	case FulfillmentUnfulfilled, FulfillmentPartiallyFulfilled, FulfillmentFulfilled,
		FulfillmentOnHold, FulfillmentScheduled:
		return true
	default:
		return false
	}
}

// String returns the string representation of FulfillmentStatus.
func (s FulfillmentStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderLineItem is one line of a placed order.
type OrderLineItem struct {
	// Title is the product title at purchase time.
	Title string
	// VariantTitle names the purchased variant, may be empty.
	VariantTitle string
	// Quantity is the purchased quantity.
	Quantity int
	// Price is the unit price paid.
	Price Money
	// Total is the line total paid.
	Total Money
	// Image is the line image, nil when unavailable.
	Image *Image
}

// Order is a placed order as the customer sees it.
type Order struct {
	// ID is the order GID.
	ID string
	// Name is the display name, e.g. "#1001".
	Name string
	// Number is the sequential order number.
	Number int
	// ProcessedAt is when the order was placed.
	ProcessedAt time.Time
	// FinancialStatus is the payment state.
	FinancialStatus FinancialStatus
	// FulfillmentStatus is the shipping state.
	FulfillmentStatus FulfillmentStatus
	// Subtotal is the merchandise total.
	Subtotal Money
	// TotalShipping is the shipping charge.
	TotalShipping Money
	// TotalTax is the tax charged.
	TotalTax Money
	// Total is the grand total paid.
	Total Money
	// LineItems are the purchased lines.
	LineItems []OrderLineItem
	// StatusPageURL is Shopify's order status page for this order.
	StatusPageURL string
}

// OrderPage is one page of a customer's order history.
type OrderPage struct {
	Orders   []Order
	PageInfo PageInfo
}
