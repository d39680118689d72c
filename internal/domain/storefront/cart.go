package storefront

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Cart value objects
// ---------------------------------------------------------------------------

// Merchandise is the variant a cart line points at, denormalized with the
// product fields a line rendering needs.
type Merchandise struct {
	// VariantID is the variant GID.
	VariantID string
	// Title is the variant title.
	Title string
	// SKU is the variant SKU, may be empty.
	SKU string
	// Price is the variant's unit price.
	Price Money
	// ProductID is the parent product GID.
	ProductID string
	// ProductHandle is the parent product's URL slug.
	ProductHandle string
	// ProductTitle is the parent product's title.
	ProductTitle string
	// Image is the line image, nil when neither variant nor product has one.
	Image *Image
}

// CartLine is one line of a cart.
type CartLine struct {
	// ID is the line GID used for updates and removal.
	ID string
	// Quantity is the ordered quantity.
	Quantity int
	// Total is the line total after line-level discounts.
	Total Money
	// Merchandise is the variant this line holds.
	Merchandise Merchandise
}

// CartCost aggregates the cart's money totals.
type CartCost struct {
	// Subtotal is the merchandise total before taxes and duties.
	Subtotal Money
	// Total is the amount the buyer pays at checkout.
	Total Money
	// TotalTax is the tax portion, zero-valued when Shopify has not
	// estimated it yet.
	TotalTax Money
	// TotalDuty is the duty portion, zero-valued when not applicable.
	TotalDuty Money
}

// DiscountCode is a discount code attached to a cart.
type DiscountCode struct {
	Code string
	// Applicable reports whether the code currently applies to the cart.
	Applicable bool
}

// BuyerIdentity is the identity Shopify has associated with a cart.
type BuyerIdentity struct {
	Email       string
	CountryCode string
	// CustomerID is the customer GID when the cart is bound to an
	// authenticated customer.
	CustomerID string
}

// Cart is a Shopify-owned cart. The gateway never stores carts; the GID is
// the only handle.
type Cart struct {
	// ID is the cart GID.
	ID string
	// CheckoutURL is the Shopify web checkout for this cart.
	CheckoutURL string
	// TotalQuantity is the sum of line quantities.
	TotalQuantity int
	// Note is the buyer's cart note.
	Note string
	// Cost aggregates the cart totals.
	Cost CartCost
	// Lines are the cart lines.
	Lines []CartLine
	// DiscountCodes are the attached discount codes.
	DiscountCodes []DiscountCode
	// BuyerIdentity is the buyer Shopify associates with the cart.
	BuyerIdentity BuyerIdentity
	// CreatedAt is when Shopify created the cart.
	CreatedAt time.Time
	// UpdatedAt is when Shopify last modified the cart.
	UpdatedAt time.Time
}

// ---------------------------------------------------------------------------
// Cart inputs
// ---------------------------------------------------------------------------

// CartLineInput adds a variant to a cart.
type CartLineInput struct {
	// MerchandiseID is the variant GID to add.
	MerchandiseID string
	// Quantity must be at least 1.
	Quantity int
}

// Validate checks the input before it is sent to Shopify.
func (i CartLineInput) Validate() error {
	if !ValidGID(i.MerchandiseID, "ProductVariant") {
		return fmt.Errorf("%w: merchandise id %q is not a variant gid", ErrUserRejected, i.MerchandiseID)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrUserRejected)
	}
	return nil
}

// CartLineUpdate changes the quantity of an existing line.
// A quantity of zero removes the line, matching Shopify's semantics.
type CartLineUpdate struct {
	// LineID is the cart line GID.
	LineID string
	// Quantity is the new quantity, zero to remove.
	Quantity int
}

// Validate checks the update before it is sent to Shopify.
func (u CartLineUpdate) Validate() error {
	if u.LineID == "" {
		return fmt.Errorf("%w: line id is required", ErrUserRejected)
	}
	if u.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrUserRejected)
	}
	return nil
}

// BuyerIdentityInput updates the buyer identity of a cart. Zero-valued
// fields are omitted from the mutation.
type BuyerIdentityInput struct {
	Email       string
	CountryCode string
	// CustomerAccessToken binds the cart to an authenticated customer so
	// checkout starts logged in. Never exposed to clients.
	CustomerAccessToken string
}

// CartInput creates a new cart.
type CartInput struct {
	Lines         []CartLineInput
	BuyerIdentity *BuyerIdentityInput
	Note          string
}

// Validate checks every initial line.
func (i CartInput) Validate() error {
	for _, line := range i.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	return nil
}
