package storefront

import "context"

// ---------------------------------------------------------------------------
// Shopify API ports
// ---------------------------------------------------------------------------

// StorefrontAPI is the port for Shopify's Storefront API: public catalog
// reads and cart mutations, authenticated by the shop's storefront token.
type StorefrontAPI interface {
	// Products lists or searches products.
	Products(ctx context.Context, query ProductQuery) (*ProductPage, error)

	// ProductByHandle returns one product or ErrNotFound.
	ProductByHandle(ctx context.Context, handle string) (*Product, error)

	// ProductRecommendations returns products related to the given product.
	ProductRecommendations(ctx context.Context, productID string) ([]Product, error)

	// Collections lists collections without expanding their products.
	Collections(ctx context.Context, first int, after string) (*CollectionPage, error)

	// CollectionByHandle returns one collection with a page of its products,
	// or ErrNotFound.
	CollectionByHandle(ctx context.Context, handle string, first int, after string) (*Collection, error)

	// CartCreate creates a cart, optionally with initial lines and buyer.
	CartCreate(ctx context.Context, input CartInput) (*Cart, error)

	// Cart returns the cart or ErrNotFound.
	Cart(ctx context.Context, cartID string) (*Cart, error)

	// CartLinesAdd adds lines and returns the updated cart.
	CartLinesAdd(ctx context.Context, cartID string, lines []CartLineInput) (*Cart, error)

	// CartLinesUpdate changes line quantities and returns the updated cart.
	CartLinesUpdate(ctx context.Context, cartID string, lines []CartLineUpdate) (*Cart, error)

	// CartLinesRemove removes lines and returns the updated cart.
	CartLinesRemove(ctx context.Context, cartID string, lineIDs []string) (*Cart, error)

	// CartDiscountCodesUpdate replaces the cart's discount codes.
	CartDiscountCodesUpdate(ctx context.Context, cartID string, codes []string) (*Cart, error)

	// CartBuyerIdentityUpdate updates the cart's buyer identity.
	CartBuyerIdentityUpdate(ctx context.Context, cartID string, buyer BuyerIdentityInput) (*Cart, error)
}

// CustomerAccountAPI is the port for Shopify's Customer Account API,
// authenticated per-call with the customer's own access token.
type CustomerAccountAPI interface {
	// Profile returns the customer behind the token.
	Profile(ctx context.Context, accessToken string) (*Customer, error)

	// Orders returns a page of the customer's orders, newest first.
	Orders(ctx context.Context, accessToken string, first int, after string) (*OrderPage, error)

	// Order returns one order or ErrNotFound.
	Order(ctx context.Context, accessToken string, orderID string) (*Order, error)
}

// ---------------------------------------------------------------------------
// Admin API port
// ---------------------------------------------------------------------------

// CustomerSummary is the Admin API's view of a customer, reduced to what
// the VAT flow needs.
type CustomerSummary struct {
	// ID is the customer GID.
	ID string
	// Email is the account email.
	Email string
	// Tags are the customer's tags.
	Tags []string
	// VATNumber is the stored VAT metafield value, empty when unset.
	VATNumber string
}

// HasTag reports whether the customer carries the given tag.
func (c CustomerSummary) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MetafieldInput writes one metafield on a Shopify resource.
type MetafieldInput struct {
	// OwnerID is the GID of the resource the metafield attaches to.
	OwnerID string
	// Namespace and Key address the metafield.
	Namespace string
	Key       string
	// Type is the Shopify metafield type, e.g. single_line_text_field.
	Type string
	// Value is the serialized value.
	Value string
}

// Metafield is a written metafield as Shopify stored it.
type Metafield struct {
	ID        string
	Namespace string
	Key       string
	Value     string
}

// AdminAPI is the port for the three Admin API operations the gateway
// proxies. The Admin token stays server-side; nothing else of the Admin
// schema is exposed.
type AdminAPI interface {
	// SearchCustomersByEmail returns customers whose email matches exactly.
	SearchCustomersByEmail(ctx context.Context, email string) ([]CustomerSummary, error)

	// SetMetafield writes one metafield and returns it as stored.
	SetMetafield(ctx context.Context, input MetafieldInput) (*Metafield, error)

	// AddTags adds tags to a resource, ignoring tags already present.
	AddTags(ctx context.Context, ownerID string, tags []string) error
}
