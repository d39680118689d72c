package storefront

import "strings"

// GIDPrefix is the prefix of every Shopify global ID.
const GIDPrefix = "gid://shopify/"

// ValidGID reports whether s looks like a Shopify global ID of the given
// resource kind, e.g. ValidGID("gid://shopify/Cart/abc", "Cart").
func ValidGID(s, kind string) bool {
	rest, ok := strings.CutPrefix(s, GIDPrefix)
	if !ok {
		return false
	}
	name, id, ok := strings.Cut(rest, "/")
	return ok && name == kind && id != ""
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

// PageInfo carries Shopify's cursor pagination state.
type PageInfo struct {
	HasNextPage bool
	EndCursor   string
}

// ---------------------------------------------------------------------------
// ProductSortKey
// ---------------------------------------------------------------------------

// ProductSortKey selects the ordering of a product listing.
type ProductSortKey string

const (
	ProductSortRelevance   ProductSortKey = "RELEVANCE"
	ProductSortTitle       ProductSortKey = "TITLE"
	ProductSortPrice       ProductSortKey = "PRICE"
	ProductSortCreatedAt   ProductSortKey = "CREATED_AT"
	ProductSortUpdatedAt   ProductSortKey = "UPDATED_AT"
	ProductSortBestSelling ProductSortKey = "BEST_SELLING"
)

// IsValid returns true if the sort key is one Shopify accepts.
func (k ProductSortKey) IsValid() bool {
	switch k {
	case ProductSortRelevance, ProductSortTitle, ProductSortPrice,
		ProductSortCreatedAt, ProductSortUpdatedAt, ProductSortBestSelling:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProductSortKey.
func (k ProductSortKey) String() string {
	return string(k)
}

// ProductQuery holds the parameters of a product listing request.
type ProductQuery struct {
	// Query is a Shopify search query, empty for an unfiltered listing.
	Query string
	// First is the page size, 1..250.
	First int
	// After is the cursor to continue from, empty for the first page.
	After string
	// SortKey orders the result, empty for Shopify's default.
	SortKey ProductSortKey
	// Reverse flips the sort order.
	Reverse bool
}

// ---------------------------------------------------------------------------
// Catalog value objects
// ---------------------------------------------------------------------------

// Image is a Shopify-hosted image.
type Image struct {
	URL     string
	AltText string
	Width   int
	Height  int
}

// SelectedOption is one chosen option of a variant, e.g. Size=M.
type SelectedOption struct {
	Name  string
	Value string
}

// ProductOption is one configurable axis of a product with its values.
type ProductOption struct {
	Name   string
	Values []string
}

// Variant is a purchasable variant of a product.
type Variant struct {
	// ID is the variant GID, the merchandise ID used in cart lines.
	ID string
	// Title is the variant title, e.g. "M / Black".
	Title string
	// SKU is the merchant's stock keeping unit, may be empty.
	SKU string
	// Available reports whether the variant can currently be sold.
	Available bool
	// QuantityAvailable is the sellable quantity, 0 when untracked or hidden.
	QuantityAvailable int
	// Price is the current selling price.
	Price Money
	// CompareAtPrice is the pre-discount price, nil when not on sale.
	CompareAtPrice *Money
	// SelectedOptions are the option values this variant represents.
	SelectedOptions []SelectedOption
	// Image is the variant-specific image, nil to use the product image.
	Image *Image
}

// PriceRange is the min/max variant price of a product.
type PriceRange struct {
	Min Money
	Max Money
}

// Product is a storefront product with its variants.
type Product struct {
	// ID is the product GID.
	ID string
	// Handle is the URL slug, unique per shop.
	Handle string
	// Title is the display title.
	Title string
	// Description is the plain-text description.
	Description string
	// DescriptionHTML is the rich description.
	DescriptionHTML string
	// Vendor is the brand or supplier name.
	Vendor string
	// ProductType is the merchant-defined category.
	ProductType string
	// Tags are the merchant-assigned tags.
	Tags []string
	// Available reports whether any variant is sellable.
	Available bool
	// FeaturedImage is the primary image, nil when the product has none.
	FeaturedImage *Image
	// Images are the product images in display order.
	Images []Image
	// PriceRange spans the variant prices.
	PriceRange PriceRange
	// Options are the configurable axes.
	Options []ProductOption
	// Variants are the purchasable variants.
	Variants []Variant
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []Product
	PageInfo PageInfo
}

// Collection is a curated product grouping.
type Collection struct {
	// ID is the collection GID.
	ID string
	// Handle is the URL slug.
	Handle string
	// Title is the display title.
	Title string
	// Description is the plain-text description.
	Description string
	// Image is the collection image, nil when absent.
	Image *Image
	// Products is the requested product page within the collection.
	// Empty for listing queries that do not expand products.
	Products ProductPage
}

// CollectionPage is one page of a collection listing.
type CollectionPage struct {
	Collections []Collection
	PageInfo    PageInfo
}
