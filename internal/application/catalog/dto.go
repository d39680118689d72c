package catalog

import (
	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
)

const (
	// defaultPageSize is used when the client names no page size
	defaultPageSize = 20
	// maxPageSize is Shopify's hard pagination ceiling
	maxPageSize = 250
)

// normalizePageSize clamps a requested page size into Shopify's 1..250 range
func normalizePageSize(first int) int {
	if first <= 0 {
		return defaultPageSize
	}
	if first > maxPageSize {
		return maxPageSize
	}
	return first
}

// ListProductsInput contains the parameters of a product listing request
type ListProductsInput struct {
	// Query is a Shopify search query, empty for an unfiltered listing
	Query string
	// First is the page size, clamped to 1..250
	First int
	// After is the cursor to continue from
	After string
	// Sort names a product sort key, empty for Shopify's default
	Sort string
	// Reverse flips the sort order
	Reverse bool
}

// toQuery validates the input and converts it to a domain product query
func (i ListProductsInput) toQuery() (storefront.ProductQuery, error) {
	query := storefront.ProductQuery{
		Query:   i.Query,
		First:   normalizePageSize(i.First),
		After:   i.After,
		Reverse: i.Reverse,
	}
	if i.Sort != "" {
		key := storefront.ProductSortKey(i.Sort)
		if !key.IsValid() {
			return storefront.ProductQuery{}, shared.NewDomainError("VALIDATION_ERROR", "Unknown product sort key: "+i.Sort)
		}
		query.SortKey = key
	}
	return query, nil
}

// ListCollectionsInput contains the parameters of a collection listing request
type ListCollectionsInput struct {
	First int
	After string
}

// GetCollectionInput contains the parameters of a collection detail request.
// First and After page through the collection's products.
type GetCollectionInput struct {
	Handle string
	First  int
	After  string
}
