package shopify

import (
	"github.com/storefront/gateway/internal/domain/storefront"
)

// ---------------------------------------------------------------------------
// Admin Wire Types
// ---------------------------------------------------------------------------

// adminCustomerNode matches the customer search query. Metafield is the
// single metafield the search expands, null when the customer has none.
type adminCustomerNode struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Tags      []string `json:"tags"`
	Metafield *struct {
		Value string `json:"value"`
	} `json:"metafield"`
}

type metafieldNode struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// ---------------------------------------------------------------------------
// Response Wrappers
// ---------------------------------------------------------------------------

type customerSearchResponse struct {
	Customers connection[adminCustomerNode] `json:"customers"`
}

type metafieldsSetResponse struct {
	MetafieldsSet struct {
		Metafields []metafieldNode `json:"metafields"`
		UserErrors []userError     `json:"userErrors"`
	} `json:"metafieldsSet"`
}

type tagsAddResponse struct {
	TagsAdd struct {
		Node *struct {
			ID string `json:"id"`
		} `json:"node"`
		UserErrors []userError `json:"userErrors"`
	} `json:"tagsAdd"`
}

// ---------------------------------------------------------------------------
// Converters
// ---------------------------------------------------------------------------

func (n adminCustomerNode) toDomain() storefront.CustomerSummary {
	summary := storefront.CustomerSummary{
		ID:    n.ID,
		Email: n.Email,
		Tags:  n.Tags,
	}
	if n.Metafield != nil {
		summary.VATNumber = n.Metafield.Value
	}
	return summary
}

func (n metafieldNode) toDomain() *storefront.Metafield {
	return &storefront.Metafield{
		ID:        n.ID,
		Namespace: n.Namespace,
		Key:       n.Key,
		Value:     n.Value,
	}
}
