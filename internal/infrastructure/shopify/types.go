package shopify

import (
	"github.com/storefront/gateway/internal/domain/storefront"
)

// ---------------------------------------------------------------------------
// Shared Wire Types
// ---------------------------------------------------------------------------

// moneyV2 is Shopify's MoneyV2 shape. Amounts arrive as decimal strings and
// stay decimal on the way into the domain.
type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// toDomain converts a required money value
func (m moneyV2) toDomain() (storefront.Money, error) {
	return storefront.NewMoney(m.Amount, m.CurrencyCode)
}

// convertOptionalMoney converts a nullable money value, mapping absent to nil
func convertOptionalMoney(m *moneyV2) (*storefront.Money, error) {
	if m == nil {
		return nil, nil
	}
	money, err := m.toDomain()
	if err != nil {
		return nil, err
	}
	return &money, nil
}

// imageNode is Shopify's Image shape
type imageNode struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func (i imageNode) toDomain() storefront.Image {
	return storefront.Image{
		URL:     i.URL,
		AltText: i.AltText,
		Width:   i.Width,
		Height:  i.Height,
	}
}

func convertOptionalImage(i *imageNode) *storefront.Image {
	if i == nil {
		return nil
	}
	img := i.toDomain()
	return &img
}

// pageInfoNode is the relay-style pagination block on every connection
type pageInfoNode struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

func (p pageInfoNode) toDomain() storefront.PageInfo {
	return storefront.PageInfo{
		HasNextPage: p.HasNextPage,
		EndCursor:   p.EndCursor,
	}
}

// edge is one entry of a relay-style connection
type edge[T any] struct {
	Node T `json:"node"`
}

// connection is the edges/node wrapper Shopify wraps every list in
type connection[T any] struct {
	Edges    []edge[T]    `json:"edges"`
	PageInfo pageInfoNode `json:"pageInfo"`
}

// nodes flattens the edges into a plain slice
func (c connection[T]) nodes() []T {
	out := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}
