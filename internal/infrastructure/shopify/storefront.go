package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// Errors for Storefront API configuration
var (
	ErrStorefrontMissingDomain = errors.New("shopify: shop domain is required")
	ErrStorefrontMissingToken  = errors.New("shopify: storefront access token is required")
)

// StorefrontConfig holds configuration for the Storefront API client
type StorefrontConfig struct {
	// ShopDomain is the myshopify domain, e.g. "demo.myshopify.com"
	ShopDomain string
	// APIVersion pins the Storefront API version, e.g. "2025-01"
	APIVersion string
	// AccessToken is the public Storefront API access token
	AccessToken string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// Validate validates the Storefront configuration
func (c *StorefrontConfig) Validate() error {
	if c.ShopDomain == "" {
		return ErrStorefrontMissingDomain
	}
	if c.AccessToken == "" {
		return ErrStorefrontMissingToken
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// Endpoint returns the GraphQL endpoint for this shop and version
func (c *StorefrontConfig) Endpoint() string {
	return fmt.Sprintf("https://%s/api/%s/graphql.json", c.ShopDomain, c.APIVersion)
}

// StorefrontClient implements the StorefrontAPI port against Shopify's
// Storefront GraphQL API. All calls are anonymous shop-level reads or cart
// mutations; customer credentials never pass through here except as the
// opaque buyer identity token.
type StorefrontClient struct {
	gql *graphQLClient
}

// NewStorefrontClient creates a Storefront API client with the given configuration
func NewStorefrontClient(config *StorefrontConfig) (*StorefrontClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("X-Shopify-Storefront-Access-Token", config.AccessToken)
	return &StorefrontClient{
		gql: newGraphQLClient(apiStorefront, config.Endpoint(), config.Timeout, headers),
	}, nil
}

// SetObserver installs o to receive the outcome of every Storefront API call.
// Wire it during startup; it is not safe to swap with requests in flight.
func (c *StorefrontClient) SetObserver(o RequestObserver) {
	c.gql.observer = o
}

// ---------------------------------------------------------------------------
// Catalog Operations
// ---------------------------------------------------------------------------

// Products lists or searches products
func (c *StorefrontClient) Products(ctx context.Context, query storefront.ProductQuery) (*storefront.ProductPage, error) {
	variables := map[string]any{
		"first":   query.First,
		"reverse": query.Reverse,
	}
	if query.After != "" {
		variables["after"] = query.After
	}
	if query.Query != "" {
		variables["query"] = query.Query
	}
	if query.SortKey != "" {
		variables["sortKey"] = query.SortKey.String()
	}

	var resp productsResponse
	if err := c.gql.execute(ctx, productsQuery, variables, nil, &resp); err != nil {
		return nil, err
	}
	return convertProductPage(resp.Products)
}

// ProductByHandle returns one product or ErrNotFound
func (c *StorefrontClient) ProductByHandle(ctx context.Context, handle string) (*storefront.Product, error) {
	variables := map[string]any{"handle": handle}

	var resp productByHandleResponse
	if err := c.gql.execute(ctx, productByHandleQuery, variables, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, fmt.Errorf("%w: product %q", storefront.ErrNotFound, handle)
	}
	return resp.Product.toDomain()
}

// ProductRecommendations returns products related to the given product
func (c *StorefrontClient) ProductRecommendations(ctx context.Context, productID string) ([]storefront.Product, error) {
	variables := map[string]any{"productId": productID}

	var resp productRecommendationsResponse
	if err := c.gql.execute(ctx, productRecommendationsQuery, variables, nil, &resp); err != nil {
		return nil, err
	}

	products := make([]storefront.Product, 0, len(resp.ProductRecommendations))
	for _, node := range resp.ProductRecommendations {
		product, err := node.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, nil
}

// Collections lists collections without expanding their products
func (c *StorefrontClient) Collections(ctx context.Context, first int, after string) (*storefront.CollectionPage, error) {
	variables := map[string]any{"first": first}
	if after != "" {
		variables["after"] = after
	}

	var resp collectionsResponse
	if err := c.gql.execute(ctx, collectionsQuery, variables, nil, &resp); err != nil {
		return nil, err
	}

	page := &storefront.CollectionPage{
		Collections: make([]storefront.Collection, 0, len(resp.Collections.Edges)),
		PageInfo:    resp.Collections.PageInfo.toDomain(),
	}
	for _, node := range resp.Collections.nodes() {
		collection, err := node.toDomain()
		if err != nil {
			return nil, err
		}
		page.Collections = append(page.Collections, *collection)
	}
	return page, nil
}

// CollectionByHandle returns one collection with a page of its products,
// or ErrNotFound
func (c *StorefrontClient) CollectionByHandle(ctx context.Context, handle string, first int, after string) (*storefront.Collection, error) {
	variables := map[string]any{
		"handle": handle,
		"first":  first,
	}
	if after != "" {
		variables["after"] = after
	}

	var resp collectionByHandleResponse
	if err := c.gql.execute(ctx, collectionByHandleQuery, variables, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Collection == nil {
		return nil, fmt.Errorf("%w: collection %q", storefront.ErrNotFound, handle)
	}
	return resp.Collection.toDomain()
}

// ---------------------------------------------------------------------------
// Cart Operations
// ---------------------------------------------------------------------------

// CartCreate creates a cart, optionally with initial lines and buyer
func (c *StorefrontClient) CartCreate(ctx context.Context, input storefront.CartInput) (*storefront.Cart, error) {
	variables := map[string]any{"input": cartInputToWire(input)}

	var resp cartCreateResponse
	if err := c.gql.execute(ctx, cartCreateMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	return cartFromPayload("cartCreate", resp.CartCreate)
}

// Cart returns the cart or ErrNotFound
func (c *StorefrontClient) Cart(ctx context.Context, cartID string) (*storefront.Cart, error) {
	variables := map[string]any{"cartId": cartID}

	var resp cartQueryResponse
	if err := c.gql.execute(ctx, cartQuery, variables, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return nil, fmt.Errorf("%w: cart %q", storefront.ErrNotFound, cartID)
	}
	return resp.Cart.toDomain()
}

// CartLinesAdd adds lines and returns the updated cart
func (c *StorefrontClient) CartLinesAdd(ctx context.Context, cartID string, lines []storefront.CartLineInput) (*storefront.Cart, error) {
	variables := map[string]any{
		"cartId": cartID,
		"lines":  cartLinesToWire(lines),
	}

	var resp cartLinesAddResponse
	if err := c.gql.execute(ctx, cartLinesAddMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	return cartFromPayload("cartLinesAdd", resp.CartLinesAdd)
}

// CartLinesUpdate changes line quantities and returns the updated cart
func (c *StorefrontClient) CartLinesUpdate(ctx context.Context, cartID string, lines []storefront.CartLineUpdate) (*storefront.Cart, error) {
	variables := map[string]any{
		"cartId": cartID,
		"lines":  cartLineUpdatesToWire(lines),
	}

	var resp cartLinesUpdateResponse
	if err := c.gql.execute(ctx, cartLinesUpdateMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	return cartFromPayload("cartLinesUpdate", resp.CartLinesUpdate)
}

// CartLinesRemove removes lines and returns the updated cart
func (c *StorefrontClient) CartLinesRemove(ctx context.Context, cartID string, lineIDs []string) (*storefront.Cart, error) {
	variables := map[string]any{
		"cartId":  cartID,
		"lineIds": lineIDs,
	}

	var resp cartLinesRemoveResponse
	if err := c.gql.execute(ctx, cartLinesRemoveMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	return cartFromPayload("cartLinesRemove", resp.CartLinesRemove)
}

// CartDiscountCodesUpdate replaces the cart's discount codes
func (c *StorefrontClient) CartDiscountCodesUpdate(ctx context.Context, cartID string, codes []string) (*storefront.Cart, error) {
	variables := map[string]any{
		"cartId":        cartID,
		"discountCodes": codes,
	}

	var resp cartDiscountCodesUpdateResponse
	if err := c.gql.execute(ctx, cartDiscountCodesUpdateMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	return cartFromPayload("cartDiscountCodesUpdate", resp.CartDiscountCodesUpdate)
}

// CartBuyerIdentityUpdate updates the cart's buyer identity
func (c *StorefrontClient) CartBuyerIdentityUpdate(ctx context.Context, cartID string, buyer storefront.BuyerIdentityInput) (*storefront.Cart, error) {
	variables := map[string]any{
		"cartId":        cartID,
		"buyerIdentity": buyerIdentityToWire(buyer),
	}

	var resp cartBuyerIdentityUpdateResponse
	if err := c.gql.execute(ctx, cartBuyerIdentityUpdateMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	return cartFromPayload("cartBuyerIdentityUpdate", resp.CartBuyerIdentityUpdate)
}

// cartFromPayload unwraps a cart mutation payload, turning userErrors into a
// MutationError
func cartFromPayload(operation string, payload cartMutationPayload) (*storefront.Cart, error) {
	if err := convertUserErrors(operation, payload.UserErrors); err != nil {
		return nil, err
	}
	if payload.Cart == nil {
		return nil, fmt.Errorf("%w: %s returned no cart", storefront.ErrInvalidResponse, operation)
	}
	return payload.Cart.toDomain()
}

// ---------------------------------------------------------------------------
// GraphQL Documents
// ---------------------------------------------------------------------------

const productFieldsFragment = `fragment ProductFields on Product {
  id
  handle
  title
  description
  descriptionHtml
  vendor
  productType
  tags
  availableForSale
  featuredImage { url altText width height }
  images(first: 20) {
    edges { node { url altText width height } }
    pageInfo { hasNextPage endCursor }
  }
  options { name values }
  priceRange {
    minVariantPrice { amount currencyCode }
    maxVariantPrice { amount currencyCode }
  }
  variants(first: 100) {
    edges {
      node {
        id
        title
        sku
        availableForSale
        quantityAvailable
        price { amount currencyCode }
        compareAtPrice { amount currencyCode }
        selectedOptions { name value }
        image { url altText width height }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const productsQuery = `query Products($first: Int!, $after: String, $query: String, $sortKey: ProductSortKeys, $reverse: Boolean) {
  products(first: $first, after: $after, query: $query, sortKey: $sortKey, reverse: $reverse) {
    edges { node { ...ProductFields } }
    pageInfo { hasNextPage endCursor }
  }
}
` + productFieldsFragment

const productByHandleQuery = `query ProductByHandle($handle: String!) {
  product(handle: $handle) { ...ProductFields }
}
` + productFieldsFragment

const productRecommendationsQuery = `query ProductRecommendations($productId: ID!) {
  productRecommendations(productId: $productId) { ...ProductFields }
}
` + productFieldsFragment

const collectionsQuery = `query Collections($first: Int!, $after: String) {
  collections(first: $first, after: $after) {
    edges { node { id handle title description image { url altText width height } } }
    pageInfo { hasNextPage endCursor }
  }
}`

const collectionByHandleQuery = `query CollectionByHandle($handle: String!, $first: Int!, $after: String) {
  collection(handle: $handle) {
    id
    handle
    title
    description
    image { url altText width height }
    products(first: $first, after: $after) {
      edges { node { ...ProductFields } }
      pageInfo { hasNextPage endCursor }
    }
  }
}
` + productFieldsFragment

const cartFieldsFragment = `fragment CartFields on Cart {
  id
  checkoutUrl
  createdAt
  updatedAt
  totalQuantity
  note
  buyerIdentity { email countryCode customer { id } }
  discountCodes { code applicable }
  cost {
    subtotalAmount { amount currencyCode }
    totalAmount { amount currencyCode }
    totalTaxAmount { amount currencyCode }
    totalDutyAmount { amount currencyCode }
  }
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        cost { totalAmount { amount currencyCode } }
        merchandise {
          ... on ProductVariant {
            id
            title
            sku
            price { amount currencyCode }
            image { url altText width height }
            product { id handle title featuredImage { url altText width height } }
          }
        }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const cartQuery = `query Cart($cartId: ID!) {
  cart(id: $cartId) { ...CartFields }
}
` + cartFieldsFragment

const cartCreateMutation = `mutation CartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFieldsFragment

const cartLinesAddMutation = `mutation CartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFieldsFragment

const cartLinesUpdateMutation = `mutation CartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFieldsFragment

const cartLinesRemoveMutation = `mutation CartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFieldsFragment

const cartDiscountCodesUpdateMutation = `mutation CartDiscountCodesUpdate($cartId: ID!, $discountCodes: [String!]) {
  cartDiscountCodesUpdate(cartId: $cartId, discountCodes: $discountCodes) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFieldsFragment

const cartBuyerIdentityUpdateMutation = `mutation CartBuyerIdentityUpdate($cartId: ID!, $buyerIdentity: CartBuyerIdentityInput!) {
  cartBuyerIdentityUpdate(cartId: $cartId, buyerIdentity: $buyerIdentity) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFieldsFragment

// Ensure StorefrontClient implements the StorefrontAPI port
var _ storefront.StorefrontAPI = (*StorefrontClient)(nil)
