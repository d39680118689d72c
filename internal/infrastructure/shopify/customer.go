package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// ErrCustomerAccountMissingShopID indicates the shop ID was not configured
var ErrCustomerAccountMissingShopID = errors.New("shopify: customer account shop id is required")

// CustomerAccountConfig holds configuration for the Customer Account API client
type CustomerAccountConfig struct {
	// ShopID is the numeric shop ID the Customer Account API is addressed by,
	// not the myshopify domain
	ShopID string
	// APIVersion pins the Customer Account API version, e.g. "2025-01"
	APIVersion string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// Validate validates the Customer Account configuration
func (c *CustomerAccountConfig) Validate() error {
	if c.ShopID == "" {
		return ErrCustomerAccountMissingShopID
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
func (c *CustomerAccountConfig) Endpoint() string {
	return fmt.Sprintf("https://shopify.com/%s/account/customer/api/%s/graphql", c.ShopID, c.APIVersion)
}

// CustomerAccountClient implements the CustomerAccountAPI port. Unlike the
// other clients it holds no credential of its own; every call authenticates
// with the customer's access token obtained through the OAuth flow.
type CustomerAccountClient struct {
	gql *graphQLClient
}

// NewCustomerAccountClient creates a Customer Account API client
func NewCustomerAccountClient(config *CustomerAccountConfig) (*CustomerAccountClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CustomerAccountClient{
		gql: newGraphQLClient(apiCustomerAccount, config.Endpoint(), config.Timeout, nil),
	}, nil
}

// SetObserver installs o to receive the outcome of every Customer Account API
// call. Wire it during startup; it is not safe to swap with requests in flight.
func (c *CustomerAccountClient) SetObserver(o RequestObserver) {
	c.gql.observer = o
}

// Profile returns the customer behind the token
func (c *CustomerAccountClient) Profile(ctx context.Context, accessToken string) (*storefront.Customer, error) {
	header, err := customerAuthHeader(accessToken)
	if err != nil {
		return nil, err
	}

	var resp profileResponse
	if err := c.gql.execute(ctx, profileQuery, nil, header, &resp); err != nil {
		return nil, err
	}
	if resp.Customer == nil {
		return nil, fmt.Errorf("%w: profile query returned no customer", storefront.ErrInvalidResponse)
	}
	return resp.Customer.toDomain(), nil
}

// Orders returns a page of the customer's orders, newest first
func (c *CustomerAccountClient) Orders(ctx context.Context, accessToken string, first int, after string) (*storefront.OrderPage, error) {
	header, err := customerAuthHeader(accessToken)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{"first": first}
	if after != "" {
		variables["after"] = after
	}

	var resp ordersResponse
	if err := c.gql.execute(ctx, ordersQuery, variables, header, &resp); err != nil {
		return nil, err
	}
	if resp.Customer == nil {
		return nil, fmt.Errorf("%w: orders query returned no customer", storefront.ErrInvalidResponse)
	}

	page := &storefront.OrderPage{
		Orders:   make([]storefront.Order, 0, len(resp.Customer.Orders.Edges)),
		PageInfo: resp.Customer.Orders.PageInfo.toDomain(),
	}
	for _, node := range resp.Customer.Orders.nodes() {
		order, err := node.toDomain()
		if err != nil {
			return nil, err
		}
		page.Orders = append(page.Orders, *order)
	}
	return page, nil
}

// Order returns one order or ErrNotFound. Shopify scopes the lookup to the
// token's customer, so another customer's order ID comes back null.
func (c *CustomerAccountClient) Order(ctx context.Context, accessToken string, orderID string) (*storefront.Order, error) {
	header, err := customerAuthHeader(accessToken)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{"orderId": orderID}

	var resp orderResponse
	if err := c.gql.execute(ctx, orderQuery, variables, header, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("%w: order %q", storefront.ErrNotFound, orderID)
	}
	return resp.Order.toDomain()
}

// customerAuthHeader builds the per-request Authorization header. The
// Customer Account API takes the access token verbatim, no Bearer prefix.
func customerAuthHeader(accessToken string) (http.Header, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", storefront.ErrAuthFailed)
	}
	header := http.Header{}
	header.Set("Authorization", accessToken)
	return header, nil
}

// ---------------------------------------------------------------------------
// GraphQL Documents
// ---------------------------------------------------------------------------

const profileQuery = `query Profile {
  customer {
    id
    firstName
    lastName
    displayName
    creationDate
    emailAddress { emailAddress }
    phoneNumber { phoneNumber }
    defaultAddress {
      address1
      address2
      city
      zoneCode
      zip
      territoryCode
      formatted
    }
  }
}`

const orderFieldsFragment = `fragment OrderFields on Order {
  id
  name
  number
  processedAt
  financialStatus
  fulfillmentStatus
  subtotal { amount currencyCode }
  totalShipping { amount currencyCode }
  totalTax { amount currencyCode }
  totalPrice { amount currencyCode }
  statusPageUrl
  lineItems(first: 50) {
    edges {
      node {
        title
        variantTitle
        quantity
        price { amount currencyCode }
        totalPrice { amount currencyCode }
        image { url altText width height }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const ordersQuery = `query Orders($first: Int!, $after: String) {
  customer {
    orders(first: $first, after: $after, sortKey: PROCESSED_AT, reverse: true) {
      edges { node { ...OrderFields } }
      pageInfo { hasNextPage endCursor }
    }
  }
}
` + orderFieldsFragment

const orderQuery = `query Order($orderId: ID!) {
  order(id: $orderId) { ...OrderFields }
}
` + orderFieldsFragment

// Ensure CustomerAccountClient implements the CustomerAccountAPI port
var _ storefront.CustomerAccountAPI = (*CustomerAccountClient)(nil)
