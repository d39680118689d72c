package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// Errors for Admin API configuration
var (
	ErrAdminMissingDomain = errors.New("shopify: admin shop domain is required")
	ErrAdminMissingToken  = errors.New("shopify: admin access token is required")
)

// AdminConfig holds configuration for the Admin API client
type AdminConfig struct {
	// ShopDomain is the myshopify domain, e.g. "demo.myshopify.com"
	ShopDomain string
	// APIVersion pins the Admin API version, e.g. "2025-01"
	APIVersion string
	// AccessToken is the private Admin API access token. It grants shop-wide
	// access and must never leave the server.
	AccessToken string
	// MetafieldNamespace and MetafieldKey address the metafield the customer
	// search expands alongside each hit
	MetafieldNamespace string
	MetafieldKey       string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// Validate validates the Admin configuration
func (c *AdminConfig) Validate() error {
	if c.ShopDomain == "" {
		return ErrAdminMissingDomain
	}
	if c.AccessToken == "" {
		return ErrAdminMissingToken
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.MetafieldNamespace == "" {
		c.MetafieldNamespace = "vat"
	}
	if c.MetafieldKey == "" {
		c.MetafieldKey = "vat_number"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// Endpoint returns the GraphQL endpoint for this shop and version
func (c *AdminConfig) Endpoint() string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.ShopDomain, c.APIVersion)
}

// AdminClient implements the AdminAPI port. It exposes exactly the three
// operations the gateway needs; the Admin schema's remaining surface stays
// unreachable by construction.
type AdminClient struct {
	gql                *graphQLClient
	metafieldNamespace string
	metafieldKey       string
}

// NewAdminClient creates an Admin API client with the given configuration
func NewAdminClient(config *AdminConfig) (*AdminClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("X-Shopify-Access-Token", config.AccessToken)
	return &AdminClient{
		gql:                newGraphQLClient(apiAdmin, config.Endpoint(), config.Timeout, headers),
		metafieldNamespace: config.MetafieldNamespace,
		metafieldKey:       config.MetafieldKey,
	}, nil
}

// SetObserver installs o to receive the outcome of every Admin API call.
// Wire it during startup; it is not safe to swap with requests in flight.
func (c *AdminClient) SetObserver(o RequestObserver) {
	c.gql.observer = o
}

// SearchCustomersByEmail returns customers whose email matches exactly.
// Shopify's search also returns partial matches, so hits are filtered here.
func (c *AdminClient) SearchCustomersByEmail(ctx context.Context, email string) ([]storefront.CustomerSummary, error) {
	variables := map[string]any{
		"query":     fmt.Sprintf("email:%q", email),
		"namespace": c.metafieldNamespace,
		"key":       c.metafieldKey,
	}

	var resp customerSearchResponse
	if err := c.gql.execute(ctx, customerSearchQuery, variables, nil, &resp); err != nil {
		return nil, err
	}

	customers := make([]storefront.CustomerSummary, 0, len(resp.Customers.Edges))
	for _, node := range resp.Customers.nodes() {
		if !strings.EqualFold(node.Email, email) {
			continue
		}
		customers = append(customers, node.toDomain())
	}
	return customers, nil
}

// SetMetafield writes one metafield and returns it as stored
func (c *AdminClient) SetMetafield(ctx context.Context, input storefront.MetafieldInput) (*storefront.Metafield, error) {
	variables := map[string]any{
		"metafields": []map[string]any{
			{
				"ownerId":   input.OwnerID,
				"namespace": input.Namespace,
				"key":       input.Key,
				"type":      input.Type,
				"value":     input.Value,
			},
		},
	}

	var resp metafieldsSetResponse
	if err := c.gql.execute(ctx, metafieldsSetMutation, variables, nil, &resp); err != nil {
		return nil, err
	}
	if err := convertUserErrors("metafieldsSet", resp.MetafieldsSet.UserErrors); err != nil {
		return nil, err
	}
	if len(resp.MetafieldsSet.Metafields) == 0 {
		return nil, fmt.Errorf("%w: metafieldsSet returned no metafield", storefront.ErrInvalidResponse)
	}
	return resp.MetafieldsSet.Metafields[0].toDomain(), nil
}

// AddTags adds tags to a resource, ignoring tags already present
func (c *AdminClient) AddTags(ctx context.Context, ownerID string, tags []string) error {
	variables := map[string]any{
		"id":   ownerID,
		"tags": tags,
	}

	var resp tagsAddResponse
	if err := c.gql.execute(ctx, tagsAddMutation, variables, nil, &resp); err != nil {
		return err
	}
	return convertUserErrors("tagsAdd", resp.TagsAdd.UserErrors)
}

// ---------------------------------------------------------------------------
// GraphQL Documents
// ---------------------------------------------------------------------------

const customerSearchQuery = `query CustomerSearch($query: String!, $namespace: String!, $key: String!) {
  customers(first: 10, query: $query) {
    edges {
      node {
        id
        email
        tags
        metafield(namespace: $namespace, key: $key) { value }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const metafieldsSetMutation = `mutation MetafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id namespace key value }
    userErrors { field message code }
  }
}`

const tagsAddMutation = `mutation TagsAdd($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    node { id }
    userErrors { field message }
  }
}`

// Ensure AdminClient implements the AdminAPI port
var _ storefront.AdminAPI = (*AdminClient)(nil)
