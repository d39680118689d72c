package shopify

import (
	"context"

	"github.com/storefront/gateway/internal/domain/storefront"
)

// DisabledAdminClient implements the AdminAPI port for deployments without
// an Admin API token. Every call fails with ErrNotConfigured, which the VAT
// service surfaces as a 503, so the rest of the gateway runs normally while
// the VAT endpoints report themselves unavailable.
type DisabledAdminClient struct{}

// NewDisabledAdminClient creates an AdminAPI implementation that rejects
// every call.
func NewDisabledAdminClient() *DisabledAdminClient {
	return &DisabledAdminClient{}
}

var _ storefront.AdminAPI = (*DisabledAdminClient)(nil)

// SearchCustomersByEmail always reports the Admin API as not configured.
func (c *DisabledAdminClient) SearchCustomersByEmail(ctx context.Context, email string) ([]storefront.CustomerSummary, error) {
	return nil, storefront.ErrNotConfigured
}

// SetMetafield always reports the Admin API as not configured.
func (c *DisabledAdminClient) SetMetafield(ctx context.Context, input storefront.MetafieldInput) (*storefront.Metafield, error) {
	return nil, storefront.ErrNotConfigured
}

// AddTags always reports the Admin API as not configured.
func (c *DisabledAdminClient) AddTags(ctx context.Context, ownerID string, tags []string) error {
	return storefront.ErrNotConfigured
}
