package catalog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
)

// Service exposes the public catalog: product listings, product detail,
// recommendations and collections. Every read goes straight to the
// Storefront API; the gateway holds no catalog state of its own.
type Service struct {
	storefront storefront.StorefrontAPI
	logger     *zap.Logger
}

// NewService creates a new catalog service
func NewService(api storefront.StorefrontAPI, logger *zap.Logger) *Service {
	return &Service{
		storefront: api,
		logger:     logger,
	}
}

// ListProducts returns one page of products, optionally filtered by a search
// query and ordered by a sort key.
func (s *Service) ListProducts(ctx context.Context, input ListProductsInput) (*storefront.ProductPage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "list_products")
	defer span.End()

	query, err := input.toQuery()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPageSize, query.First,
		"sort_key", query.SortKey.String(),
	)

	page, err := s.storefront.Products(ctx, query)
	if err != nil {
		s.logger.Warn("Product listing failed", zap.String("query", input.Query), zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err, "Products not found")
	}

	return page, nil
}

// GetProduct returns one product by its handle
func (s *Service) GetProduct(ctx context.Context, handle string) (*storefront.Product, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "get_product")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrProductHandle, handle)

	if handle == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product handle is required")
	}

	product, err := s.storefront.ProductByHandle(ctx, handle)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err, "Product not found")
	}

	return product, nil
}

// Recommendations returns products related to the product with the given
// handle. The handle is resolved first because Shopify's recommendation
// query only accepts product IDs.
func (s *Service) Recommendations(ctx context.Context, handle string) ([]storefront.Product, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "recommendations")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrProductHandle, handle)

	if handle == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product handle is required")
	}

	product, err := s.storefront.ProductByHandle(ctx, handle)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err, "Product not found")
	}

	related, err := s.storefront.ProductRecommendations(ctx, product.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err, "Product not found")
	}

	return related, nil
}

// ListCollections returns one page of collections without their products
func (s *Service) ListCollections(ctx context.Context, input ListCollectionsInput) (*storefront.CollectionPage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "list_collections")
	defer span.End()

	first := normalizePageSize(input.First)
	telemetry.SetAttribute(span, telemetry.SpanAttrPageSize, first)

	page, err := s.storefront.Collections(ctx, first, input.After)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err, "Collections not found")
	}

	return page, nil
}

// GetCollection returns one collection by handle together with a page of
// its products.
func (s *Service) GetCollection(ctx context.Context, input GetCollectionInput) (*storefront.Collection, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "get_collection")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCollectionHandle, input.Handle)

	if input.Handle == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Collection handle is required")
	}

	collection, err := s.storefront.CollectionByHandle(ctx, input.Handle, normalizePageSize(input.First), input.After)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err, "Collection not found")
	}

	return collection, nil
}

// mapUpstreamError converts Storefront API sentinel errors into domain
// errors. The catalog routes are public, so an upstream credential problem
// is a gateway misconfiguration, not the caller's fault.
func (s *Service) mapUpstreamError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, storefront.ErrNotFound):
		return shared.NewDomainError("NOT_FOUND", notFoundMsg)
	case errors.Is(err, storefront.ErrUserRejected):
		return shared.NewDomainError("VALIDATION_ERROR", err.Error())
	case errors.Is(err, storefront.ErrRateLimited):
		return shared.NewDomainError("RATE_LIMITED", "Shopify is throttling requests, please retry shortly")
	case errors.Is(err, storefront.ErrNotConfigured):
		return shared.NewDomainError("UNAVAILABLE", "Storefront API is not configured")
	case errors.Is(err, storefront.ErrAuthFailed):
		s.logger.Error("Storefront API rejected the shop credentials", zap.Error(err))
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify rejected the storefront credentials")
	case errors.Is(err, storefront.ErrUnavailable):
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify is unreachable")
	default:
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify request failed")
	}
}
