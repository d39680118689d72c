package cart

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
)

// Service drives cart operations against the Storefront API. Carts live
// entirely on Shopify; the cart GID returned at creation is the only handle
// a client ever holds.
type Service struct {
	storefront storefront.StorefrontAPI
	logger     *zap.Logger
}

// NewService creates a new cart service
func NewService(api storefront.StorefrontAPI, logger *zap.Logger) *Service {
	return &Service{
		storefront: api,
		logger:     logger,
	}
}

// CreateCart creates a cart, optionally with initial lines and buyer identity
func (s *Service) CreateCart(ctx context.Context, input CreateCartInput) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "create")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrLinesCount, len(input.Lines))

	domainInput := input.toDomain()
	if err := domainInput.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}

	created, err := s.storefront.CartCreate(ctx, domainInput)
	if err != nil {
		s.logger.Warn("Cart creation failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}

	s.logger.Info("Cart created", zap.String("cart_id", created.ID), zap.Int("lines", len(created.Lines)))
	return created, nil
}

// GetCart returns the cart by its GID
func (s *Service) GetCart(ctx context.Context, cartID string) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "get")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCartID, cartID)

	if err := validateCartID(cartID); err != nil {
		return nil, err
	}

	cart, err := s.storefront.Cart(ctx, cartID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}
	return cart, nil
}

// AddLines adds variants to the cart and returns the updated cart
func (s *Service) AddLines(ctx context.Context, input AddLinesInput) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "add_lines")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCartID, input.CartID,
		telemetry.SpanAttrLinesCount, len(input.Lines),
	)

	if err := validateCartID(input.CartID); err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "At least one line is required")
	}
	for _, line := range input.Lines {
		if err := line.Validate(); err != nil {
			telemetry.RecordError(span, err)
			return nil, s.mapUpstreamError(err)
		}
	}

	cart, err := s.storefront.CartLinesAdd(ctx, input.CartID, input.Lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}
	return cart, nil
}

// UpdateLines changes line quantities; a quantity of zero removes the line
func (s *Service) UpdateLines(ctx context.Context, input UpdateLinesInput) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "update_lines")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCartID, input.CartID,
		telemetry.SpanAttrLinesCount, len(input.Lines),
	)

	if err := validateCartID(input.CartID); err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "At least one line update is required")
	}
	for _, line := range input.Lines {
		if err := line.Validate(); err != nil {
			telemetry.RecordError(span, err)
			return nil, s.mapUpstreamError(err)
		}
	}

	cart, err := s.storefront.CartLinesUpdate(ctx, input.CartID, input.Lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}
	return cart, nil
}

// RemoveLines removes lines from the cart and returns the updated cart
func (s *Service) RemoveLines(ctx context.Context, input RemoveLinesInput) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "remove_lines")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCartID, input.CartID,
		telemetry.SpanAttrLinesCount, len(input.LineIDs),
	)

	if err := validateCartID(input.CartID); err != nil {
		return nil, err
	}
	if len(input.LineIDs) == 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "At least one line id is required")
	}

	cart, err := s.storefront.CartLinesRemove(ctx, input.CartID, input.LineIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}
	return cart, nil
}

// UpdateDiscountCodes replaces the cart's discount codes. An empty list
// clears all codes, matching Shopify's semantics.
func (s *Service) UpdateDiscountCodes(ctx context.Context, input UpdateDiscountCodesInput) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "update_discount_codes")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCartID, input.CartID)

	if err := validateCartID(input.CartID); err != nil {
		return nil, err
	}

	cart, err := s.storefront.CartDiscountCodesUpdate(ctx, input.CartID, input.Codes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}

	// Shopify accepts unknown codes and marks them inapplicable; surface
	// that as a validation error so clients do not show a silent no-op.
	for _, code := range cart.DiscountCodes {
		if !code.Applicable {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Discount code is not applicable: "+code.Code)
		}
	}
	return cart, nil
}

// UpdateBuyerIdentity updates the cart's buyer identity. When the caller is
// authenticated the handler passes the customer's access token, which binds
// the cart to the customer so checkout starts logged in.
func (s *Service) UpdateBuyerIdentity(ctx context.Context, input UpdateBuyerIdentityInput) (*storefront.Cart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "update_buyer_identity")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCartID, input.CartID)

	if err := validateCartID(input.CartID); err != nil {
		return nil, err
	}

	cart, err := s.storefront.CartBuyerIdentityUpdate(ctx, input.CartID, input.toDomain())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapUpstreamError(err)
	}
	return cart, nil
}

// CheckoutURL returns the cart's web checkout URL. With a customer access
// token the buyer identity is attached first so the checkout opens
// authenticated; without one the stored URL is returned as is.
func (s *Service) CheckoutURL(ctx context.Context, input CheckoutURLInput) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "checkout_url")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCartID, input.CartID)

	if err := validateCartID(input.CartID); err != nil {
		return "", err
	}

	var (
		cart *storefront.Cart
		err  error
	)
	if input.CustomerAccessToken != "" {
		cart, err = s.storefront.CartBuyerIdentityUpdate(ctx, input.CartID, storefront.BuyerIdentityInput{
			CustomerAccessToken: input.CustomerAccessToken,
		})
	} else {
		cart, err = s.storefront.Cart(ctx, input.CartID)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return "", s.mapUpstreamError(err)
	}

	if cart.CheckoutURL == "" {
		return "", shared.NewDomainError("UPSTREAM_FAILED", "Cart has no checkout URL")
	}
	return cart.CheckoutURL, nil
}

// validateCartID rejects anything that is not a cart GID before it reaches
// Shopify, keeping malformed ids out of upstream request logs.
func validateCartID(cartID string) error {
	if !storefront.ValidGID(cartID, "Cart") {
		return shared.NewDomainError("VALIDATION_ERROR", "Cart id must be a Shopify cart GID")
	}
	return nil
}

// mapUpstreamError converts Storefront API sentinel errors into domain
// errors. Mutation userErrors arrive as validation errors carrying Shopify's
// own field messages.
func (s *Service) mapUpstreamError(err error) error {
	switch {
	case errors.Is(err, storefront.ErrNotFound):
		return shared.NewDomainError("NOT_FOUND", "Cart not found")
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
