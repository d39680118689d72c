package identity

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
)

// TokenSource yields a Shopify access token that is valid for at least the
// refresh leeway. AuthService implements it.
type TokenSource interface {
	EnsureFreshToken(ctx context.Context, session *storefront.Session) (string, error)
}

const (
	// defaultOrdersPageSize is used when the client names no page size
	defaultOrdersPageSize = 10
	// maxOrdersPageSize caps one order history page
	maxOrdersPageSize = 50
)

// AccountService reads the authenticated customer's profile and order
// history from the Customer Account API. Every call goes out with a token
// freshened by the TokenSource first.
type AccountService struct {
	customers storefront.CustomerAccountAPI
	tokens    TokenSource
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(customers storefront.CustomerAccountAPI, tokens TokenSource, logger *zap.Logger) *AccountService {
	return &AccountService{
		customers: customers,
		tokens:    tokens,
		logger:    logger,
	}
}

// Profile returns the customer's profile
func (s *AccountService) Profile(ctx context.Context, session *storefront.Session) (*storefront.Customer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "profile")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, session.CustomerID)

	accessToken, err := s.tokens.EnsureFreshToken(ctx, session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	profile, err := s.customers.Profile(ctx, accessToken)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapCustomerError(err, "Customer profile not found")
	}
	return profile, nil
}

// Orders returns one page of the customer's order history, newest first
func (s *AccountService) Orders(ctx context.Context, session *storefront.Session, input OrdersInput) (*storefront.OrderPage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "orders")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, session.CustomerID)

	first := input.First
	if first <= 0 {
		first = defaultOrdersPageSize
	}
	if first > maxOrdersPageSize {
		first = maxOrdersPageSize
	}

	accessToken, err := s.tokens.EnsureFreshToken(ctx, session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	page, err := s.customers.Orders(ctx, accessToken, first, input.After)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapCustomerError(err, "Orders not found")
	}
	return page, nil
}

// Order returns one of the customer's orders by its GID. Shopify scopes the
// lookup to the token's customer, so foreign order IDs come back not found.
func (s *AccountService) Order(ctx context.Context, session *storefront.Session, orderID string) (*storefront.Order, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "order")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, session.CustomerID,
		telemetry.SpanAttrOrderID, orderID,
	)

	if !storefront.ValidGID(orderID, "Order") {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Order id must be a Shopify order GID")
	}

	accessToken, err := s.tokens.EnsureFreshToken(ctx, session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	order, err := s.customers.Order(ctx, accessToken, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapCustomerError(err, "Order not found")
	}
	return order, nil
}

// mapCustomerError converts Customer Account API sentinel errors into domain
// errors. A rejected token means the Shopify session died server-side, so
// the customer has to log in again.
func (s *AccountService) mapCustomerError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, storefront.ErrNotFound):
		return shared.NewDomainError("NOT_FOUND", notFoundMsg)
	case errors.Is(err, storefront.ErrAuthFailed), errors.Is(err, storefront.ErrTokenExpired):
		return shared.NewDomainError("SESSION_EXPIRED", "Session has expired, please log in again")
	case errors.Is(err, storefront.ErrRateLimited):
		return shared.NewDomainError("RATE_LIMITED", "Shopify is throttling requests, please retry shortly")
	case errors.Is(err, storefront.ErrUnavailable):
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify is unreachable")
	default:
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify request failed")
	}
}
