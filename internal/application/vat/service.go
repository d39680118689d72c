package vat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/shared"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/config"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
)

// vatMetafieldType is the Shopify metafield type the VAT number is stored as.
const vatMetafieldType = "single_line_text_field"

// Service proxies the two VAT-exemption operations to the Admin API and
// keeps an audit trail of submissions. The Admin token stays server-side;
// customers only ever reach these operations through their own session, and
// only for their own email.
type Service struct {
	admin      storefront.AdminAPI
	exemptions storefront.ExemptionRepository
	config     config.VatConfig
	metrics    *telemetry.GatewayMetrics
	logger     *zap.Logger
}

// NewService creates a new VAT service. A nil repository disables the audit
// log; submissions still reach Shopify.
func NewService(
	admin storefront.AdminAPI,
	exemptions storefront.ExemptionRepository,
	cfg config.VatConfig,
	logger *zap.Logger,
) *Service {
	if cfg.MetafieldNamespace == "" {
		cfg.MetafieldNamespace = "vat"
	}
	if cfg.MetafieldKey == "" {
		cfg.MetafieldKey = "vat_number"
	}
	if cfg.ExemptTag == "" {
		cfg.ExemptTag = "vat-exempt"
	}
	if cfg.PendingTag == "" {
		cfg.PendingTag = "vat-pending-review"
	}
	return &Service{
		admin:      admin,
		exemptions: exemptions,
		config:     cfg,
		logger:     logger,
	}
}

// SetMetrics installs the gateway metrics recorder. Wire it during startup;
// it is not safe to swap with requests in flight.
func (s *Service) SetMetrics(m *telemetry.GatewayMetrics) {
	s.metrics = m
}

// AuditingEnabled reports whether submissions are written to the audit log.
func (s *Service) AuditingEnabled() bool {
	return s.exemptions != nil
}

// CustomerSearch looks the customer up by exact email and reports whether
// the exemption tag is present. The email must belong to the session's
// customer.
func (s *Service) CustomerSearch(ctx context.Context, input CustomerSearchInput) (*CustomerSearchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vat", "customer_search")
	defer span.End()

	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "email is required")
	}
	if !strings.EqualFold(email, input.SessionEmail) {
		s.logger.Warn("Customer search for a foreign email rejected")
		return nil, shared.NewDomainError("FORBIDDEN", "Email does not match the logged-in customer")
	}

	customers, err := s.admin.SearchCustomersByEmail(ctx, email)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.mapAdminError(err)
	}
	if len(customers) == 0 {
		return &CustomerSearchResult{Found: false}, nil
	}

	customer := customers[0]
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customer.ID)
	return &CustomerSearchResult{
		Found:      true,
		CustomerID: customer.ID,
		Email:      customer.Email,
		Tags:       customer.Tags,
		VATExempt:  customer.HasTag(s.config.ExemptTag),
		VATNumber:  customer.VATNumber,
	}, nil
}

// SubmitExemption validates the VAT number, writes it to the customer's
// metafield, tags the customer for merchant review, and records the audit
// row. The metafield and tags on Shopify are the authoritative state; the
// audit row is best effort.
func (s *Service) SubmitExemption(ctx context.Context, input SubmitExemptionInput) (*SubmitExemptionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vat", "submit_exemption")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCountryCode, strings.ToUpper(strings.TrimSpace(input.CountryCode)))

	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "email is required")
	}
	if !strings.EqualFold(email, input.SessionEmail) {
		s.logger.Warn("Exemption submission for a foreign email rejected")
		return nil, shared.NewDomainError("FORBIDDEN", "Email does not match the logged-in customer")
	}

	customers, err := s.admin.SearchCustomersByEmail(ctx, email)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordSubmission(ctx, input.CountryCode, telemetry.VatOutcomeFailed)
		return nil, s.mapAdminError(err)
	}
	if len(customers) == 0 {
		return nil, shared.NewDomainError("NOT_FOUND", "No customer found with this email")
	}
	customer := customers[0]

	request, err := storefront.NewExemptionRequest(customer.ID, customer.Email, input.VATNumber, input.CountryCode, input.CompanyName)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordSubmission(ctx, input.CountryCode, telemetry.VatOutcomeRejected)
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}

	if s.exemptions != nil {
		pending, err := s.exemptions.HasPending(ctx, customer.ID, request.VATNumber)
		if err != nil {
			// Shopify stays authoritative; a dead audit store must not block
			// the submission, so the duplicate check degrades to a warning.
			s.logger.Warn("Duplicate check against the audit log failed", zap.Error(err))
		} else if pending {
			s.recordSubmission(ctx, request.CountryCode, telemetry.VatOutcomeRejected)
			return nil, shared.NewDomainError("ALREADY_SUBMITTED", "A VAT exemption request for this number is already pending review")
		}
	}

	metafield, err := s.admin.SetMetafield(ctx, storefront.MetafieldInput{
		OwnerID:   customer.ID,
		Namespace: s.config.MetafieldNamespace,
		Key:       s.config.MetafieldKey,
		Type:      vatMetafieldType,
		Value:     request.VATNumber,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, storefront.ErrUserRejected) {
			s.recordSubmission(ctx, request.CountryCode, telemetry.VatOutcomeRejected)
			return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
		}
		s.recordSubmission(ctx, request.CountryCode, telemetry.VatOutcomeFailed)
		s.logger.Error("Failed to write VAT metafield", zap.String("customer_id", customer.ID), zap.Error(err))
		return nil, s.mapAdminError(err)
	}

	tags := []string{s.config.ExemptTag, s.config.PendingTag}
	if err := s.admin.AddTags(ctx, customer.ID, tags); err != nil {
		telemetry.RecordError(span, err)
		s.recordSubmission(ctx, request.CountryCode, telemetry.VatOutcomeFailed)
		s.logger.Error("Failed to tag customer after metafield write",
			zap.String("customer_id", customer.ID), zap.Error(err))
		return nil, s.mapAdminError(err)
	}

	if s.exemptions != nil {
		if err := s.exemptions.Create(ctx, request); err != nil {
			// The submission already reached Shopify; losing the audit row
			// is logged, not surfaced.
			s.logger.Error("Failed to write exemption audit row",
				zap.String("request_id", request.ID.String()), zap.Error(err))
		}
	}

	s.recordSubmission(ctx, request.CountryCode, telemetry.VatOutcomeSubmitted)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, customer.ID,
		telemetry.SpanAttrVatRequestID, request.ID.String(),
	)
	s.logger.Info("VAT exemption submitted",
		zap.String("request_id", request.ID.String()),
		zap.String("customer_id", customer.ID),
		zap.String("country_code", request.CountryCode))

	return &SubmitExemptionResult{
		RequestID:  request.ID,
		CustomerID: customer.ID,
		Status:     request.Status,
		TagsAdded:  tags,
		Metafield:  metafield,
	}, nil
}

// ListExemptions returns the customer's audit rows, newest first.
func (s *Service) ListExemptions(ctx context.Context, input ListExemptionsInput) ([]storefront.ExemptionRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vat", "list_exemptions")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, input.CustomerID)

	if s.exemptions == nil {
		return nil, shared.NewDomainError("UNAVAILABLE", "Exemption auditing is not enabled")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultExemptionsLimit
	}
	if limit > maxExemptionsLimit {
		limit = maxExemptionsLimit
	}

	requests, err := s.exemptions.FindByCustomer(ctx, input.CustomerID, limit)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to list exemption requests", zap.Error(err))
		return nil, shared.NewDomainError("UNAVAILABLE", "Audit log is unavailable")
	}
	return requests, nil
}

// mapAdminError converts Admin API sentinel errors into domain errors. A
// rejected Admin token means the gateway is misconfigured, not that the
// customer did anything wrong.
func (s *Service) mapAdminError(err error) error {
	switch {
	case errors.Is(err, storefront.ErrUserRejected):
		return shared.NewDomainError("VALIDATION_ERROR", err.Error())
	case errors.Is(err, storefront.ErrRateLimited):
		return shared.NewDomainError("RATE_LIMITED", "Shopify is throttling requests, please retry shortly")
	case errors.Is(err, storefront.ErrAuthFailed), errors.Is(err, storefront.ErrNotConfigured):
		return shared.NewDomainError("UNAVAILABLE", "VAT operations are not available right now")
	case errors.Is(err, storefront.ErrUnavailable):
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify is unreachable")
	default:
		return shared.NewDomainError("UPSTREAM_FAILED", "Shopify request failed")
	}
}

// recordSubmission records a VAT submission outcome when metrics are wired
func (s *Service) recordSubmission(ctx context.Context, countryCode string, outcome telemetry.VatOutcome) {
	if s.metrics != nil {
		s.metrics.RecordVatSubmission(ctx, strings.ToUpper(strings.TrimSpace(countryCode)), outcome)
	}
}
