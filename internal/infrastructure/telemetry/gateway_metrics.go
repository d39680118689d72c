package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// GatewayMetrics provides domain metrics for the storefront gateway.
// It tracks upstream Shopify calls, customer authentication activity, VAT
// exemption submissions and the number of live sessions.
type GatewayMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	shopifyRequestTotal    *Counter
	shopifyRequestDuration *Histogram
	loginTotal             *Counter
	tokenRefreshTotal      *Counter
	vatSubmissionTotal     *Counter
	sessionsActive         *Gauge

	// Collector lifecycle
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Source for the sessions gauge
	sessionProvider SessionMetricsProvider
}

// SessionMetricsProvider reports the number of live sessions for periodic
// gauge collection. This interface lets the telemetry layer observe session
// state without depending on a concrete store.
type SessionMetricsProvider interface {
	// ActiveSessionCount returns the number of sessions currently held by
	// the store.
	ActiveSessionCount(ctx context.Context) (int64, error)
}

// SessionMetricsProviderFunc adapts a plain function to SessionMetricsProvider.
type SessionMetricsProviderFunc func(ctx context.Context) (int64, error)

// ActiveSessionCount calls f.
func (f SessionMetricsProviderFunc) ActiveSessionCount(ctx context.Context) (int64, error) {
	return f(ctx)
}

// GatewayMetricsConfig holds configuration for gateway metrics.
type GatewayMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	SessionProvider SessionMetricsProvider
}

// NewGatewayMetrics creates a new GatewayMetrics instance.
func NewGatewayMetrics(cfg GatewayMetricsConfig) (*GatewayMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gm := &GatewayMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		sessionProvider: cfg.SessionProvider,
	}

	var err error

	// Upstream Shopify metrics
	gm.shopifyRequestTotal, err = NewCounter(
		cfg.Meter,
		"gateway_shopify_request_total",
		"Total number of upstream Shopify API calls",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	gm.shopifyRequestDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "gateway_shopify_request_duration_seconds",
		Description: "Upstream Shopify call latency distribution in seconds",
		Unit:        "s",
		Boundaries:  ShopifyDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Authentication metrics
	gm.loginTotal, err = NewCounter(
		cfg.Meter,
		"gateway_login_total",
		"Total number of completed customer login attempts",
		"{logins}",
	)
	if err != nil {
		return nil, err
	}

	gm.tokenRefreshTotal, err = NewCounter(
		cfg.Meter,
		"gateway_token_refresh_total",
		"Total number of session token refresh attempts",
		"{refreshes}",
	)
	if err != nil {
		return nil, err
	}

	// VAT exemption metrics
	gm.vatSubmissionTotal, err = NewCounter(
		cfg.Meter,
		"gateway_vat_submission_total",
		"Total number of VAT exemption submissions",
		"{submissions}",
	)
	if err != nil {
		return nil, err
	}

	// Session gauge
	gm.sessionsActive, err = NewGauge(
		cfg.Meter,
		"gateway_sessions_active",
		"Number of live customer sessions",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	return gm, nil
}

// =============================================================================
// Upstream Shopify Metrics
// =============================================================================

// Request outcome values for the outcome attribute.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ObserveRequest records one upstream Shopify API call. The signature matches
// the shopify package's RequestObserver so a GatewayMetrics can be installed
// on the API clients directly.
func (gm *GatewayMetrics) ObserveRequest(ctx context.Context, api, operation string, duration time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}

	gm.shopifyRequestTotal.Inc(ctx,
		AttrShopifyAPI.String(api),
		AttrShopifyOperation.String(operation),
		AttrOutcome.String(outcome),
	)
	gm.shopifyRequestDuration.RecordDuration(ctx, duration,
		AttrShopifyAPI.String(api),
		AttrShopifyOperation.String(operation),
	)
}

// =============================================================================
// Authentication Metrics
// =============================================================================

// AuthOutcome labels login and refresh counter samples.
type AuthOutcome string

const (
	AuthOutcomeSuccess AuthOutcome = "success"
	AuthOutcomeFailure AuthOutcome = "failure"
	// AuthOutcomeExpired means the login state or refresh token was no
	// longer valid when presented.
	AuthOutcomeExpired AuthOutcome = "expired"
)

// RecordLogin records the outcome of a login callback.
// This should be called from the identity service when a login completes.
func (gm *GatewayMetrics) RecordLogin(ctx context.Context, outcome AuthOutcome) {
	gm.loginTotal.Inc(ctx, AttrOutcome.String(string(outcome)))
}

// RecordTokenRefresh records the outcome of a session token refresh.
func (gm *GatewayMetrics) RecordTokenRefresh(ctx context.Context, outcome AuthOutcome) {
	gm.tokenRefreshTotal.Inc(ctx, AttrOutcome.String(string(outcome)))
}

// =============================================================================
// VAT Exemption Metrics
// =============================================================================

// VatOutcome labels VAT submission counter samples.
type VatOutcome string

const (
	// VatOutcomeSubmitted means the exemption request reached Shopify.
	VatOutcomeSubmitted VatOutcome = "submitted"
	// VatOutcomeRejected means validation or duplicate checks stopped the
	// request before it left the gateway.
	VatOutcomeRejected VatOutcome = "rejected"
	// VatOutcomeFailed means an upstream call failed.
	VatOutcomeFailed VatOutcome = "failed"
)

// RecordVatSubmission records a VAT exemption submission attempt.
func (gm *GatewayMetrics) RecordVatSubmission(ctx context.Context, countryCode string, outcome VatOutcome) {
	gm.vatSubmissionTotal.Inc(ctx,
		AttrCountryCode.String(countryCode),
		AttrOutcome.String(string(outcome)),
	)
}

// =============================================================================
// Session Metrics
// =============================================================================

// RecordSessionCount records the current number of live sessions.
// This is a gauge metric that is normally updated by periodic collection.
func (gm *GatewayMetrics) RecordSessionCount(ctx context.Context, count int64) {
	gm.sessionsActive.Record(ctx, count)
}

// StartPeriodicCollection starts periodic collection of the sessions gauge.
// It is non-blocking; use Stop() to stop collection.
func (gm *GatewayMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	gm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go gm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection owns the ticker loop until Stop or context cancel.
func (gm *GatewayMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First sample right away, the rest on the ticker
	gm.collectSessionMetrics(ctx)

	for {
		select {
		case <-gm.stopChan:
			gm.logger.Info("Stopping periodic gateway metrics collection")
			return
		case <-ctx.Done():
			gm.logger.Info("Context cancelled, stopping periodic gateway metrics collection")
			return
		case <-ticker.C:
			gm.collectSessionMetrics(ctx)
		}
	}
}

// collectSessionMetrics collects the sessions gauge from the provider.
func (gm *GatewayMetrics) collectSessionMetrics(ctx context.Context) {
	if gm.sessionProvider == nil {
		gm.logger.Debug("No session provider configured, skipping session metrics collection")
		return
	}

	count, err := gm.sessionProvider.ActiveSessionCount(ctx)
	if err != nil {
		gm.logger.Warn("Failed to count active sessions", zap.Error(err))
		return
	}

	gm.RecordSessionCount(ctx, count)
}

// Stop ends periodic collection. Safe to call more than once.
func (gm *GatewayMetrics) Stop() {
	gm.stopOnce.Do(func() {
		close(gm.stopChan)
	})
}

// =============================================================================
// Errors
// =============================================================================

// ErrMeterNil reports a GatewayMetricsConfig with no meter.
var ErrMeterNil = &MetricsError{Op: "NewGatewayMetrics", Err: "meter cannot be nil"}

// MetricsError describes a failure building metric instruments.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
