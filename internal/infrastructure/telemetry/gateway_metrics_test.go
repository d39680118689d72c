package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront/gateway/internal/infrastructure/shopify"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// GatewayMetrics must be installable on the Shopify clients directly.
var _ shopify.RequestObserver = (*telemetry.GatewayMetrics)(nil)

func TestNewGatewayMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, gm)
}

func TestNewGatewayMetrics_NilMeter(t *testing.T) {
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, gm)
	assert.Equal(t, "NewGatewayMetrics: meter cannot be nil", err.Error())
}

func TestGatewayMetrics_ObserveRequest(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Both outcomes record cleanly on a noop meter
	gm.ObserveRequest(ctx, "storefront", "Products", 120*time.Millisecond, nil)
	gm.ObserveRequest(ctx, "admin", "CustomerSearch", 2*time.Second, errors.New("upstream down"))
}

func TestGatewayMetrics_RecordLogin(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	gm.RecordLogin(ctx, telemetry.AuthOutcomeSuccess)
	gm.RecordLogin(ctx, telemetry.AuthOutcomeFailure)
	gm.RecordLogin(ctx, telemetry.AuthOutcomeExpired)
}

func TestGatewayMetrics_RecordTokenRefresh(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	gm.RecordTokenRefresh(ctx, telemetry.AuthOutcomeSuccess)
	gm.RecordTokenRefresh(ctx, telemetry.AuthOutcomeExpired)
}

func TestGatewayMetrics_RecordVatSubmission(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	gm.RecordVatSubmission(ctx, "DE", telemetry.VatOutcomeSubmitted)
	gm.RecordVatSubmission(ctx, "FR", telemetry.VatOutcomeRejected)
	gm.RecordVatSubmission(ctx, "IT", telemetry.VatOutcomeFailed)
}

func TestGatewayMetrics_RecordSessionCount(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	gm.RecordSessionCount(ctx, 42)
	gm.RecordSessionCount(ctx, 0)
}

// Mock implementation for testing periodic collection

type mockSessionProvider struct {
	count int64
	err   error
	calls atomic.Int32
}

func (m *mockSessionProvider) ActiveSessionCount(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return m.count, nil
}

func TestGatewayMetrics_PeriodicCollection(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	provider := &mockSessionProvider{count: 7}

	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter:           meter,
		Logger:          zap.NewNop(),
		SessionProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Short interval so the test sees the immediate sample plus a tick
	gm.StartPeriodicCollection(ctx, 50*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	gm.Stop()

	assert.GreaterOrEqual(t, provider.calls.Load(), int32(1))
}

func TestGatewayMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
		// No session provider
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// With no provider the loop just skips sampling
	gm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	gm.Stop()
}

func TestGatewayMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	provider := &mockSessionProvider{err: errors.New("redis unavailable")}

	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter:           meter,
		Logger:          zap.NewNop(),
		SessionProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collection errors are logged, not fatal
	gm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	gm.Stop()
}

func TestGatewayMetrics_Stop_Idempotent(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	// Repeated Stops must be safe
	gm.Stop()
	gm.Stop()
	gm.Stop()
}

func TestGatewayMetrics_StartPeriodicCollection_OnlyOnce(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	gm, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Only the first call starts a collector; later intervals are ignored
	gm.StartPeriodicCollection(ctx, time.Hour)
	gm.StartPeriodicCollection(ctx, time.Minute)
	gm.StartPeriodicCollection(ctx, time.Second)

	gm.Stop()
}

func TestSessionMetricsProviderFunc(t *testing.T) {
	provider := telemetry.SessionMetricsProviderFunc(func(ctx context.Context) (int64, error) {
		return 3, nil
	})

	count, err := provider.ActiveSessionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestAuthOutcome_Values(t *testing.T) {
	assert.Equal(t, telemetry.AuthOutcome("success"), telemetry.AuthOutcomeSuccess)
	assert.Equal(t, telemetry.AuthOutcome("failure"), telemetry.AuthOutcomeFailure)
	assert.Equal(t, telemetry.AuthOutcome("expired"), telemetry.AuthOutcomeExpired)
}

func TestVatOutcome_Values(t *testing.T) {
	assert.Equal(t, telemetry.VatOutcome("submitted"), telemetry.VatOutcomeSubmitted)
	assert.Equal(t, telemetry.VatOutcome("rejected"), telemetry.VatOutcomeRejected)
	assert.Equal(t, telemetry.VatOutcome("failed"), telemetry.VatOutcomeFailed)
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{
		Op:  "TestOperation",
		Err: "test error message",
	}

	assert.Equal(t, "TestOperation: test error message", err.Error())
}
