package telemetry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/storefront/gateway/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zaptest"
)

func disabledTracerConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "gateway-test",
	}
}

// enabledTracerProvider builds a real pipeline against a collector endpoint
// nothing listens on; the exporter dials lazily, so construction and local
// sampling still work.
func enabledTracerProvider(t *testing.T, ratio float64) *telemetry.TracerProvider {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping exporter construction in short mode")
	}

	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	cfg := telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     ratio,
		ServiceName:       "gateway-test",
		Insecure:          true,
	}
	tp, err := telemetry.NewTracerProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})
	return tp
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), disabledTracerConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("gateway-test"), "disabled provider still hands out tracers")
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProvider_DisabledShutdownIgnoresContext(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), disabledTracerConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, tp.Shutdown(ctx), "no pipeline means nothing to flush")
}

func TestEnableSpanProfiles_DisabledIsNoOp(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), disabledTracerConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	tp := enabledTracerProvider(t, 1.0)

	assert.True(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("gateway-test"))
}

func TestNewTracerProvider_InstallsPropagators(t *testing.T) {
	enabledTracerProvider(t, 1.0)

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestSamplingRatio_AllOrNothing(t *testing.T) {
	t.Run("ratio 1 samples everything", func(t *testing.T) {
		tp := enabledTracerProvider(t, 1.0)
		_, span := tp.Tracer("sampling").Start(context.Background(), "checkout")
		defer span.End()
		assert.True(t, span.SpanContext().IsSampled())
	})

	t.Run("ratio 0 samples nothing", func(t *testing.T) {
		tp := enabledTracerProvider(t, 0.0)
		_, span := tp.Tracer("sampling").Start(context.Background(), "checkout")
		defer span.End()
		assert.False(t, span.SpanContext().IsSampled())
	})
}

func TestEnableSpanProfiles_WrapsOnce(t *testing.T) {
	tp := enabledTracerProvider(t, 1.0)

	require.NoError(t, tp.EnableSpanProfiles())
	assert.True(t, tp.IsSpanProfilesEnabled())

	// Second call keeps the existing wrapper.
	wrapped := otel.GetTracerProvider()
	require.NoError(t, tp.EnableSpanProfiles())
	assert.Same(t, wrapped, otel.GetTracerProvider())
}

func TestEnableSpanProfiles_ConcurrentCallers(t *testing.T) {
	tp := enabledTracerProvider(t, 1.0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tp.EnableSpanProfiles())
			_ = tp.IsSpanProfilesEnabled()
		}()
	}
	wg.Wait()

	assert.True(t, tp.IsSpanProfilesEnabled())
}
