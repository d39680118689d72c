package telemetry_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/storefront/gateway/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func testMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider.Meter("instrument-test"), reader
}

func readMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q was not collected", name)
	return metricdata.Metrics{}
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "gateway-test",
	}

	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("gateway-test"), "disabled provider still hands out meters")
	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping exporter construction in short mode")
	}

	prev := otel.GetMeterProvider()
	cfg := telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "gateway-test",
		Insecure:          true,
	}
	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		otel.SetMeterProvider(prev)
	})

	assert.True(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("gateway-test"))
}

func TestCounter_AddAndInc(t *testing.T) {
	meter, reader := testMeter(t)
	counter, err := telemetry.NewCounter(meter, "login_total", "Logins by outcome", "{login}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, telemetry.AttrOutcome.String("success"))
	counter.Add(ctx, 2, telemetry.AttrOutcome.String("success"))
	counter.Inc(ctx, telemetry.AttrOutcome.String("failure"))

	data := readMetric(t, reader, "login_total")
	sum, ok := data.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.True(t, sum.IsMonotonic)

	values := map[string]int64{}
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(telemetry.AttrOutcome); found {
			values[v.AsString()] = dp.Value
		}
	}
	assert.Equal(t, int64(3), values["success"])
	assert.Equal(t, int64(1), values["failure"])
}

func TestHistogram_RecordsDurationsInSeconds(t *testing.T) {
	meter, reader := testMeter(t)
	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "shopify_request_duration_seconds",
		Description: "Upstream call latency",
		Unit:        "s",
		Boundaries:  telemetry.ShopifyDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	hist.Record(ctx, 0.2)
	hist.RecordDuration(ctx, 150*time.Millisecond)

	data := readMetric(t, reader, "shopify_request_duration_seconds")
	hd, ok := data.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hd.DataPoints, 1)

	dp := hd.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 0.35, dp.Sum, 0.0001)
	assert.Equal(t, telemetry.ShopifyDurationBuckets, dp.Bounds)
}

func TestGauge_RecordsLatestValue(t *testing.T) {
	meter, reader := testMeter(t)
	gauge, err := telemetry.NewGauge(meter, "sessions_active", "Live customer sessions", "{session}")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 10)
	gauge.Record(ctx, 4)

	data := readMetric(t, reader, "sessions_active")
	gd, ok := data.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gd.DataPoints, 1)
	assert.Equal(t, int64(4), gd.DataPoints[0].Value)
}

func TestDurationBuckets_StrictlyAscending(t *testing.T) {
	families := map[string][]float64{
		"http":    telemetry.HTTPDurationBuckets,
		"db":      telemetry.DBDurationBuckets,
		"shopify": telemetry.ShopifyDurationBuckets,
		"size":    telemetry.SizeBuckets,
	}
	for name, buckets := range families {
		require.NotEmpty(t, buckets, "%s buckets", name)
		assert.True(t, sort.Float64sAreSorted(buckets), "%s buckets must ascend", name)
		for i := 1; i < len(buckets); i++ {
			assert.Greater(t, buckets[i], buckets[i-1], "%s buckets must not repeat", name)
		}
	}
}

func TestUpstreamBucketsStartSlower(t *testing.T) {
	// Shopify calls cross the public internet; their first bucket sits above
	// the local handler floor.
	assert.Greater(t, telemetry.ShopifyDurationBuckets[0], telemetry.HTTPDurationBuckets[0])
}
