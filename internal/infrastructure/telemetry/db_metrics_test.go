package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newManualMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func metricByName(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// sumValue returns the int64 sum datapoint whose key attribute equals want.
func sumValue(m metricdata.Metrics, key attribute.Key, want string) (int64, bool) {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, false
	}
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(key); found && v.AsString() == want {
			return dp.Value, true
		}
	}
	return 0, false
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
}

func TestNewDBMetrics_FillsZeroConfig(t *testing.T) {
	provider, _ := newManualMeter(t)

	m, err := NewDBMetrics(provider.Meter("audit"), DBMetricsConfig{Enabled: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, m.cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, m.cfg.PoolStatsInterval)
	assert.NotNil(t, m.log)
}

func TestRecordQuery_CountsAndTimes(t *testing.T) {
	provider, reader := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("audit"), DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "exemption_audits", 10*time.Millisecond, nil)
	m.RecordQuery(ctx, "SELECT", "exemption_audits", 5*time.Millisecond, nil)
	m.RecordQuery(ctx, "", "exemption_audits", time.Millisecond, nil)

	rm := collectMetrics(t, reader)

	total, ok := metricByName(rm, "db_query_total")
	require.True(t, ok)
	selects, ok := sumValue(total, AttrDBOperation, "SELECT")
	require.True(t, ok)
	assert.Equal(t, int64(2), selects)
	unknown, ok := sumValue(total, AttrDBOperation, "UNKNOWN")
	require.True(t, ok)
	assert.Equal(t, int64(1), unknown)

	duration, ok := metricByName(rm, "db_query_duration_seconds")
	require.True(t, ok)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var observations uint64
	for _, dp := range hist.DataPoints {
		observations += dp.Count
	}
	assert.Equal(t, uint64(3), observations)
}

func TestRecordQuery_SlowStatementsCountByTable(t *testing.T) {
	provider, reader := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("audit"), DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "INSERT", "exemption_audits", 300*time.Millisecond, nil)
	m.RecordQuery(ctx, "SELECT", "", 250*time.Millisecond, nil)
	m.RecordQuery(ctx, "SELECT", "exemption_audits", 50*time.Millisecond, nil)

	rm := collectMetrics(t, reader)
	slow, ok := metricByName(rm, "db_slow_query_total")
	require.True(t, ok)

	byTable, ok := sumValue(slow, AttrDBTable, "exemption_audits")
	require.True(t, ok)
	assert.Equal(t, int64(1), byTable)

	unnamed, ok := sumValue(slow, AttrDBTable, "unknown")
	require.True(t, ok)
	assert.Equal(t, int64(1), unnamed)
}

func TestSamplePool_RecordsGaugesPerState(t *testing.T) {
	provider, reader := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("audit"), DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	m.SetSQLDB(mockDB)
	m.samplePool(context.Background())

	rm := collectMetrics(t, reader)

	_, ok := metricByName(rm, "db_pool_connections_max")
	assert.True(t, ok)

	pool, ok := metricByName(rm, "db_pool_connections")
	require.True(t, ok)
	gauge, ok := pool.Data.(metricdata.Gauge[int64])
	require.True(t, ok)

	states := map[string]bool{}
	for _, dp := range gauge.DataPoints {
		if v, found := dp.Attributes.Value(AttrDBState); found {
			states[v.AsString()] = true
		}
	}
	assert.True(t, states["idle"])
	assert.True(t, states["in_use"])
	assert.True(t, states["open"])
}

func TestStartPoolStatsCollection_RequiresDB(t *testing.T) {
	provider, _ := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("audit"), DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	m.StartPoolStatsCollection(context.Background())

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked with no collector running")
	}
}

func TestStop_Idempotent(t *testing.T) {
	provider, _ := newManualMeter(t)
	cfg := DefaultDBMetricsConfig()
	cfg.PoolStatsInterval = 10 * time.Millisecond
	m, err := NewDBMetrics(provider.Meter("audit"), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	m.SetSQLDB(mockDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartPoolStatsCollection(ctx)

	assert.NotPanics(t, func() {
		m.Stop()
		m.Stop()
	})
}

func TestDBMetricsPlugin_InitializeRegistersHooks(t *testing.T) {
	provider, _ := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("audit"), DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	db := openAuditDB(t)
	plugin := NewDBMetricsPlugin(m, zaptest.NewLogger(t))
	require.NoError(t, db.Use(plugin))

	assert.Equal(t, "db_metrics", plugin.Name())
	assert.NotNil(t, db.Callback().Create().Get("db_metrics_start:create"))
	assert.NotNil(t, db.Callback().Query().Get("db_metrics_finish:query"))
	assert.NotNil(t, db.Callback().Raw().Get("db_metrics_finish:raw"))

	assert.ErrorIs(t, db.Use(plugin), gorm.ErrRegistered)
}

func TestDBMetricsPlugin_CountsLiveStatements(t *testing.T) {
	provider, reader := newManualMeter(t)
	m, err := NewDBMetrics(provider.Meter("audit"), DefaultDBMetricsConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	db := openAuditDB(t)
	require.NoError(t, db.Use(NewDBMetricsPlugin(m, zaptest.NewLogger(t))))

	require.NoError(t, db.Create(&exemptionAudit{CountryCode: "DE"}).Error)
	var rows []exemptionAudit
	require.NoError(t, db.Find(&rows).Error)
	require.NoError(t, db.Exec("DELETE FROM exemption_audits").Error)

	rm := collectMetrics(t, reader)
	total, ok := metricByName(rm, "db_query_total")
	require.True(t, ok)

	inserts, ok := sumValue(total, AttrDBOperation, "INSERT")
	require.True(t, ok)
	assert.GreaterOrEqual(t, inserts, int64(1))

	selects, ok := sumValue(total, AttrDBOperation, "SELECT")
	require.True(t, ok)
	assert.GreaterOrEqual(t, selects, int64(1))

	// Exec goes through the raw callbacks, classified from statement text.
	deletes, ok := sumValue(total, AttrDBOperation, "DELETE")
	require.True(t, ok)
	assert.GreaterOrEqual(t, deletes, int64(1))
}

func TestSQLVerbFor(t *testing.T) {
	cases := map[string]string{
		"create": "INSERT",
		"query":  "SELECT",
		"update": "UPDATE",
		"delete": "DELETE",
		"row":    "",
		"raw":    "",
	}
	for op, want := range cases {
		assert.Equal(t, want, sqlVerbFor(op), "operation %q", op)
	}
}

func TestDetectSQLVerb(t *testing.T) {
	cases := []struct {
		stmt string
		want string
	}{
		{"SELECT * FROM exemption_audits", "SELECT"},
		{"  select 1", "SELECT"},
		{"insert into exemption_audits values (1)", "INSERT"},
		{"UPDATE exemption_audits SET country_code = 'DE'", "UPDATE"},
		{"delete from exemption_audits", "DELETE"},
		{"PRAGMA foreign_keys = ON", "OTHER"},
		{"", "OTHER"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, detectSQLVerb(tc.stmt), "statement %q", tc.stmt)
	}
}

func TestRegisterDBMetrics_SkipsWhenDisabled(t *testing.T) {
	db := openAuditDB(t)

	m, err := RegisterDBMetrics(db, nil, DBMetricsConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRegisterDBMetrics_SkipsWithoutPipeline(t *testing.T) {
	db := openAuditDB(t)
	log := zaptest.NewLogger(t)

	m, err := RegisterDBMetrics(db, nil, DefaultDBMetricsConfig(), log)
	require.NoError(t, err)
	assert.Nil(t, m)

	disabled, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	m, err = RegisterDBMetrics(db, disabled, DefaultDBMetricsConfig(), log)
	require.NoError(t, err)
	assert.Nil(t, m)
}
