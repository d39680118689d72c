package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), recorded
}

func auditQuery() (string, int64) {
	return "SELECT * FROM vat_exemption_requests WHERE customer_id = $1", 1
}

func TestGormLogger_LogModeReturnsClone(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	quieter := gl.LogMode(gormlogger.Error)

	clone, ok := quieter.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Error, clone.level)
	assert.Equal(t, gormlogger.Info, gl.level, "original logger keeps its level")
}

func TestGormLogger_InfoWarnErrorRespectLevel(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "migrations applied: %d", 1)
	gl.Warn(ctx, "connection pool near limit")
	gl.Error(ctx, "constraint violated")

	assert.Empty(t, recorded.FilterLevelExact(zapcore.InfoLevel).All(), "info is below the configured level")
	assert.Len(t, recorded.FilterLevelExact(zapcore.WarnLevel).All(), 1)
	assert.Len(t, recorded.FilterLevelExact(zapcore.ErrorLevel).All(), 1)
}

func TestGormLogger_TraceLogsQueries(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	gl.Trace(context.Background(), time.Now(), auditQuery, nil)

	entries := recorded.FilterMessage("SQL").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields["sql"], "vat_exemption_requests")
	assert.EqualValues(t, 1, fields["rows"])
}

func TestGormLogger_TraceCarriesRequestID(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-42")

	gl.Trace(ctx, time.Now(), auditQuery, nil)

	entries := recorded.FilterMessage("SQL").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestGormLogger_TraceReportsErrors(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), auditQuery, errors.New("duplicate key"))

	entries := recorded.FilterMessage("SQL error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["error"], "duplicate key")
}

func TestGormLogger_TraceSuppressesRecordNotFound(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), auditQuery, gormlogger.ErrRecordNotFound)

	assert.Empty(t, recorded.FilterMessage("SQL error").All(),
		"a missing exemption row is an expected outcome")
}

func TestGormLogger_TraceFlagsSlowQueries(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)

	began := time.Now().Add(-2 * slowQueryThreshold)
	gl.Trace(context.Background(), began, auditQuery, nil)

	entries := recorded.FilterMessage("Slow SQL").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestGormLogger_TraceSilent(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), auditQuery, errors.New("ignored"))

	assert.Empty(t, recorded.All())
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
		{"verbose", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run("level "+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MapGormLogLevel(tt.in))
		})
	}
}
