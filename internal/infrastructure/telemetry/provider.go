// Package telemetry wires the gateway's observability pipelines: OTLP
// traces, metrics and logs, plus Pyroscope continuous profiling. Every
// provider is built disabled-safe, so a gateway pointed at no collector
// runs with no-op instrumentation instead of failing at boot.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// shutdownGrace bounds how long a provider may block flushing its queue on
// exit before the gateway gives up on the collector.
const shutdownGrace = 10 * time.Second

// serviceVersion is stamped on every exported signal. Overridden at build
// time together with the server binary's version.
var serviceVersion = "1.0.0"

// newResource describes this gateway instance to the collector. The default
// resource detectors contribute host and SDK attributes; the service name
// keys every dashboard.
func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}
	return res, nil
}

// shutdownProvider flushes and closes one signal pipeline within the grace
// period, logging the outcome under the signal's name.
func shutdownProvider(ctx context.Context, signal string, log *zap.Logger, stop func(context.Context) error) error {
	log.Info("Flushing telemetry pipeline", zap.String("signal", signal))

	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	if err := stop(ctx); err != nil {
		log.Error("Telemetry pipeline shutdown failed",
			zap.String("signal", signal), zap.Error(err))
		return fmt.Errorf("shutdown %s pipeline: %w", signal, err)
	}
	log.Info("Telemetry pipeline stopped", zap.String("signal", signal))
	return nil
}
