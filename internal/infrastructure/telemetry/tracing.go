package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName scopes the application-level spans the services emit beneath
// the otelgin server spans.
const TracerName = "storefront-gateway"

// Span attribute keys used by the application services. Kept as plain
// strings so call sites read naturally with SetAttribute.
const (
	SpanAttrProductHandle    = "product_handle"
	SpanAttrCollectionHandle = "collection_handle"
	SpanAttrPageSize         = "page_size"

	SpanAttrCartID     = "cart_id"
	SpanAttrLinesCount = "lines_count"
	SpanAttrQuantity   = "quantity"

	SpanAttrCustomerID = "customer_id"
	SpanAttrSessionID  = "session_id"
	SpanAttrOrderID    = "order_id"

	SpanAttrCountryCode  = "country_code"
	SpanAttrVatRequestID = "vat_request_id"
)

type spanSettings struct {
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

// SpanOption adjusts how StartSpan opens a span.
type SpanOption func(*spanSettings)

// WithAttribute attaches an attribute at span start.
func WithAttribute(key string, value any) SpanOption {
	return func(s *spanSettings) {
		s.attrs = append(s.attrs, toAttribute(key, value))
	}
}

// WithSpanKind overrides the default internal span kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(s *spanSettings) {
		s.kind = kind
	}
}

// StartSpan opens a span on the gateway tracer. The caller owns span.End.
//
//	ctx, span := telemetry.StartSpan(ctx, "cart.add_lines")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	settings := spanSettings{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&settings)
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(settings.kind)}
	if len(settings.attrs) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(settings.attrs...))
	}

	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, startOpts...)
}

// StartServiceSpan opens a span named {service}.{method}, the convention
// every application service follows.
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttribute attaches one attribute to a live span. Nil spans are
// tolerated so call sites stay unconditional.
func SetAttribute(span trace.Span, key string, value any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// SetAttributes attaches alternating key/value pairs. Non-string keys and
// trailing unpaired values are skipped.
func SetAttributes(span trace.Span, pairs ...any) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, pairs[i+1]))
	}
	span.SetAttributes(attrs...)
}

// RecordError marks the span failed and records the error event. A nil
// error leaves the span untouched, so it can wrap returns directly.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// toAttribute picks the typed attribute constructor for common Go values
// and falls back to fmt formatting for the rest.
func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
