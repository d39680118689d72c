package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the server-span middleware.
type TracingConfig struct {
	// ServiceName names the service on server spans.
	ServiceName string
	// Enabled turns span creation on.
	Enabled bool
}

// DefaultTracingConfig returns the enabled baseline configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "storefront-gateway",
		Enabled:     true,
	}
}

// Tracing returns the server-span middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig opens a server span per request via otelgin. The span
// ends when otelgin's handler frame unwinds, so anything that wants to tag
// it must run inside that frame: see SpanContextTagger and SpanErrorMarker,
// which belong after this middleware in the chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough()
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanContextTagger enriches the live server span with request identity:
// the request ID before the handlers run, and the session and customer IDs
// afterwards, once session authentication has resolved them.
func SpanContextTagger() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := RequestIDFrom(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		if session := GetSession(c); session != nil {
			span.SetAttributes(
				attribute.String("session.id", session.ID.String()),
				attribute.String("customer.id", session.CustomerID),
			)
		}
	}
}

// SpanErrorMarker marks the server span failed when the response status is
// 4xx or 5xx, since a handler that writes an error status does not always
// record an error on the span itself.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, statusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

// statusText keeps span status descriptions to a handful of stable values
// instead of the full http.StatusText vocabulary.
func statusText(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Server Error"
	case status == http.StatusUnauthorized:
		return "Unauthorized"
	case status == http.StatusForbidden:
		return "Forbidden"
	case status == http.StatusNotFound:
		return "Not Found"
	default:
		return "Client Error"
	}
}
