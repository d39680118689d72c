package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys used to slice profiles in the Pyroscope UI. Everything here is
// low-cardinality: routes and methods, not customers and carts.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelShopifyAPI = "shopify_api"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelRegion     = "region"
)

// maxLabelLen truncates runaway label values before they reach Pyroscope.
const maxLabelLen = 128

// highCardinalityLabels are identifier keys that are unbounded on a public
// storefront. sanitizeLabels drops them silently; logging here would spam
// the hot path.
var highCardinalityLabels = map[string]bool{
	"customer_id": true,
	"cart_id":     true,
	"request_id":  true,
	"order_id":    true,
	"trace_id":    true,
	"span_id":     true,
	"session_id":  true,
}

// WithProfilingLabels runs fn with the given pprof labels applied. The map
// is copied before use, so callers may reuse or mutate it afterwards.
// Labels that survive sanitization reach both Pyroscope and standard pprof
// output.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// ProfilingScope accumulates labels fluently before running a function
// under them. The HTTP middleware builds its per-request labels this way.
type ProfilingScope struct {
	labels map[string]string
}

// NewProfilingScope starts a scope, optionally seeded from an existing map.
func NewProfilingScope(seed map[string]string) *ProfilingScope {
	s := &ProfilingScope{labels: make(map[string]string, len(seed)+3)}
	maps.Copy(s.labels, seed)
	return s
}

// WithLabel adds an arbitrary label.
func (s *ProfilingScope) WithLabel(key, value string) *ProfilingScope {
	if key != "" && value != "" {
		s.labels[key] = value
	}
	return s
}

// WithController labels the handling controller.
func (s *ProfilingScope) WithController(controller string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelController, controller)
}

// WithRoute labels the matched route pattern.
func (s *ProfilingScope) WithRoute(route string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelRoute, route)
}

// WithMethod labels the HTTP method.
func (s *ProfilingScope) WithMethod(method string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelMethod, method)
}

// WithShopifyAPI labels the upstream API family (storefront,
// customer_account, admin).
func (s *ProfilingScope) WithShopifyAPI(api string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelShopifyAPI, api)
}

// WithOperation labels the named operation.
func (s *ProfilingScope) WithOperation(operation string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelOperation, operation)
}

// WithRegion labels a code region such as db_query or shopify_call.
func (s *ProfilingScope) WithRegion(region string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelRegion, region)
}

// Labels returns a copy of the accumulated labels.
func (s *ProfilingScope) Labels() map[string]string {
	out := make(map[string]string, len(s.labels))
	maps.Copy(out, s.labels)
	return out
}

// Run executes fn under the accumulated labels.
func (s *ProfilingScope) Run(ctx context.Context, fn func(context.Context)) {
	WithProfilingLabels(ctx, s.labels, fn)
}

// sanitizeLabels flattens a label map into pyroscope's pair slice:
// high-cardinality and empty entries are dropped, values are truncated,
// keys normalized to snake_case, and the order is deterministic.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > maxLabelLen {
			value = value[:maxLabelLen]
		}
		if clean := normalizeLabelKey(key); clean != "" {
			pairs = append(pairs, clean, value)
		}
	}
	return pairs
}

// normalizeLabelKey lowercases a key and squeezes it to [a-z0-9_],
// mapping separators to underscores and dropping everything else.
func normalizeLabelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-':
			return '_'
		default:
			return -1
		}
	}, key)
}
