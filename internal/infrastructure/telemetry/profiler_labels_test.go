package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/storefront/gateway/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelInside captures a pprof label as seen while fn executes under
// WithProfilingLabels.
func labelInside(ctx context.Context, labels map[string]string, key string) (string, bool) {
	var value string
	var ok bool
	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		value, ok = pprof.Label(ctx, key)
	})
	return value, ok
}

func TestWithProfilingLabels_AppliesLabels(t *testing.T) {
	labels := map[string]string{
		telemetry.ProfilingLabelRoute:  "/api/products/:handle",
		telemetry.ProfilingLabelMethod: "GET",
	}

	route, ok := labelInside(context.Background(), labels, "route")
	require.True(t, ok)
	assert.Equal(t, "/api/products/:handle", route)

	method, ok := labelInside(context.Background(), labels, "method")
	require.True(t, ok)
	assert.Equal(t, "GET", method)
}

func TestWithProfilingLabels_NoLabelsStillRuns(t *testing.T) {
	called := false
	telemetry.WithProfilingLabels(context.Background(), nil, func(ctx context.Context) {
		called = true
		_, ok := pprof.Label(ctx, "route")
		assert.False(t, ok)
	})
	assert.True(t, called)
}

func TestWithProfilingLabels_DropsHighCardinalityKeys(t *testing.T) {
	labels := map[string]string{
		"customer_id": "gid://shopify/Customer/8012345",
		"cart_id":     "gid://shopify/Cart/Z2NwLXVz",
		"session_id":  "d7f3a5",
		"controller":  "cart",
	}

	_, ok := labelInside(context.Background(), labels, "customer_id")
	assert.False(t, ok)
	_, ok = labelInside(context.Background(), labels, "cart_id")
	assert.False(t, ok)
	_, ok = labelInside(context.Background(), labels, "session_id")
	assert.False(t, ok)

	controller, ok := labelInside(context.Background(), labels, "controller")
	require.True(t, ok)
	assert.Equal(t, "cart", controller)
}

func TestWithProfilingLabels_SkipsEmptyEntries(t *testing.T) {
	labels := map[string]string{
		"":       "orphan-value",
		"region": "",
		"method": "POST",
	}

	method, ok := labelInside(context.Background(), labels, "method")
	require.True(t, ok)
	assert.Equal(t, "POST", method)

	_, ok = labelInside(context.Background(), labels, "region")
	assert.False(t, ok)
}

func TestWithProfilingLabels_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", 300)

	value, ok := labelInside(context.Background(), map[string]string{"route": long}, "route")
	require.True(t, ok)
	assert.Len(t, value, 128)
}

func TestWithProfilingLabels_NormalizesKeys(t *testing.T) {
	labels := map[string]string{
		"Shopify API":  "storefront",
		"db-operation": "select",
		"weird!!key":   "kept",
	}

	api, ok := labelInside(context.Background(), labels, "shopify_api")
	require.True(t, ok)
	assert.Equal(t, "storefront", api)

	op, ok := labelInside(context.Background(), labels, "db_operation")
	require.True(t, ok)
	assert.Equal(t, "select", op)

	kept, ok := labelInside(context.Background(), labels, "weirdkey")
	require.True(t, ok)
	assert.Equal(t, "kept", kept)
}

func TestWithProfilingLabels_LeavesCallerMapAlone(t *testing.T) {
	labels := map[string]string{
		"customer_id": "gid://shopify/Customer/1",
		"Route":       "/api/cart",
	}

	telemetry.WithProfilingLabels(context.Background(), labels, func(context.Context) {})

	assert.Equal(t, map[string]string{
		"customer_id": "gid://shopify/Customer/1",
		"Route":       "/api/cart",
	}, labels)
}

func TestProfilingScope_Accumulates(t *testing.T) {
	scope := telemetry.NewProfilingScope(nil).
		WithController("catalog").
		WithRoute("/api/collections/:handle").
		WithMethod("GET").
		WithShopifyAPI("storefront").
		WithOperation("GetCollection").
		WithRegion("shopify_call")

	assert.Equal(t, map[string]string{
		"controller":  "catalog",
		"route":       "/api/collections/:handle",
		"method":      "GET",
		"shopify_api": "storefront",
		"operation":   "GetCollection",
		"region":      "shopify_call",
	}, scope.Labels())
}

func TestProfilingScope_SeedIsCopied(t *testing.T) {
	seed := map[string]string{"controller": "vat"}
	scope := telemetry.NewProfilingScope(seed)
	seed["controller"] = "mutated"

	assert.Equal(t, "vat", scope.Labels()["controller"])
}

func TestProfilingScope_LabelsReturnsCopy(t *testing.T) {
	scope := telemetry.NewProfilingScope(nil).WithMethod("GET")

	labels := scope.Labels()
	labels["method"] = "DELETE"

	assert.Equal(t, "GET", scope.Labels()["method"])
}

func TestProfilingScope_SkipsBlankPairs(t *testing.T) {
	scope := telemetry.NewProfilingScope(nil).
		WithLabel("", "value").
		WithLabel("key", "").
		WithController("")

	assert.Empty(t, scope.Labels())
}

func TestProfilingScope_RunAppliesLabels(t *testing.T) {
	scope := telemetry.NewProfilingScope(nil).
		WithController("cart").
		WithMethod("POST")

	var controller, method string
	scope.Run(context.Background(), func(ctx context.Context) {
		controller, _ = pprof.Label(ctx, "controller")
		method, _ = pprof.Label(ctx, "method")
	})

	assert.Equal(t, "cart", controller)
	assert.Equal(t, "POST", method)
}
