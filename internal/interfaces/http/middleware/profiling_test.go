package middleware

import (
	"context"
	"net/http"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// captureLabels records the pprof labels visible inside the handler.
func captureLabels(dst *map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		seen := make(map[string]string)
		for _, key := range []string{"controller", "route", "method"} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				seen[key] = v
			}
		}
		*dst = seen
		c.Status(http.StatusOK)
	}
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.ElementsMatch(t, []string{"/health", "/healthz", "/ready", "/metrics"}, cfg.SkipPaths)
	assert.Empty(t, cfg.SkipPathPrefixes)
}

func TestProfiling_DisabledStillServes(t *testing.T) {
	var labels map[string]string
	r := gin.New()
	r.Use(ProfilingWithConfig(ProfilingConfig{Enabled: false}))
	r.GET("/api/v1/products", captureLabels(&labels))

	w := send(r, http.MethodGet, "/api/v1/products")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, labels)
}

func TestProfiling_AppliesRouteShapedLabels(t *testing.T) {
	var labels map[string]string
	r := gin.New()
	r.Use(Profiling())
	r.GET("/api/v1/products/:handle", captureLabels(&labels))

	w := send(r, http.MethodGet, "/api/v1/products/alpine-jacket")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{
		"route":      "/api/v1/products/:handle",
		"method":     "GET",
		"controller": "products",
	}, labels, "route label uses the pattern, controller the resource segment")
}

func TestProfiling_SkipPaths(t *testing.T) {
	tests := []struct {
		name string
		path string
		skip bool
	}{
		{"health exact", "/health", true},
		{"healthz exact", "/healthz", true},
		{"ready exact", "/ready", true},
		{"metrics exact", "/metrics", true},
		{"api path", "/api/v1/products", false},
		{"health subpath is not exact", "/health/check", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var labels map[string]string
			r := gin.New()
			r.Use(Profiling())
			r.GET(tt.path, captureLabels(&labels))

			w := send(r, http.MethodGet, tt.path)

			assert.Equal(t, http.StatusOK, w.Code)
			if tt.skip {
				assert.Empty(t, labels, "skipped path should carry no labels")
			} else {
				assert.NotEmpty(t, labels)
			}
		})
	}
}

func TestProfiling_SkipPathPrefixes(t *testing.T) {
	var labels map[string]string
	r := gin.New()
	r.Use(ProfilingWithConfig(ProfilingConfig{
		Enabled:          true,
		SkipPathPrefixes: []string{"/internal"},
	}))
	r.GET("/internal/debug/state", captureLabels(&labels))

	w := send(r, http.MethodGet, "/internal/debug/state")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, labels, "prefixed path should carry no labels")
}

func TestProfiling_LabelsEachMethod(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			var labels map[string]string
			r := gin.New()
			r.Use(Profiling())
			r.Handle(method, "/api/v1/carts", captureLabels(&labels))

			w := send(r, method, "/api/v1/carts")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, method, labels["method"])
		})
	}
}

func TestProfiling_PreservesUpstreamContext(t *testing.T) {
	type ctxKey string
	key := ctxKey("upstream")

	var got string
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key, "still-here"))
	})
	r.Use(Profiling())
	r.GET("/api/v1/products", func(c *gin.Context) {
		got, _ = c.Request.Context().Value(key).(string)
		c.Status(http.StatusOK)
	})

	send(r, http.MethodGet, "/api/v1/products")

	assert.Equal(t, "still-here", got, "upstream context values should survive labeling")
}

func TestResourceFromRoute(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/products", "products"},
		{"/api/v1/products/:handle", "products"},
		{"/api/v1/carts/:id/lines", "carts"},
		{"/api/health", "health"},
		{"/v1/collections", "collections"},
		{"/static/*filepath", "static"},
		{"/api/v1/:id", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resourceFromRoute(tt.route), "route %q", tt.route)
	}
}

func TestIsAPIVersion(t *testing.T) {
	versioned := []string{"v1", "v2", "V3", "v10"}
	for _, segment := range versioned {
		assert.True(t, isAPIVersion(segment), segment)
	}

	notVersioned := []string{"", "v", "version", "v1x", "api", "x1"}
	for _, segment := range notVersioned {
		assert.False(t, isAPIVersion(segment), segment)
	}
}
