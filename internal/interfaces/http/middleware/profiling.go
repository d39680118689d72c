package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storefront/gateway/internal/infrastructure/telemetry"
)

// ProfilingConfig configures request profiling labels.
type ProfilingConfig struct {
	// Enabled controls whether requests run under profiling labels.
	Enabled bool
	// SkipPaths are exact paths excluded from labeling, e.g. health checks.
	SkipPaths []string
	// SkipPathPrefixes are path prefixes excluded from labeling.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig labels everything except operational endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/healthz", "/ready", "/metrics"},
	}
}

// Profiling returns the labeling middleware with defaults applied.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig runs each request under pprof labels so Pyroscope can
// slice profiles by route, method, and the owning resource. Only those
// route-shaped labels are applied; session and customer identifiers are
// unbounded on a public storefront and stay out of profiles.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough()
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}
	prefixes := cfg.SkipPathPrefixes

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		route := c.FullPath()
		scope := telemetry.NewProfilingScope(nil).
			WithMethod(c.Request.Method).
			WithRoute(route).
			WithController(resourceFromRoute(route))

		scope.Run(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceFromRoute names the resource a route pattern serves, e.g.
// "/api/v1/products/:handle" is the products controller. The name is the
// first segment that is not an API prefix, a version, or a parameter.
func resourceFromRoute(route string) string {
	for _, segment := range strings.Split(route, "/") {
		switch {
		case segment == "" || segment == "api":
		case isAPIVersion(segment):
		case strings.HasPrefix(segment, ":") || strings.HasPrefix(segment, "*"):
		default:
			return segment
		}
	}
	return ""
}

// isAPIVersion reports whether a path segment looks like v1, v2, ...
func isAPIVersion(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
