// Package middleware assembles the gin handler chain in front of the
// gateway API: request identity, CORS, security headers, body and rate
// limits, session authentication, and span enrichment.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in and out of the gateway.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key the ID is stored under.
const requestIDKey = "request_id"

// maxRequestIDLength caps inbound request IDs so an oversized header value
// cannot bloat logs and trace attributes.
const maxRequestIDLength = 128

// passthrough is what disabled middleware constructors return, keeping the
// chain shape stable regardless of configuration.
func passthrough() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}

// RequestID assigns each request an identifier, honoring one supplied by
// the caller, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		switch {
		case id == "":
			id = uuid.NewString()
		case len(id) > maxRequestIDLength:
			id = id[:maxRequestIDLength]
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom reads the request's ID for error envelopes and span
// attributes. Requests that bypassed RequestID fall back to the raw header.
func RequestIDFrom(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := c.GetHeader(RequestIDHeader)
	if len(id) > maxRequestIDLength {
		id = id[:maxRequestIDLength]
	}
	return id
}

// CORSConfig describes which cross-origin callers the gateway accepts.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows the origins a Capacitor shell app presents:
// capacitor://localhost on iOS and http://localhost on Android. Web
// storefront origins must be added explicitly via configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"capacitor://localhost", "http://localhost"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type", "Authorization", RequestIDHeader,
			"Accept", "Accept-Language", "Origin", "Cache-Control",
		},
		ExposeHeaders:    []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS handles cross-origin requests with the default configuration.
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// corsPolicy is a CORSConfig resolved once at construction: the origin
// allowlist becomes a set and the list headers are pre-joined.
type corsPolicy struct {
	origins     map[string]struct{}
	wildcard    bool
	credentials bool
	methods     string
	headers     string
	expose      string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		origins:     make(map[string]struct{}, len(cfg.AllowOrigins)),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
	}
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			p.wildcard = true
		}
		p.origins[origin] = struct{}{}
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	return p
}

// originFor resolves the Access-Control-Allow-Origin value for a request
// origin, or reports that the origin is not allowed.
func (p corsPolicy) originFor(origin string) (string, bool) {
	if p.wildcard {
		return "*", true
	}
	if _, ok := p.origins[origin]; ok {
		return origin, true
	}
	return "", false
}

func (p corsPolicy) apply(h http.Header, allowedOrigin string) {
	h.Set("Access-Control-Allow-Origin", allowedOrigin)
	h.Set("Access-Control-Allow-Methods", p.methods)
	h.Set("Access-Control-Allow-Headers", p.headers)
	if p.expose != "" {
		h.Set("Access-Control-Expose-Headers", p.expose)
	}
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}
	// Credentials cannot be combined with a wildcard origin.
	if p.credentials && allowedOrigin != "*" {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// CORSWithConfig handles cross-origin requests. Disallowed origins pass
// through without CORS headers, which is rejection enough for a browser.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	policy := newCORSPolicy(cfg)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowed, ok := policy.originFor(origin); ok {
			policy.apply(c.Writer.Header(), allowed)
		}

		// Preflights end here with 204 whether or not the origin matched,
		// so they never surface as route 404s.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityConfig controls the optional HSTS header. The unconditional
// headers need no configuration.
type SecurityConfig struct {
	// HSTS stays disabled unless the gateway itself terminates TLS.
	HSTSEnabled           bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
}

// DefaultSecurityConfig returns the defaults for a gateway behind a TLS
// terminating proxy.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSEnabled:           false,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		HSTSPreload:           false,
	}
}

// Secure adds security headers with the default configuration.
func Secure() gin.HandlerFunc {
	return SecureWithConfig(DefaultSecurityConfig())
}

// SecureWithConfig stamps every response with security headers. The gateway
// serves JSON only, so the CSP denies everything; there is no HTML to relax
// it for.
func SecureWithConfig(cfg SecurityConfig) gin.HandlerFunc {
	static := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	if cfg.HSTSEnabled {
		static["Strict-Transport-Security"] = hstsDirective(cfg)
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for name, value := range static {
			h.Set(name, value)
		}
		c.Next()
	}
}

func hstsDirective(cfg SecurityConfig) string {
	var b strings.Builder
	b.WriteString("max-age=")
	b.WriteString(strconv.Itoa(cfg.HSTSMaxAge))
	if cfg.HSTSIncludeSubdomains {
		b.WriteString("; includeSubDomains")
	}
	if cfg.HSTSPreload {
		b.WriteString("; preload")
	}
	return b.String()
}
