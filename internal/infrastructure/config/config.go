// Package config loads the gateway's layered configuration: built-in
// defaults, an optional config.toml, and GATEWAY_-prefixed environment
// variables, in ascending priority. Secrets (API tokens, signing keys)
// are expected to arrive through the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of everything the gateway reads at boot.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Session   SessionConfig   `mapstructure:"session"`
	Vat       VatConfig       `mapstructure:"vat"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Profiler  ProfilerConfig  `mapstructure:"profiler"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or a file path
}

// ShopifyConfig identifies the shop and carries the two server-held API
// tokens. Neither token is ever sent to a client.
type ShopifyConfig struct {
	// ShopDomain is the myshopify domain, e.g. "acme.myshopify.com".
	ShopDomain string `mapstructure:"shop_domain"`
	// ShopID is the numeric shop ID the Customer Account API endpoints use.
	ShopID string `mapstructure:"shop_id"`
	// APIVersion is the GraphQL API version, e.g. "2025-01".
	APIVersion string `mapstructure:"api_version"`
	// StorefrontToken is the public Storefront API access token.
	StorefrontToken string `mapstructure:"storefront_token"`
	// AdminToken is the Admin API access token.
	AdminToken string `mapstructure:"admin_token"`
	// RequestTimeout bounds every Shopify HTTP request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OAuthConfig holds the Customer Account API OAuth client settings.
type OAuthConfig struct {
	ClientID    string   `mapstructure:"client_id"`
	RedirectURI string   `mapstructure:"redirect_uri"`
	Scopes      []string `mapstructure:"scopes"`
	// AllowedReturnURLs is the deep-link allowlist for post-login redirects.
	AllowedReturnURLs []string `mapstructure:"allowed_return_urls"`
}

// SessionConfig holds session store and gateway token settings.
type SessionConfig struct {
	// Backend selects the store: "redis" or "memory".
	Backend string `mapstructure:"backend"`
	// TTL is the sliding session lifetime.
	TTL time.Duration `mapstructure:"ttl"`
	// LoginStateTTL bounds how long an OAuth callback may take.
	LoginStateTTL time.Duration `mapstructure:"login_state_ttl"`
	// TokenRefreshLeeway refreshes Shopify tokens this long before expiry.
	TokenRefreshLeeway time.Duration `mapstructure:"token_refresh_leeway"`
	// EncryptionKey is a 64-char hex key sealing sessions at rest.
	EncryptionKey string `mapstructure:"encryption_key"`
	// AllowMemoryFallback permits the memory store when Redis is down.
	AllowMemoryFallback bool `mapstructure:"allow_memory_fallback"`
	// JWTSecret signs the gateway's own token pair; JWTIssuer and
	// JWTAudience are enforced on every token.
	JWTSecret              string        `mapstructure:"jwt_secret"`
	JWTIssuer              string        `mapstructure:"jwt_issuer"`
	JWTAudience            string        `mapstructure:"jwt_audience"`
	AccessTokenExpiration  time.Duration `mapstructure:"access_token_expiration"`
	RefreshTokenExpiration time.Duration `mapstructure:"refresh_token_expiration"`
}

// VatConfig holds the VAT-exemption proxy settings.
type VatConfig struct {
	// MetafieldNamespace and MetafieldKey address the customer metafield
	// that stores the validated VAT number.
	MetafieldNamespace string `mapstructure:"metafield_namespace"`
	MetafieldKey       string `mapstructure:"metafield_key"`
	// ExemptTag marks customers whose exemption is active; PendingTag marks
	// customers awaiting merchant review.
	ExemptTag  string `mapstructure:"exempt_tag"`
	PendingTag string `mapstructure:"pending_tag"`
}

// DatabaseConfig holds connection settings for the audit log. An empty
// driver disables auditing entirely.
type DatabaseConfig struct {
	// Driver is "postgres", "sqlite", or "" to disable the audit log.
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite database file, only read when Driver is "sqlite".
	Path            string `mapstructure:"path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// Enabled reports whether the audit database is configured.
func (d *DatabaseConfig) Enabled() bool {
	return d.Driver != ""
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port pair in the form go-redis expects.
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	// The general limit covers every route; the auth limit is the stricter
	// budget for login and VAT submission endpoints.
	RateLimitEnabled      bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests     int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow       time.Duration `mapstructure:"rate_limit_window"`
	AuthRateLimitEnabled  bool          `mapstructure:"auth_rate_limit_enabled"`
	AuthRateLimitRequests int           `mapstructure:"auth_rate_limit_requests"`
	AuthRateLimitWindow   time.Duration `mapstructure:"auth_rate_limit_window"`
	CORSAllowOrigins      []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods      []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders      []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies        []string      `mapstructure:"trusted_proxies"`
}

type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC, e.g. "localhost:4317"
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`     // 0.0-1.0
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"` // non-TLS collector connection, development only
	LogsEnabled       bool    `mapstructure:"logs_enabled"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	// DB knobs feed the otelgorm plugin.
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // dev only
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// ProfilerConfig holds pyroscope continuous profiling settings.
type ProfilerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
	// SpanProfiles links profiles to trace spans when tracing is enabled.
	SpanProfiles bool `mapstructure:"span_profiles"`
}

// Load reads config.toml (searched in . and /app, optional) and the
// GATEWAY_* environment, layered over the defaults below. A key named
// shopify.admin_token is overridden by GATEWAY_SHOPIFY_ADMIN_TOKEN;
// list-valued env variables are comma-separated.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Every key gets a default so AutomaticEnv can bind it during Unmarshal.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront-gateway")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("shopify.shop_domain", "")
	v.SetDefault("shopify.shop_id", "")
	v.SetDefault("shopify.api_version", "2025-01")
	v.SetDefault("shopify.storefront_token", "")
	v.SetDefault("shopify.admin_token", "")
	v.SetDefault("shopify.request_timeout", 15*time.Second)

	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.redirect_uri", "")
	v.SetDefault("oauth.scopes", []string{"openid", "email", "customer-account-api:full"})
	v.SetDefault("oauth.allowed_return_urls", []string{})

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 168*time.Hour)
	v.SetDefault("session.login_state_ttl", 10*time.Minute)
	v.SetDefault("session.token_refresh_leeway", time.Minute)
	v.SetDefault("session.encryption_key", "")
	v.SetDefault("session.allow_memory_fallback", false)
	v.SetDefault("session.jwt_secret", "")
	v.SetDefault("session.jwt_issuer", "storefront-gateway")
	v.SetDefault("session.jwt_audience", "storefront")
	v.SetDefault("session.access_token_expiration", 15*time.Minute)
	v.SetDefault("session.refresh_token_expiration", 168*time.Hour)

	v.SetDefault("vat.metafield_namespace", "vat")
	v.SetDefault("vat.metafield_key", "vat_number")
	v.SetDefault("vat.exempt_tag", "vat-exempt")
	v.SetDefault("vat.pending_tag", "vat-pending-review")

	v.SetDefault("database.driver", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "gateway.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.conn_max_idle_time", 30)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)
	v.SetDefault("http.max_body_size", 1<<20) // cart payloads are small
	v.SetDefault("http.rate_limit_enabled", false)
	v.SetDefault("http.rate_limit_requests", 100)
	v.SetDefault("http.rate_limit_window", time.Minute)
	v.SetDefault("http.auth_rate_limit_enabled", false)
	v.SetDefault("http.auth_rate_limit_requests", 5)
	v.SetDefault("http.auth_rate_limit_window", time.Minute)
	// No CORS origin default: an empty list refuses cross-origin calls
	// until origins are configured. Capacitor WebViews send
	// capacitor://localhost; add it explicitly where it applies.
	v.SetDefault("http.cors_allow_origins", []string{})
	v.SetDefault("http.cors_allow_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("http.cors_allow_headers", []string{"Content-Type", "Authorization", "X-Request-ID", "Accept-Language"})
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "storefront-gateway")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.logs_enabled", false)
	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.db_trace_enabled", false)
	v.SetDefault("telemetry.db_log_full_sql", false)
	v.SetDefault("telemetry.db_slow_query_threshold", 200*time.Millisecond)

	v.SetDefault("profiler.enabled", false)
	v.SetDefault("profiler.server_address", "http://localhost:4040")
	v.SetDefault("profiler.span_profiles", false)
}

func (c *Config) validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}

	switch c.Session.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("session.backend must be \"redis\" or \"memory\", got %q", c.Session.Backend)
	}
	if c.Session.EncryptionKey != "" {
		key, err := hex.DecodeString(c.Session.EncryptionKey)
		if err != nil || len(key) != 32 {
			return errors.New("session.encryption_key must be 64 hex characters (32 bytes)")
		}
	}

	if r := c.Telemetry.SamplingRatio; r < 0.0 || r > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", r)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	switch d.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be \"postgres\", \"sqlite\", or empty, got %q", d.Driver)
	}
	if d.MaxOpenConns <= 0 {
		return errors.New("database.max_open_conns must be positive")
	}
	if d.MaxIdleConns < 0 {
		return errors.New("database.max_idle_conns cannot be negative")
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			d.MaxIdleConns, d.MaxOpenConns)
	}
	return nil
}

// validateProduction refuses configurations that would be quietly unsafe
// in front of real customers.
func (c *Config) validateProduction() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{c.Shopify.ShopDomain == "", "shopify.shop_domain is required in production"},
		{c.Shopify.StorefrontToken == "", "shopify.storefront_token is required in production"},
		{c.Shopify.AdminToken == "", "shopify.admin_token is required in production"},
		{c.OAuth.ClientID == "" || c.OAuth.RedirectURI == "", "oauth.client_id and oauth.redirect_uri are required in production"},
		{c.Session.JWTSecret == "", "session.jwt_secret is required in production"},
		{c.Session.JWTSecret != "" && len(c.Session.JWTSecret) < 32, "session.jwt_secret must be at least 32 characters in production"},
		{c.Session.EncryptionKey == "", "session.encryption_key is required in production"},
		{c.Session.Backend != "redis", "session.backend must be \"redis\" in production"},
		{c.Session.AllowMemoryFallback, "session.allow_memory_fallback must be false in production"},
		{c.Database.Driver == "postgres" && c.Database.SSLMode == "disable", "database.sslmode cannot be \"disable\" in production"},
		{slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot contain \"*\" in production"},
		{c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production; full SQL can carry customer data"},
	}
	for _, check := range checks {
		if check.bad {
			return errors.New(check.msg)
		}
	}
	return nil
}

// DSN returns the postgres connection string with escaped credentials.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// SealingKey returns the decoded session encryption key, nil when unset.
func (s *SessionConfig) SealingKey() []byte {
	if s.EncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
