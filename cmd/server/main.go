package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	cartapp "github.com/storefront/gateway/internal/application/cart"
	catalogapp "github.com/storefront/gateway/internal/application/catalog"
	identityapp "github.com/storefront/gateway/internal/application/identity"
	vatapp "github.com/storefront/gateway/internal/application/vat"
	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/auth"
	"github.com/storefront/gateway/internal/infrastructure/config"
	"github.com/storefront/gateway/internal/infrastructure/logger"
	"github.com/storefront/gateway/internal/infrastructure/persistence"
	"github.com/storefront/gateway/internal/infrastructure/session"
	"github.com/storefront/gateway/internal/infrastructure/shopify"
	"github.com/storefront/gateway/internal/infrastructure/telemetry"
	"github.com/storefront/gateway/internal/interfaces/http/handler"
	"github.com/storefront/gateway/internal/interfaces/http/middleware"
	"github.com/storefront/gateway/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storefront gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Tracer provider shutdown failed", zap.Error(err))
		}
	}()

	// OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Meter provider shutdown failed", zap.Error(err))
		}
	}()

	// OpenTelemetry log export. When enabled, application logs are teed to
	// the collector through the zap bridge.
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := logsProvider.Shutdown(context.Background()); err != nil {
			log.Error("Logger provider shutdown failed", zap.Error(err))
		}
	}()
	if logsProvider.IsEnabled() {
		bridged, err := telemetry.CreateBridgedLoggerFromConfig(&telemetry.BaseLoggerConfig{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		}, logsProvider, cfg.Telemetry.ServiceName)
		if err != nil {
			log.Warn("Failed to bridge logs to OTEL, keeping local logger", zap.Error(err))
		} else {
			log = bridged
		}
	}

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Profiler.Enabled,
		ServerAddress:       cfg.Profiler.ServerAddress,
		ApplicationName:     cfg.App.Name,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Profiler stop failed", zap.Error(err))
		}
	}()
	if cfg.Profiler.Enabled && cfg.Profiler.SpanProfiles {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// VAT exemption audit database (optional). Without it the VAT endpoints
	// still proxy to Shopify but nothing is recorded locally.
	var db *persistence.Database
	var exemptionRepo storefront.ExemptionRepository
	if cfg.Database.Enabled() {
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
		db, err = persistence.Open(&cfg.Database, gormLog)
		if err != nil {
			log.Fatal("Failed to connect to audit database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing audit database", zap.Error(err))
			}
		}()
		log.Info("Audit database connected", zap.String("driver", cfg.Database.Driver))

		// The sqlite development backend has no migration pipeline; its
		// schema is created in place. Postgres uses the migrate CLI.
		if cfg.Database.Driver == "sqlite" {
			if err := db.MigrateAuditSchema(); err != nil {
				log.Fatal("Failed to migrate audit schema", zap.Error(err))
			}
		}

		exemptionRepo = persistence.NewGormVatExemptionRepository(db.DB)

		// Query tracing and pool metrics piggyback on the same GORM instance
		if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
			dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
				Enabled:         true,
				LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
				SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
				DBSystem:        cfg.Database.Driver,
			}, log)
			if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
				log.Warn("Failed to register database tracing", zap.Error(err))
			}
		}
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(ctx)
			defer dbMetrics.Stop()
		}
	} else {
		log.Info("Audit database not configured, VAT exemption auditing disabled")
	}

	// Session stores: Redis in production, in-memory for development
	factory := session.NewStoreFactory(cfg.Redis, cfg.Session, session.WithLogger(log))
	sessions, loginStates, err := factory.CreateStores()
	if err != nil {
		log.Fatal("Failed to create session stores", zap.Error(err))
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Error("Error closing session store", zap.Error(err))
		}
		if err := loginStates.Close(); err != nil {
			log.Error("Error closing login state store", zap.Error(err))
		}
	}()

	// Shopify API clients
	storefrontClient, err := shopify.NewStorefrontClient(&shopify.StorefrontConfig{
		ShopDomain:  cfg.Shopify.ShopDomain,
		APIVersion:  cfg.Shopify.APIVersion,
		AccessToken: cfg.Shopify.StorefrontToken,
		Timeout:     cfg.Shopify.RequestTimeout,
	})
	if err != nil {
		log.Fatal("Failed to create Storefront API client", zap.Error(err))
	}

	customerClient, err := shopify.NewCustomerAccountClient(&shopify.CustomerAccountConfig{
		ShopID:     cfg.Shopify.ShopID,
		APIVersion: cfg.Shopify.APIVersion,
		Timeout:    cfg.Shopify.RequestTimeout,
	})
	if err != nil {
		log.Fatal("Failed to create Customer Account API client", zap.Error(err))
	}

	// The Admin client is optional outside production: without a token the
	// VAT endpoints report unavailable instead of blocking startup.
	var adminAPI storefront.AdminAPI
	var adminClient *shopify.AdminClient
	if cfg.Shopify.AdminToken != "" {
		adminClient, err = shopify.NewAdminClient(&shopify.AdminConfig{
			ShopDomain:         cfg.Shopify.ShopDomain,
			APIVersion:         cfg.Shopify.APIVersion,
			AccessToken:        cfg.Shopify.AdminToken,
			MetafieldNamespace: cfg.Vat.MetafieldNamespace,
			MetafieldKey:       cfg.Vat.MetafieldKey,
			Timeout:            cfg.Shopify.RequestTimeout,
		})
		if err != nil {
			log.Fatal("Failed to create Admin API client", zap.Error(err))
		}
		adminAPI = adminClient
	} else {
		log.Warn("Admin API token not configured, VAT endpoints will report unavailable")
		adminAPI = shopify.NewDisabledAdminClient()
	}

	// OAuth client and gateway JWT issuer
	jwtService := auth.NewJWTService(cfg.Session)
	oauthClient, err := auth.NewOAuthClient(&auth.OAuthClientConfig{
		ShopID:      cfg.Shopify.ShopID,
		ClientID:    cfg.OAuth.ClientID,
		RedirectURI: cfg.OAuth.RedirectURI,
		Scopes:      cfg.OAuth.Scopes,
		Timeout:     cfg.Shopify.RequestTimeout,
	})
	if err != nil {
		log.Fatal("Failed to create OAuth client", zap.Error(err))
	}

	// Application services
	catalogService := catalogapp.NewService(storefrontClient, log)
	cartService := cartapp.NewService(storefrontClient, log)
	authService := identityapp.NewAuthService(oauthClient, jwtService, sessions, loginStates, customerClient,
		identityapp.AuthServiceConfig{
			SessionTTL:         cfg.Session.TTL,
			LoginStateTTL:      cfg.Session.LoginStateTTL,
			TokenRefreshLeeway: cfg.Session.TokenRefreshLeeway,
			AllowedReturnURLs:  cfg.OAuth.AllowedReturnURLs,
		}, log)
	accountService := identityapp.NewAccountService(customerClient, authService, log)
	vatService := vatapp.NewService(adminAPI, exemptionRepo, cfg.Vat, log)

	// Gateway metrics: Shopify request counters plus session and login gauges
	if meterProvider.IsEnabled() {
		gatewayMetrics, err := telemetry.NewGatewayMetrics(telemetry.GatewayMetricsConfig{
			Meter:           meterProvider.Meter("gateway"),
			Logger:          log,
			SessionProvider: sessionMetricsProvider(sessions),
		})
		if err != nil {
			log.Warn("Failed to create gateway metrics", zap.Error(err))
		} else {
			storefrontClient.SetObserver(gatewayMetrics)
			customerClient.SetObserver(gatewayMetrics)
			if adminClient != nil {
				adminClient.SetObserver(gatewayMetrics)
			}
			authService.SetMetrics(gatewayMetrics)
			vatService.SetMetrics(gatewayMetrics)
			gatewayMetrics.StartPeriodicCollection(ctx, time.Minute)
			defer gatewayMetrics.Stop()
		}
	}

	catalogHandler := handler.NewCatalogHandler(catalogService)
	cartHandler := handler.NewCartHandler(cartService, authService)
	authHandler := handler.NewAuthHandler(authService)
	accountHandler := handler.NewAccountHandler(accountService)
	vatHandler := handler.NewVatHandler(vatService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version,
		handler.HealthCheckFunc{ComponentName: "sessions", Fn: sessionHealthCheck(sessions)},
		handler.HealthCheckFunc{ComponentName: "audit_db", Fn: databaseHealthCheck(db)},
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	// Cart and line IDs are Shopify GIDs and arrive percent-encoded in the path
	engine.UseRawPath = true

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Trusted proxy configuration rejected", zap.Error(err))
		}
	}

	// Middleware order matters: the request ID must exist before anything
	// logs, spans wrap metrics, and size/rate limits run last so rejected
	// requests are still observable.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.SpanContextTagger())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       meterProvider.IsEnabled(),
	}))
	if profiler.IsEnabled() {
		engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   true,
			SkipPaths: []string{"/health"},
		}))
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Global rate limit active",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Liveness stays outside the versioned API
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	sessionAuth := middleware.SessionAuth(authService, log)
	optionalAuth := middleware.OptionalSessionAuth(authService, log)

	// The login and VAT endpoints get a tighter limiter than the global one:
	// they fan out to OAuth token exchanges and Admin API calls.
	var authLimiter gin.HandlerFunc
	if cfg.HTTP.AuthRateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		authLimiter = middleware.RateLimitByKey(limiter, middleware.SessionRateLimitKey)
		log.Info("Auth rate limiting enabled",
			zap.Int("requests", cfg.HTTP.AuthRateLimitRequests),
			zap.Duration("window", cfg.HTTP.AuthRateLimitWindow),
		)
	}

	// Catalog: public product and collection reads
	catalogRoutes := router.NewDomainGroup("catalog", "")
	catalogRoutes.GET("/products", catalogHandler.ListProducts)
	catalogRoutes.GET("/products/:handle", catalogHandler.GetProduct)
	catalogRoutes.GET("/products/:handle/recommendations", catalogHandler.GetRecommendations)
	catalogRoutes.GET("/collections", catalogHandler.ListCollections)
	catalogRoutes.GET("/collections/:handle", catalogHandler.GetCollection)

	// Carts: anonymous by default. Buyer identity and checkout URL attach
	// the session's customer token when a session is present.
	cartRoutes := router.NewDomainGroup("carts", "/carts")
	cartRoutes.POST("", cartHandler.CreateCart)
	cartRoutes.GET("/:id", cartHandler.GetCart)
	cartRoutes.POST("/:id/lines", cartHandler.AddLines)
	cartRoutes.PUT("/:id/lines", cartHandler.UpdateLines)
	cartRoutes.DELETE("/:id/lines", cartHandler.RemoveLines)
	cartRoutes.PUT("/:id/discount-codes", cartHandler.UpdateDiscountCodes)
	cartRoutes.PUT("/:id/buyer-identity", optionalAuth, cartHandler.UpdateBuyerIdentity)
	cartRoutes.GET("/:id/checkout-url", optionalAuth, cartHandler.GetCheckoutURL)

	// Auth: login, callback and refresh are public, logout needs the session
	authRoutes := router.NewDomainGroup("auth", "/auth")
	if authLimiter != nil {
		authRoutes.Use(authLimiter)
	}
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.GET("/callback", authHandler.Callback)
	authRoutes.POST("/refresh", authHandler.RefreshToken)
	authRoutes.POST("/logout", sessionAuth, authHandler.Logout)

	// Account: everything requires a live session
	accountRoutes := router.NewDomainGroup("account", "/account")
	accountRoutes.Use(sessionAuth)
	accountRoutes.GET("/profile", accountHandler.GetProfile)
	accountRoutes.GET("/orders", accountHandler.ListOrders)
	accountRoutes.GET("/orders/:id", accountHandler.GetOrder)

	// VAT: session-gated Admin API proxy
	vatRoutes := router.NewDomainGroup("vat", "/vat")
	vatRoutes.Use(sessionAuth)
	if authLimiter != nil {
		vatRoutes.Use(authLimiter)
	}
	vatRoutes.POST("/customer-search", vatHandler.CustomerSearch)
	vatRoutes.POST("/exemptions", vatHandler.SubmitExemption)
	vatRoutes.GET("/exemptions", vatHandler.ListExemptions)

	r.Register(catalogRoutes).
		Register(cartRoutes).
		Register(authRoutes).
		Register(accountRoutes).
		Register(vatRoutes)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Block on SIGINT/SIGTERM, then drain in-flight requests before the
	// deferred store and provider shutdowns run.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Graceful shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}

// sessionHealthCheck probes the session backend with a random lookup.
// A miss is the healthy outcome; only transport errors count as failures.
func sessionHealthCheck(store storefront.SessionStore) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, uuid.New())
		if err != nil && !errors.Is(err, storefront.ErrSessionNotFound) {
			return err
		}
		return nil
	}
}

// databaseHealthCheck returns a ping probe for the audit database, or nil
// when auditing is disabled so the component reports as such.
func databaseHealthCheck(db *persistence.Database) func(ctx context.Context) error {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return db.Ping()
	}
}

// sessionMetricsProvider wires the active-sessions gauge to whichever store
// backend the factory produced.
func sessionMetricsProvider(store storefront.SessionStore) telemetry.SessionMetricsProvider {
	switch s := store.(type) {
	case *session.RedisSessionStore:
		return telemetry.NewRedisSessionMetricsProvider(s.Client(), s.KeyPrefix())
	case *session.MemorySessionStore:
		return telemetry.SessionMetricsProviderFunc(func(ctx context.Context) (int64, error) {
			return int64(s.Size()), nil
		})
	default:
		return nil
	}
}
