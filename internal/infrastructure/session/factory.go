package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/config"
)

// StoreFactory builds the session and login-state stores the configured
// backend calls for, sharing one sealer across both.
type StoreFactory struct {
	redisConfig         config.RedisConfig
	sessionConfig       config.SessionConfig
	logger              *zap.Logger
	allowMemoryFallback bool
}

// StoreFactoryOption adjusts the factory before any store is built.
type StoreFactoryOption func(*StoreFactory)

// WithLogger routes the factory's backend-selection messages to logger.
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) { f.logger = logger }
}

// WithMemoryFallback overrides whether to fall back to in-memory stores
// when Redis is unavailable. Defaults to the session configuration value.
func WithMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) { f.allowMemoryFallback = allow }
}

// NewStoreFactory returns a factory for the given configuration.
func NewStoreFactory(redisCfg config.RedisConfig, sessionCfg config.SessionConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:         redisCfg,
		sessionConfig:       sessionCfg,
		logger:              zap.NewNop(),
		allowMemoryFallback: sessionCfg.AllowMemoryFallback,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStores dials Redis and returns both stores sharing one sealer.
func (f *StoreFactory) CreateRedisStores() (storefront.SessionStore, storefront.LoginStateStore, error) {
	var sealer *Sealer
	if key := f.sessionConfig.SealingKey(); len(key) > 0 {
		s, err := NewSealer(key)
		if err != nil {
			return nil, nil, err
		}
		sealer = s
	}

	sessions, err := NewRedisSessionStore(f.redisConfig, sealer)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis session store: %w", err)
	}

	states, err := NewRedisLoginStateStore(f.redisConfig, sealer)
	if err != nil {
		sessions.Close()
		return nil, nil, fmt.Errorf("create redis login state store: %w", err)
	}

	return sessions, states, nil
}

// CreateMemoryStores returns in-memory stores.
// WARNING: In-memory stores do not share state across process instances;
// every login and session is lost on restart.
func (f *StoreFactory) CreateMemoryStores() (storefront.SessionStore, storefront.LoginStateStore) {
	return NewMemorySessionStore(), NewMemoryLoginStateStore()
}

// CreateStores creates the configured stores. With the redis backend it
// tries Redis first and falls back to memory only when fallback is allowed.
func (f *StoreFactory) CreateStores() (storefront.SessionStore, storefront.LoginStateStore, error) {
	if f.sessionConfig.Backend == "memory" {
		f.logger.Info("using in-memory session store")
		sessions, states := f.CreateMemoryStores()
		return sessions, states, nil
	}

	sessions, states, err := f.CreateRedisStores()
	if err == nil {
		f.logger.Info("using Redis session store")
		return sessions, states, nil
	}

	if !f.allowMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for sessions but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory session store. "+
		"Sessions will not survive restarts or be shared across instances.",
		zap.Error(err),
	)
	memSessions, memStates := f.CreateMemoryStores()
	return memSessions, memStates, nil
}
