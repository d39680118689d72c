package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/config"
)

// redisDialTimeout bounds the startup ping so a wrong Redis address fails
// the boot instead of the first login.
const redisDialTimeout = 5 * time.Second

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// RedisSessionStore implements SessionStore using Redis. Records are JSON,
// sealed before writing when a sealer is configured, so multiple gateway
// instances share sessions without Shopify tokens resting in plaintext.
type RedisSessionStore struct {
	client    *redis.Client
	sealer    *Sealer
	keyPrefix string
}

// NewRedisSessionStore dials Redis and returns a session store.
// A nil sealer stores records unsealed; production wiring always passes one.
func NewRedisSessionStore(cfg config.RedisConfig, sealer *Sealer) (*RedisSessionStore, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisSessionStoreWithClient(client, sealer), nil
}

// NewRedisSessionStoreWithClient wraps an already-connected client, for
// callers that share one client across components.
func NewRedisSessionStoreWithClient(client *redis.Client, sealer *Sealer) *RedisSessionStore {
	return &RedisSessionStore{
		client:    client,
		sealer:    sealer,
		keyPrefix: "session:",
	}
}

func (s *RedisSessionStore) key(id uuid.UUID) string {
	return s.keyPrefix + id.String()
}

func (s *RedisSessionStore) encode(session *storefront.Session) ([]byte, error) {
	payload, err := json.Marshal(newSessionRecord(session))
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if s.sealer == nil {
		return payload, nil
	}
	sealed, err := s.sealer.Seal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to seal session: %w", err)
	}
	return sealed, nil
}

func (s *RedisSessionStore) decode(raw []byte) (*storefront.Session, error) {
	payload := raw
	if s.sealer != nil {
		opened, err := s.sealer.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to open session: %w", err)
		}
		payload = opened
	}
	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return record.toDomain()
}

// Save writes the session with the given TTL, replacing any prior value
func (s *RedisSessionStore) Save(ctx context.Context, session *storefront.Session, ttl time.Duration) error {
	value, err := s.encode(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(session.ID), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the session or ErrSessionNotFound
func (s *RedisSessionStore) Get(ctx context.Context, id uuid.UUID) (*storefront.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storefront.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s.decode(raw)
}

// Delete removes the session; deleting an absent session is not an error
func (s *RedisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Touch extends the session's TTL and updates LastSeenAt. Sessions are
// keyed per customer, so the read-modify-write here is uncontended.
func (s *RedisSessionStore) Touch(ctx context.Context, id uuid.UUID, ttl time.Duration) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	session.LastSeenAt = time.Now().UTC()
	return s.Save(ctx, session, ttl)
}

// Close releases the store's Redis connection.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client so components that observe the
// session key space, like the sessions gauge, can share the connection.
func (s *RedisSessionStore) Client() *redis.Client {
	return s.client
}

// KeyPrefix returns the prefix session keys are written under.
func (s *RedisSessionStore) KeyPrefix() string {
	return s.keyPrefix
}

var _ storefront.SessionStore = (*RedisSessionStore)(nil)

// RedisLoginStateStore implements LoginStateStore using Redis, letting the
// OAuth callback land on any gateway instance.
type RedisLoginStateStore struct {
	client    *redis.Client
	sealer    *Sealer
	keyPrefix string
}

// NewRedisLoginStateStore dials Redis and returns a login-state store.
func NewRedisLoginStateStore(cfg config.RedisConfig, sealer *Sealer) (*RedisLoginStateStore, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisLoginStateStoreWithClient(client, sealer), nil
}

// NewRedisLoginStateStoreWithClient wraps an already-connected client.
func NewRedisLoginStateStoreWithClient(client *redis.Client, sealer *Sealer) *RedisLoginStateStore {
	return &RedisLoginStateStore{
		client:    client,
		sealer:    sealer,
		keyPrefix: "login_state:",
	}
}

// Save writes the login state with the given TTL
func (s *RedisLoginStateStore) Save(ctx context.Context, state *storefront.LoginState, ttl time.Duration) error {
	payload, err := json.Marshal(newLoginStateRecord(state))
	if err != nil {
		return fmt.Errorf("failed to encode login state: %w", err)
	}
	if s.sealer != nil {
		payload, err = s.sealer.Seal(payload)
		if err != nil {
			return fmt.Errorf("failed to seal login state: %w", err)
		}
	}
	if err := s.client.Set(ctx, s.keyPrefix+state.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save login state: %w", err)
	}
	return nil
}

// Take returns the login state and deletes it atomically via GETDEL,
// so a state value can complete at most one login across instances.
func (s *RedisLoginStateStore) Take(ctx context.Context, state string) (*storefront.LoginState, error) {
	raw, err := s.client.GetDel(ctx, s.keyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storefront.ErrLoginStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take login state: %w", err)
	}

	payload := raw
	if s.sealer != nil {
		payload, err = s.sealer.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to open login state: %w", err)
		}
	}
	var record loginStateRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode login state: %w", err)
	}
	return record.toDomain(), nil
}

// Close releases the store's Redis connection.
func (s *RedisLoginStateStore) Close() error {
	return s.client.Close()
}

var _ storefront.LoginStateStore = (*RedisLoginStateStore)(nil)
