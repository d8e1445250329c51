// Package cache provides the CacheProvider used for shared, short-lived
// values such as settings snapshots.
//
// Reads and writes follow a fixed fallback chain: tryRemote -> fallbackLocal.
// The remote tier (Redis) is shared by every API instance; when it errors the
// in-process tier answers instead and the failure is logged.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
)

// Provider stores opaque values by key.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStore is the remote tier.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, errors.New("redis store not configured")
	}
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("redis store not configured")
	}
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return errors.New("redis store not configured")
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalStore is the in-process tier. It never fails.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]localEntry
	clock   clock.Clock
}

// NewLocalStore builds an empty LocalStore.
func NewLocalStore(clk clock.Clock) *LocalStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &LocalStore{entries: make(map[string]localEntry), clock: clk}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Tiered chains a remote Provider in front of a LocalStore.
type Tiered struct {
	remote Provider
	local  *LocalStore
	logger *zap.Logger
}

// NewTiered builds the chain. remote may be nil, in which case only the local
// tier is used.
func NewTiered(remote Provider, local *LocalStore, logger *zap.Logger) *Tiered {
	if local == nil {
		local = NewLocalStore(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{remote: remote, local: local, logger: logger}
}

// Get tries the remote tier and falls back to the local tier on error. A
// remote miss is authoritative and is not retried locally.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.remote != nil {
		val, ok, err := t.remote.Get(ctx, key)
		if err == nil {
			return val, ok, nil
		}
		t.logger.Warn("remote cache get failed; using local cache", zap.String("key", key), zap.Error(err))
	}
	return t.local.Get(ctx, key)
}

// Set writes both tiers. Remote failures are logged, not returned.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.remote != nil {
		if err := t.remote.Set(ctx, key, value, ttl); err != nil {
			t.logger.Warn("remote cache set failed; value kept locally", zap.String("key", key), zap.Error(err))
		}
	}
	return t.local.Set(ctx, key, value, ttl)
}

// Delete evicts key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if t.remote != nil {
		if err := t.remote.Delete(ctx, key); err != nil {
			t.logger.Warn("remote cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	return t.local.Delete(ctx, key)
}
