// Package settings exposes the feature toggles the ticket engine reads on
// every mutation. Callers get an immutable Snapshot; the Provider owns
// refreshing and invalidating it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/cache"
)

// CacheKey is where the current snapshot is shared between API instances.
const CacheKey = "settings:snapshot"

// Toggle keys as stored in the settings table and YAML file.
const (
	KeyNotificationsEnabled = "notifications_enabled"
	KeyEmailEnabled         = "email_enabled"
	KeySMSEnabled           = "sms_enabled"
	KeyRealtimeEnabled      = "realtime_enabled"
	KeyAutoAssignOnCreate   = "auto_assign_on_create"
)

// Snapshot is a read-only view of the toggles. It is passed by value.
type Snapshot struct {
	NotificationsEnabled bool      `yaml:"notifications_enabled" cbor:"1,keyasint"`
	EmailEnabled         bool      `yaml:"email_enabled" cbor:"2,keyasint"`
	SMSEnabled           bool      `yaml:"sms_enabled" cbor:"3,keyasint"`
	RealtimeEnabled      bool      `yaml:"realtime_enabled" cbor:"4,keyasint"`
	AutoAssignOnCreate   bool      `yaml:"auto_assign_on_create" cbor:"5,keyasint"`
	LoadedAt             time.Time `yaml:"-" cbor:"6,keyasint"`
}

// Defaults enables every delivery channel and leaves auto-assign off.
func Defaults() Snapshot {
	return Snapshot{
		NotificationsEnabled: true,
		EmailEnabled:         true,
		SMSEnabled:           true,
		RealtimeEnabled:      true,
	}
}

// EmailAllowed reports whether email delivery is on.
func (s Snapshot) EmailAllowed() bool { return s.NotificationsEnabled && s.EmailEnabled }

// SMSAllowed reports whether SMS delivery is on.
func (s Snapshot) SMSAllowed() bool { return s.NotificationsEnabled && s.SMSEnabled }

// FromValues overlays string key/value pairs onto Defaults. Unknown keys are
// ignored; malformed booleans are an error.
func FromValues(values map[string]string) (Snapshot, error) {
	snap := Defaults()
	targets := map[string]*bool{
		KeyNotificationsEnabled: &snap.NotificationsEnabled,
		KeyEmailEnabled:         &snap.EmailEnabled,
		KeySMSEnabled:           &snap.SMSEnabled,
		KeyRealtimeEnabled:      &snap.RealtimeEnabled,
		KeyAutoAssignOnCreate:   &snap.AutoAssignOnCreate,
	}
	for key, raw := range values {
		dst, ok := targets[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Snapshot{}, fmt.Errorf("setting %s: %w", key, err)
		}
		*dst = v
	}
	return snap, nil
}

// Source loads the authoritative toggles.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Reader is satisfied by anything that can hand out the current snapshot.
type Reader interface {
	Snapshot() Snapshot
}

// Static is a Reader that always returns the same snapshot.
type Static Snapshot

// Snapshot implements Reader.
func (s Static) Snapshot() Snapshot { return Snapshot(s) }

// Provider caches the snapshot in memory and in the shared cache.
type Provider struct {
	source  Source
	cache   cache.Provider
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

// NewProvider starts with Defaults until the first Refresh succeeds.
func NewProvider(source Source, c cache.Provider, ttl time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewLocalStore(nil)
	}
	p := &Provider{source: source, cache: c, ttl: ttl, logger: logger, now: time.Now}
	initial := Defaults()
	p.current.Store(&initial)
	return p
}

// Snapshot returns the current toggles.
func (p *Provider) Snapshot() Snapshot {
	return *p.current.Load()
}

// Refresh reloads the snapshot, preferring the shared cache over the source.
// On failure the previous snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var cached Snapshot
	hit, err := cache.GetValue(ctx, p.cache, CacheKey, &cached)
	if err != nil {
		p.logger.Warn("settings cache read failed", zap.Error(err))
	}
	if hit {
		p.current.Store(&cached)
		return nil
	}
	return p.reloadLocked(ctx)
}

// Invalidate evicts the shared copy and reloads from the source.
func (p *Provider) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.cache.Delete(ctx, CacheKey); err != nil {
		p.logger.Warn("settings cache evict failed", zap.Error(err))
	}
	return p.reloadLocked(ctx)
}

func (p *Provider) reloadLocked(ctx context.Context) error {
	if p.source == nil {
		return errors.New("settings source not configured")
	}
	snap, err := p.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	snap.LoadedAt = p.now().UTC()
	if err := cache.SetValue(ctx, p.cache, CacheKey, snap, p.ttl); err != nil {
		p.logger.Warn("settings cache write failed", zap.Error(err))
	}
	p.current.Store(&snap)
	return nil
}
