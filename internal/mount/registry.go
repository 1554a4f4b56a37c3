// Package mount keeps one header component per browser session and tears
// components down when their session goes idle.
package mount

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finitefield.org/consultants-web/internal/header"
	"finitefield.org/consultants-web/internal/observability"
)

// ErrClosed is returned by Attach after Close.
var ErrClosed = errors.New("mount: registry closed")

// Factory builds an unmounted component for a mount id.
type Factory func(id string) (*header.Component, error)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultMaxMounts     = 10000
)

// Config tunes idle teardown and bounds the number of live components.
type Config struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// MaxMounts caps live components. Attaching a new id at the cap unmounts
	// the least recently seen one first.
	MaxMounts int
}

type entry struct {
	component *header.Component
	lastSeen  time.Time
}

// Registry maps mount ids to live components.
type Registry struct {
	factory Factory
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// Option customises a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics reports the live mount count.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(factory Factory, cfg Config, opts ...Option) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("mount: component factory is required")
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.MaxMounts <= 0 {
		cfg.MaxMounts = defaultMaxMounts
	}
	r := &Registry{
		factory: factory,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// NewID returns a fresh mount id.
func NewID() string {
	return uuid.NewString()
}

// Attach returns the component mounted under id, creating and mounting it on
// first use. An empty or malformed id gets a fresh one; the id actually used is
// returned so the caller can persist it.
func (r *Registry) Attach(ctx context.Context, id string) (*header.Component, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = NewID()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, "", ErrClosed
	}
	if e, ok := r.entries[id]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.component, id, nil
	}
	c, err := r.factory(id)
	if err != nil {
		r.mu.Unlock()
		return nil, "", err
	}
	evictedID, evicted := r.evictOldestLocked()
	r.entries[id] = &entry{component: c, lastSeen: r.now()}
	r.mu.Unlock()

	if evicted != nil {
		r.unmount(evictedID, evicted)
		r.metrics.MountEvicted()
		r.logger.Debug("header evicted at mount cap", zap.String("mount_id", evictedID), zap.Int("max_mounts", r.cfg.MaxMounts))
	}
	r.metrics.MountAdded()
	c.Mount(ctx)
	r.logger.Debug("header mounted", zap.String("mount_id", id))
	return c, id, nil
}

// evictOldestLocked removes the least recently seen entry when the registry is
// full. r.mu must be held.
func (r *Registry) evictOldestLocked() (string, *header.Component) {
	if len(r.entries) < r.cfg.MaxMounts {
		return "", nil
	}
	var (
		oldestID string
		oldest   *entry
	)
	for id, e := range r.entries {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return "", nil
	}
	delete(r.entries, oldestID)
	return oldestID, oldest.component
}

// Lookup returns the component for id without creating one.
func (r *Registry) Lookup(id string) (*header.Component, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.component, true
}

// Detach unmounts and forgets the component for id.
func (r *Registry) Detach(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if ok {
		r.unmount(id, e.component)
	}
}

// Len reports the number of live components.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep unmounts every component idle for longer than the TTL and returns how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	stale := make(map[string]*header.Component)
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale[id] = e.component
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for id, c := range stale {
		r.unmount(id, c)
	}
	return len(stale)
}

// Run sweeps on the configured interval until ctx ends.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("idle headers unmounted", zap.Int("count", n))
			}
		}
	}
}

// Close unmounts every component and rejects further attaches.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		r.unmount(id, e.component)
	}
}

func (r *Registry) unmount(id string, c *header.Component) {
	c.Unmount()
	r.metrics.MountRemoved()
	r.logger.Debug("header unmounted", zap.String("mount_id", id))
}
