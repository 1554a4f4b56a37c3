package header

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/consultants-web/internal/content"
	"finitefield.org/consultants-web/internal/observability"
)

// Navigator moves the visible view to path.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Brand is the mark shown in the header's home link.
type Brand struct {
	Mark    string
	Name    string
	LogoURL string
}

type lifecycle int

const (
	stateIdle lifecycle = iota
	stateMounted
	stateUnmounted
)

// Component is one mounted header: its own snapshot and its own menu.
type Component struct {
	id       string
	loader   *Loader
	settings content.SettingsSource
	logger   *zap.Logger
	metrics  *observability.Metrics
	menu     Menu

	mu       sync.RWMutex
	state    lifecycle
	cancel   context.CancelFunc
	snapshot Snapshot
	loaded   bool
	brand    Brand

	settled    chan struct{}
	settleOnce sync.Once
	wg         sync.WaitGroup
}

// Option customises a Component.
type Option func(*Component)

// WithID labels the component in logs.
func WithID(id string) Option {
	return func(c *Component) { c.id = id }
}

// WithLogger sets the diagnostic logger that receives fetch failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Component) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Component) { c.metrics = m }
}

// WithBrand sets the text mark used when no logo is configured.
func WithBrand(mark, name string) Option {
	return func(c *Component) {
		c.brand.Mark = mark
		c.brand.Name = name
	}
}

// WithSettings enables the best-effort site settings lookup for the logo.
func WithSettings(src content.SettingsSource) Option {
	return func(c *Component) { c.settings = src }
}

// New builds an unmounted Component reading navigation from svc.
func New(svc content.Service, opts ...Option) (*Component, error) {
	loader, err := NewLoader(svc)
	if err != nil {
		return nil, err
	}
	c := &Component{
		loader:  loader,
		logger:  zap.NewNop(),
		settled: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ID returns the component label.
func (c *Component) ID() string { return c.id }

// Mount starts the navigation fetch. Only the first call has an effect, and a
// component that was already unmounted never starts. The fetch outlives ctx's
// cancellation (a request finishing does not abort it) but keeps its values;
// only Unmount stops it.
func (c *Component) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return
	}
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.state = stateMounted
	c.cancel = cancel
	// Counted before the state change is visible so an Unmount then Wait
	// racing with Mount still waits for these goroutines.
	c.wg.Add(1)
	if c.settings != nil {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	go c.populate(fetchCtx)
	if c.settings != nil {
		go c.loadBrand(fetchCtx)
	}
}

// Unmount tears the component down: in-flight queries are cancelled and any
// result that arrives afterwards is discarded.
func (c *Component) Unmount() {
	c.mu.Lock()
	c.state = stateUnmounted
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.settle()
}

// Wait blocks until background work started by Mount has returned.
func (c *Component) Wait() { c.wg.Wait() }

// Settled is closed once the navigation fetch has completed, successfully or
// not, or the component was unmounted.
func (c *Component) Settled() <-chan struct{} { return c.settled }

// IsSettled reports whether Settled is closed.
func (c *Component) IsSettled() bool {
	select {
	case <-c.settled:
		return true
	default:
		return false
	}
}

// Loaded reports whether a fetch has populated the snapshot.
func (c *Component) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Snapshot returns a copy of the current navigation snapshot.
func (c *Component) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.clone()
}

// MenuOpen reports the mobile menu state.
func (c *Component) MenuOpen() bool { return c.menu.IsOpen() }

// ToggleMenu flips the mobile menu and returns the new state.
func (c *Component) ToggleMenu() bool { return c.menu.Toggle() }

// CloseMenu forces the mobile menu closed.
func (c *Component) CloseMenu() { c.menu.Close() }

// ActivateLink handles a navigation link. Links inside the mobile panel
// collapse the menu before navigating; desktop links leave it untouched.
func (c *Component) ActivateLink(nav Navigator, path string, fromMobilePanel bool) {
	if fromMobilePanel {
		c.menu.Close()
	}
	nav.Navigate(path)
}

// ViewModel captures everything View needs at this instant.
func (c *Component) ViewModel(currentPath string) ViewModel {
	c.mu.RLock()
	vm := ViewModel{
		Snapshot:    c.snapshot.clone(),
		Brand:       c.brand,
		CurrentPath: currentPath,
	}
	c.mu.RUnlock()
	vm.MenuOpen = c.menu.IsOpen()
	vm.Settled = c.IsSettled()
	return vm
}

func (c *Component) populate(ctx context.Context) {
	defer c.wg.Done()
	defer c.settle()

	start := time.Now()
	snap, err := c.loader.Load(ctx)
	elapsed := time.Since(start).Seconds()

	c.mu.Lock()
	live := c.state == stateMounted
	if err == nil && live {
		c.snapshot = snap
		c.loaded = true
	}
	c.mu.Unlock()

	switch {
	case !live:
		c.metrics.ObserveFetch(observability.FetchDiscarded, elapsed)
		c.logger.Debug("navigation result discarded after unmount", zap.String("mount_id", c.id))
	case err != nil:
		c.metrics.ObserveFetch(observability.FetchError, elapsed)
		c.logger.Error("navigation data fetch failed",
			zap.String("mount_id", c.id),
			zap.Error(err),
		)
	default:
		c.metrics.ObserveFetch(observability.FetchOK, elapsed)
	}
}

func (c *Component) loadBrand(ctx context.Context) {
	defer c.wg.Done()

	settings, err := c.settings.SiteSettings(ctx)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) && ctx.Err() == nil {
			c.logger.Warn("site settings unavailable", zap.String("mount_id", c.id), zap.Error(err))
		}
		return
	}
	c.mu.Lock()
	if c.state == stateMounted {
		c.brand.LogoURL = settings.LogoURL
	}
	c.mu.Unlock()
}

func (c *Component) settle() {
	c.settleOnce.Do(func() { close(c.settled) })
}
