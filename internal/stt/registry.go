package stt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eleven-am/dicton/internal/shared"
)

// DefaultOrder is the fallback priority walked when no provider is
// explicitly configured. "null" sits last so an unconfigured install still
// runs sessions end to end instead of erroring on an empty registry.
var DefaultOrder = []string{"gladia", "mistral", "elevenlabs", "null"}

const (
	availabilityTTL = 60 * time.Second
	probeInterval   = 5 * time.Second
)

type availability struct {
	ok      bool
	checked time.Time
}

// Registry holds the configured providers and selects one per session.
// Availability probes are cached with a TTL and throttled so a burst of
// sessions does not hammer provider health endpoints.
type Registry struct {
	log     *slog.Logger
	limiter *rate.Limiter

	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
	preferred string
	cache     map[string]availability
}

type RegistryOption func(*Registry)

// WithPreferred pins the provider tried first, ahead of the default order.
func WithPreferred(name string) RegistryOption {
	return func(r *Registry) { r.preferred = name }
}

func WithOrder(order []string) RegistryOption {
	return func(r *Registry) { r.order = order }
}

func NewRegistry(log *slog.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		log:       log,
		limiter:   rate.NewLimiter(rate.Every(probeInterval), len(DefaultOrder)),
		providers: make(map[string]Provider),
		order:     DefaultOrder,
		cache:     make(map[string]availability),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider under its name. Later registrations replace
// earlier ones and reset the cached availability for that name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	delete(r.cache, p.Name())
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

// Names returns the registered provider names in selection order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.selectionOrderLocked() {
		if _, ok := r.providers[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// GetWithFallback walks the selection order, trying the explicitly
// configured provider first and then the default priority list, and returns
// the first available provider. Names without a registered provider are
// skipped, never instantiated. It returns shared.ErrNoProvider when the
// chain is exhausted.
func (r *Registry) GetWithFallback(ctx context.Context) (Provider, error) {
	r.mu.RLock()
	order := r.selectionOrderLocked()
	r.mu.RUnlock()

	for _, name := range order {
		r.mu.RLock()
		p, ok := r.providers[name]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if r.available(ctx, name, p) {
			return p, nil
		}
		r.log.Debug("provider unavailable, falling back", "provider", name)
	}
	return nil, shared.ErrNoProvider
}

// Next returns the first available provider after the given one in the
// selection order. Used for batch-eligible retry after a provider failure.
func (r *Registry) Next(ctx context.Context, after string) (Provider, error) {
	r.mu.RLock()
	order := r.selectionOrderLocked()
	r.mu.RUnlock()

	passed := false
	for _, name := range order {
		if name == after {
			passed = true
			continue
		}
		if !passed {
			continue
		}
		r.mu.RLock()
		p, ok := r.providers[name]
		r.mu.RUnlock()
		if ok && r.available(ctx, name, p) {
			return p, nil
		}
	}
	return nil, shared.ErrNoProvider
}

// Invalidate drops cached availability so the next selection re-probes.
// Called when credentials change at runtime.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]availability)
}

// MarkUnavailable records a provider as down without waiting for its TTL
// probe to notice. Called after an observed request failure.
func (r *Registry) MarkUnavailable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[name] = availability{ok: false, checked: time.Now()}
}

func (r *Registry) selectionOrderLocked() []string {
	if r.preferred == "" {
		return r.order
	}
	order := make([]string, 0, len(r.order)+1)
	order = append(order, r.preferred)
	for _, name := range r.order {
		if name != r.preferred {
			order = append(order, name)
		}
	}
	return order
}

func (r *Registry) available(ctx context.Context, name string, p Provider) bool {
	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok && time.Since(cached.checked) < availabilityTTL {
		return cached.ok
	}

	// Throttled probe; on limiter exhaustion reuse the stale verdict
	// rather than block the session on a health check.
	if !r.limiter.Allow() {
		if ok {
			return cached.ok
		}
		return false
	}

	avail := p.Available(ctx)
	r.mu.Lock()
	r.cache[name] = availability{ok: avail, checked: time.Now()}
	r.mu.Unlock()
	return avail
}
