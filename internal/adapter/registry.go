package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Factory constructs an uninitialized adapter from its settings.
type Factory func(s Settings) (SearchAdapter, error)

// Registry manages adapter factories and initialized instances. Instances
// are process-scoped: constructed from configuration at startup, initialized
// once, health-checked on demand, and shut down at process exit. Lookup
// order is deterministic (insertion order).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]SearchAdapter
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		instances: map[string]SearchAdapter{},
	}
}

// Register records a factory under name. Re-registering overwrites with a
// warning.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		log.Warn().Str("adapter", name).Msg("overwriting adapter registration")
	}
	r.factories[name] = f
	log.Info().Str("adapter", name).Msg("registered adapter")
}

// Initialize constructs and initializes the named adapter from settings and
// keeps the instance for lookup.
func (r *Registry) Initialize(ctx context.Context, name string, s Settings) (SearchAdapter, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownAdapter, name, r.Registered())
	}
	a, err := f(s)
	if err != nil {
		return nil, fmt.Errorf("construct adapter %q: %w", name, err)
	}
	if err := a.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize adapter %q: %w", name, err)
	}
	r.mu.Lock()
	if _, exists := r.instances[name]; !exists {
		r.order = append(r.order, name)
	}
	r.instances[name] = a
	r.mu.Unlock()
	log.Info().Str("adapter", name).Msg("initialized adapter")
	return a, nil
}

// Get returns an initialized adapter by name.
func (r *Registry) Get(name string) (SearchAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not initialized", ErrUnknownAdapter, name)
	}
	return a, nil
}

// GetAdapters returns the requested subset of initialized adapters, or all
// of them when names is empty. Unknown names are skipped with a warning.
// Order follows initialization order.
func (r *Registry) GetAdapters(names []string) []SearchAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(names) == 0 {
		out := make([]SearchAdapter, 0, len(r.order))
		for _, n := range r.order {
			out = append(out, r.instances[n])
		}
		return out
	}
	want := map[string]struct{}{}
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]SearchAdapter, 0, len(names))
	for _, n := range r.order {
		if _, ok := want[n]; !ok {
			continue
		}
		out = append(out, r.instances[n])
		delete(want, n)
	}
	for n := range want {
		log.Warn().Str("adapter", n).Msg("requested adapter is not initialized, skipping")
	}
	return out
}

// Active lists initialized adapter names in initialization order.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Registered lists registered factory names.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	return names
}

// HealthCheckAll probes every initialized adapter concurrently. It never
// fails: internal errors surface as unhealthy entries.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]Health {
	r.mu.RLock()
	snapshot := make(map[string]SearchAdapter, len(r.instances))
	for n, a := range r.instances {
		snapshot[n] = a
	}
	r.mu.RUnlock()

	var (
		wg  sync.WaitGroup
		out = make(map[string]Health, len(snapshot))
		omu sync.Mutex
	)
	for name, a := range snapshot {
		wg.Add(1)
		go func(name string, a SearchAdapter) {
			defer wg.Done()
			h := probe(ctx, a)
			omu.Lock()
			out[name] = h
			omu.Unlock()
		}(name, a)
	}
	wg.Wait()
	return out
}

func probe(ctx context.Context, a SearchAdapter) (h Health) {
	defer func() {
		if rec := recover(); rec != nil {
			h = Health{Status: StatusUnhealthy, Message: fmt.Sprint(rec)}
		}
	}()
	return a.HealthCheck(ctx)
}

// ShutdownAll drains every instance, logging individual failures.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if err := r.instances[name].Shutdown(ctx); err != nil {
			log.Warn().Str("adapter", name).Err(err).Msg("adapter shutdown failed")
			continue
		}
		log.Info().Str("adapter", name).Msg("shut down adapter")
	}
	r.instances = map[string]SearchAdapter{}
	r.order = nil
}
