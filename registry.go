package bundlegate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

type waitEdge struct {
	from string
	to   string
}

// Registry tracks which bundles are ready and who is waiting for them.
// It is safe for concurrent use. Callbacks never run while the registry lock is held.
type Registry struct {
	log zerolog.Logger

	mu      sync.RWMutex
	ready   map[string]bool
	pending map[string][]func()
	edges   []waitEdge
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for debug events. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:     zerolog.Nop(),
		ready:   make(map[string]bool),
		pending: make(map[string][]func()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsReady reports whether name has been announced.
func (r *Registry) IsReady(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready[name]
}

// MarkReady announces name and drains its pending callbacks in registration order.
// It returns false without side effects if name was already ready.
func (r *Registry) MarkReady(name string) bool {
	r.mu.Lock()
	if r.ready[name] {
		r.mu.Unlock()
		r.log.Debug().Str("bundle", name).Msg("duplicate announcement ignored")
		return false
	}
	r.ready[name] = true
	waiting := r.pending[name]
	delete(r.pending, name)
	r.mu.Unlock()

	r.log.Debug().
		Str("bundle", name).
		Str("signal", SignalName(name)).
		Int("listeners", len(waiting)).
		Msg("bundle ready")
	for _, cb := range waiting {
		cb()
	}
	return true
}

// OnceReady runs cb as soon as name is ready.
// It returns true if cb ran synchronously, false if it was queued.
func (r *Registry) OnceReady(name string, cb func()) bool {
	if !r.enqueue(name, cb) {
		return false
	}
	cb()
	return true
}

// enqueue queues cb on name unless name is ready, in which case it returns true
// and the caller runs cb itself.
func (r *Registry) enqueue(name string, cb func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready[name] {
		return true
	}
	r.pending[name] = append(r.pending[name], cb)
	r.log.Debug().
		Str("bundle", name).
		Str("signal", SignalName(name)).
		Msg("listener queued")
	return false
}

// Wait blocks until name is ready or ctx is done.
// A cancelled Wait leaves an inert listener behind; listeners are only removed by firing.
func (r *Registry) Wait(ctx context.Context, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	if r.OnceReady(name, func() { close(done) }) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", name, ctx.Err())
	}
}

// Manage runs cb once dep is ready, then announces bundle.
//
// If dep is NoDependency or already ready, cb runs synchronously before Manage returns.
// Otherwise cb is queued and runs on the goroutine that later marks dep ready.
// A Leaf bundle is never announced. Usage errors are returned before any side effect.
func (r *Registry) Manage(dep Dependency, bundle Bundle, cb func()) error {
	depName, hasDep := dep.Name()
	bundleName, named := bundle.Name()
	if hasDep && depName == "" {
		return fmt.Errorf("manage %s: %w", bundle, EmptyNameError{Field: "dependency"})
	}
	if named && bundleName == "" {
		return fmt.Errorf("manage: %w", EmptyNameError{Field: "bundle"})
	}
	if cb == nil {
		return NilCallbackError{Bundle: bundle.String()}
	}

	run := func() {
		cb()
		if named {
			r.MarkReady(bundleName)
		}
	}

	if !hasDep {
		run()
		return nil
	}

	if named {
		r.mu.Lock()
		r.edges = append(r.edges, waitEdge{from: bundleName, to: depName})
		r.mu.Unlock()
	}
	r.OnceReady(depName, run)
	return nil
}

// MustManage panics on usage error; intended for bootstrap code paths.
func (r *Registry) MustManage(dep Dependency, bundle Bundle, cb func()) {
	if err := r.Manage(dep, bundle, cb); err != nil {
		panic(err)
	}
}

// Pending returns the number of listeners queued on name.
func (r *Registry) Pending(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending[name])
}

// Ready returns the sorted names of all announced bundles.
func (r *Registry) Ready() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.ready))
	for name := range r.ready {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
