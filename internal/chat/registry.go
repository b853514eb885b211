package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry owns one orchestrator per key, creating it on first use and
// closing it on eviction.
type Registry[K comparable] struct {
	newFn     func(K) *Orchestrator
	idleAfter time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[K]*registryEntry
	closed  bool
}

type registryEntry struct {
	orch     *Orchestrator
	lastUsed time.Time
	setup    sync.Once
}

// NewRegistry returns a registry building orchestrators with newFn. Entries
// unused for idleAfter are removed by EvictIdle; idleAfter <= 0 keeps them
// until Close.
func NewRegistry[K comparable](newFn func(K) *Orchestrator, idleAfter time.Duration, logger *slog.Logger) *Registry[K] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[K]{
		newFn:     newFn,
		idleAfter: idleAfter,
		log:       logger,
		now:       time.Now,
		entries:   make(map[K]*registryEntry),
	}
}

// Get returns the orchestrator for key and whether it was created by this
// call. A closed registry returns nil.
func (r *Registry[K]) Get(key K) (*Orchestrator, bool) {
	e, created := r.entry(key)
	if e == nil {
		return nil, false
	}
	return e.orch, created
}

// Acquire returns the orchestrator for key after setup has run on it. setup
// runs once per entry; callers arriving while it runs wait for it. A closed
// registry returns nil.
func (r *Registry[K]) Acquire(ctx context.Context, key K, setup func(context.Context, *Orchestrator)) *Orchestrator {
	e, _ := r.entry(key)
	if e == nil {
		return nil
	}
	if setup != nil {
		e.setup.Do(func() { setup(ctx, e.orch) })
	}
	return e.orch
}

func (r *Registry[K]) entry(key K) (*registryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	if e, ok := r.entries[key]; ok {
		e.lastUsed = r.now()
		return e, false
	}
	e := &registryEntry{orch: r.newFn(key), lastUsed: r.now()}
	r.entries[key] = e
	return e, true
}

func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict removes key and closes its orchestrator.
func (r *Registry[K]) Evict(ctx context.Context, key K) bool {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if ok {
		e.orch.Close(ctx)
	}
	return ok
}

// EvictIdle closes every orchestrator idle for longer than the idle window
// and returns how many were closed. Chats with a request in flight stay.
func (r *Registry[K]) EvictIdle(ctx context.Context) int {
	if r.idleAfter <= 0 {
		return 0
	}

	r.mu.Lock()
	cutoff := r.now().Add(-r.idleAfter)
	var idle []*Orchestrator
	for key, e := range r.entries {
		if e.lastUsed.After(cutoff) || e.orch.Snapshot().Loading {
			continue
		}
		idle = append(idle, e.orch)
		delete(r.entries, key)
	}
	r.mu.Unlock()

	for _, o := range idle {
		o.Close(ctx)
	}
	if len(idle) > 0 {
		r.log.Info("evicted idle chats", "count", len(idle))
	}
	return len(idle)
}

// StartEviction runs EvictIdle every interval until ctx is done.
func (r *Registry[K]) StartEviction(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.EvictIdle(context.WithoutCancel(ctx))
			}
		}
	}()
}

// Close closes every orchestrator. Get returns nil afterwards.
func (r *Registry[K]) Close(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[K]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.orch.Close(ctx)
	}
}
