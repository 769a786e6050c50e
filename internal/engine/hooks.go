package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/readygate-io/readygate/internal/model"
)

// HookPoint names a lifecycle point external subscribers can register
// against.
type HookPoint string

const (
	// HookAfterTopologyRegistered fires once, after every resource has
	// been registered with an initial snapshot.
	HookAfterTopologyRegistered HookPoint = "after-topology-registered"
	// HookBeforeResourceStart fires when a resource's startup is
	// requested, after its entry-state snapshot (with the merged
	// health-binding set) has been published.
	HookBeforeResourceStart HookPoint = "before-resource-start"
	// HookAfterResourceStart fires when the engine grants Starting.
	HookAfterResourceStart HookPoint = "after-resource-start"
)

// HookEvent carries the context of a fired lifecycle point. Resource
// and Snapshot are zero at topology-level points.
type HookEvent struct {
	Point    HookPoint
	Resource string
	Snapshot model.Snapshot
}

// HookFunc is an external callback. Hooks run synchronously in
// registration order, outside all engine locks, so a callback may call
// back into Update or ReportHealth without deadlocking its own
// resource's pending transition.
type HookFunc func(ctx context.Context, ev HookEvent)

type hookEntry struct {
	id uuid.UUID
	fn HookFunc
}

type hookRegistry struct {
	mu    sync.RWMutex
	hooks map[HookPoint][]hookEntry
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{hooks: make(map[HookPoint][]hookEntry)}
}

func (r *hookRegistry) register(point HookPoint, fn HookFunc) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	r.hooks[point] = append(r.hooks[point], hookEntry{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

func (r *hookRegistry) deregister(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for point, entries := range r.hooks {
		for i, entry := range entries {
			if entry.id == id {
				r.hooks[point] = append(entries[:i:i], entries[i+1:]...)
				return true
			}
		}
	}
	return false
}

// fire invokes the hooks registered at point in registration order.
// The list is copied first; callbacks never run under the registry
// lock.
func (r *hookRegistry) fire(ctx context.Context, ev HookEvent) {
	r.mu.RLock()
	entries := make([]hookEntry, len(r.hooks[ev.Point]))
	copy(entries, r.hooks[ev.Point])
	r.mu.RUnlock()

	for _, entry := range entries {
		entry.fn(ctx, ev)
	}
}
