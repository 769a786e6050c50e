package engine

import (
	"sync"

	"github.com/readygate-io/readygate/internal/model"
)

// Store holds the current snapshot of every registered resource.
// Replacement is atomic and versioned: updates to one resource are
// serialized under that resource's entry lock, and every intermediate
// version is handed to the publisher in version order.
type Store struct {
	entries map[string]*storeEntry

	// publish is invoked under the entry lock so deliveries for one
	// resource are version-ordered. It must only enqueue, never block.
	publish func(name string, snap model.Snapshot)
}

type storeEntry struct {
	mu   sync.Mutex
	snap model.Snapshot
}

// NewStore registers every resource of the topology with an initial
// NotStarted snapshot at version 1. The entry table is frozen after
// construction; only snapshots change.
func NewStore(topo *model.Topology) *Store {
	s := &Store{
		entries: make(map[string]*storeEntry, topo.Len()),
	}
	for _, name := range topo.Names() {
		s.entries[name] = &storeEntry{
			snap: model.Snapshot{
				State:   model.StateNotStarted,
				Health:  model.HealthUnknown,
				Version: 1,
			},
		}
	}
	return s
}

// Get returns the current snapshot for a resource.
func (s *Store) Get(name string) (model.Snapshot, error) {
	e, ok := s.entries[name]
	if !ok {
		return model.Snapshot{}, &UnknownResourceError{Name: name}
	}
	e.mu.Lock()
	snap := e.snap.Clone()
	e.mu.Unlock()
	return snap, nil
}

// Update applies transform to the last-known snapshot and atomically
// replaces it, incrementing Version. The new snapshot is published to
// subscribers before the next update for the same resource can begin.
func (s *Store) Update(name string, transform func(model.Snapshot) model.Snapshot) (model.Snapshot, error) {
	return s.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		return transform(snap), nil
	})
}

// update is the checked variant: a transform error aborts the update
// with no replacement and no publish.
func (s *Store) update(name string, transform func(model.Snapshot) (model.Snapshot, error)) (model.Snapshot, error) {
	e, ok := s.entries[name]
	if !ok {
		return model.Snapshot{}, &UnknownResourceError{Name: name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := transform(e.snap.Clone())
	if err != nil {
		return e.snap.Clone(), err
	}
	next.Version = e.snap.Version + 1
	e.snap = next

	if s.publish != nil {
		s.publish(name, next.Clone())
	}
	return next.Clone(), nil
}

// Has reports whether the resource name is registered.
func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}
