package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/readygate-io/readygate/internal/model"
)

// Event pairs a published snapshot with the resource it belongs to.
type Event struct {
	Resource string
	Snapshot model.Snapshot
}

// Bus broadcasts snapshot replacements and lets callers await a
// condition over one resource's snapshot stream. Publishing never
// blocks on slow consumers: every subscriber owns an unbounded queue
// and a wake signal, so delivery for one subscriber is version-ordered
// with no skips while publishers stay decoupled.
type Bus struct {
	store  *Store
	topics map[string]*topic
}

// topic holds the subscriber set for one resource. The lock is scoped
// to this name only; publish copies the set before delivering.
type topic struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscription
}

type subscription struct {
	mu    sync.Mutex
	floor uint64 // versions at or below this were already delivered as "current"
	queue []model.Snapshot
	ready chan struct{}
}

func newSubscription() *subscription {
	return &subscription{ready: make(chan struct{}, 1)}
}

func (s *subscription) push(snap model.Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *subscription) setFloor(version uint64) {
	s.mu.Lock()
	s.floor = version
	s.mu.Unlock()
}

// pop discards queued snapshots at or below the floor: publishes that
// landed between registration and the current-snapshot read are
// superseded by it, and replaying them would deliver versions out of
// order.
func (s *subscription) pop() (model.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		snap := s.queue[0]
		s.queue = s.queue[1:]
		if snap.Version <= s.floor {
			continue
		}
		return snap, true
	}
	return model.Snapshot{}, false
}

// NewBus creates the notification bus for a store and wires itself in
// as the store's publisher.
func NewBus(store *Store) *Bus {
	b := &Bus{
		store:  store,
		topics: make(map[string]*topic, len(store.entries)),
	}
	for name := range store.entries {
		b.topics[name] = &topic{subs: make(map[uuid.UUID]*subscription)}
	}
	store.publish = b.deliver
	return b
}

// deliver fans a snapshot out to the subscribers registered at publish
// time. Called by the store under the resource's entry lock; it only
// appends to queues and never blocks.
func (b *Bus) deliver(name string, snap model.Snapshot) {
	t, ok := b.topics[name]
	if !ok {
		return
	}
	t.mu.Lock()
	subs := make([]*subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		sub.push(snap)
	}
}

// subscribe registers a new subscriber and returns the resource's
// current snapshot for immediate evaluation. Registration happens
// before the read so nothing is skipped; the current version becomes
// the subscription's floor, so publishes queued in between are
// discarded rather than replayed behind it.
func (b *Bus) subscribe(name string) (uuid.UUID, *subscription, model.Snapshot, error) {
	t, ok := b.topics[name]
	if !ok {
		return uuid.Nil, nil, model.Snapshot{}, &UnknownResourceError{Name: name}
	}

	id := uuid.New()
	sub := newSubscription()
	t.mu.Lock()
	t.subs[id] = sub
	t.mu.Unlock()

	current, err := b.store.Get(name)
	if err != nil {
		b.unsubscribe(name, id)
		return uuid.Nil, nil, model.Snapshot{}, err
	}
	sub.setFloor(current.Version)
	return id, sub, current, nil
}

func (b *Bus) unsubscribe(name string, id uuid.UUID) {
	t, ok := b.topics[name]
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
}

// subscriberCount reports the live subscriber count for a resource.
func (b *Bus) subscriberCount(name string) int {
	t, ok := b.topics[name]
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// WaitFor suspends the caller until a snapshot for name satisfies
// pred. The current snapshot is evaluated immediately on subscribe, so
// a predicate that already holds returns without a fresh publish.
// Cancellation tears the subscription down and returns ctx.Err().
func (b *Bus) WaitFor(ctx context.Context, name string, pred func(model.Snapshot) bool) (model.Snapshot, error) {
	id, sub, current, err := b.subscribe(name)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer b.unsubscribe(name, id)

	if pred(current) {
		return current, nil
	}

	for {
		select {
		case <-ctx.Done():
			return model.Snapshot{}, ctx.Err()
		case <-sub.ready:
		}
		for {
			snap, ok := sub.pop()
			if !ok {
				break
			}
			if pred(snap) {
				return snap, nil
			}
		}
	}
}

// WaitForState is the exact-state convenience form of WaitFor.
func (b *Bus) WaitForState(ctx context.Context, name string, state model.LifecycleState) (model.Snapshot, error) {
	return b.WaitFor(ctx, name, func(s model.Snapshot) bool {
		return s.State == state
	})
}

// Watch returns a raw feed of every snapshot published for one
// resource, starting with its current snapshot. The feed closes when
// ctx is cancelled.
func (b *Bus) Watch(ctx context.Context, name string) (<-chan Event, error) {
	if _, ok := b.topics[name]; !ok {
		return nil, &UnknownResourceError{Name: name}
	}
	out := make(chan Event)
	var wg sync.WaitGroup
	if err := b.forward(ctx, name, out, &wg); err != nil {
		return nil, err
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// WatchAll returns a merged raw feed over every registered resource.
// Ordering is guaranteed per resource, not across resources.
func (b *Bus) WatchAll(ctx context.Context) <-chan Event {
	out := make(chan Event)
	var wg sync.WaitGroup
	for name := range b.topics {
		// Registration cannot fail for a known topic.
		_ = b.forward(ctx, name, out, &wg)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (b *Bus) forward(ctx context.Context, name string, out chan<- Event, wg *sync.WaitGroup) error {
	id, sub, current, err := b.subscribe(name)
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer b.unsubscribe(name, id)

		select {
		case out <- Event{Resource: name, Snapshot: current}:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.ready:
			}
			for {
				snap, ok := sub.pop()
				if !ok {
					break
				}
				select {
				case out <- Event{Resource: name, Snapshot: snap}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}
