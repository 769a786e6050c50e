package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/readygate-io/readygate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreAndBus(t *testing.T, names ...string) (*Store, *Bus) {
	t.Helper()
	b := model.NewTopology()
	for _, name := range names {
		b.Add(&model.Resource{Name: name})
	}
	topo, err := b.Build()
	require.NoError(t, err)
	store := NewStore(topo)
	return store, NewBus(store)
}

func TestWaitFor_PredicateAlreadyHolds(t *testing.T) {
	_, bus := newStoreAndBus(t, "db")

	// No publish ever happens; the current snapshot must satisfy.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	snap, err := bus.WaitForState(ctx, "db", model.StateNotStarted)
	require.NoError(t, err)
	assert.Equal(t, model.StateNotStarted, snap.State)
	assert.EqualValues(t, 1, snap.Version)
}

func TestWaitFor_ResolvedByLaterPublish(t *testing.T) {
	store, bus := newStoreAndBus(t, "db")
	ctx := testContext(t)

	done := make(chan model.Snapshot, 1)
	go func() {
		snap, err := bus.WaitForState(ctx, "db", model.StateRunning)
		assert.NoError(t, err)
		done <- snap
	}()

	// Walk through intermediate states; the waiter must see Running.
	for _, state := range []model.LifecycleState{model.StateStarting, model.StateRunning} {
		st := state
		_, err := store.Update("db", func(snap model.Snapshot) model.Snapshot {
			snap.State = st
			return snap
		})
		require.NoError(t, err)
	}

	select {
	case snap := <-done:
		assert.Equal(t, model.StateRunning, snap.State)
	case <-ctx.Done():
		t.Fatal("waiter did not resolve")
	}
}

func TestWaitFor_Cancellation(t *testing.T) {
	_, bus := newStoreAndBus(t, "db")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := bus.WaitForState(ctx, "db", model.StateRunning)
		errCh <- err
	}()

	// Give the waiter time to subscribe, then cancel.
	require.Eventually(t, func() bool {
		return bus.subscriberCount("db") == 1
	}, time.Second, time.Millisecond)
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	// Cancellation tears the subscription down.
	require.Eventually(t, func() bool {
		return bus.subscriberCount("db") == 0
	}, time.Second, time.Millisecond)
}

func TestWaitFor_UnknownResource(t *testing.T) {
	_, bus := newStoreAndBus(t, "db")

	var unknownErr *UnknownResourceError
	_, err := bus.WaitForState(context.Background(), "ghost", model.StateRunning)
	require.ErrorAs(t, err, &unknownErr)
}

func TestWatch_DeliversEveryVersionInOrder(t *testing.T) {
	store, bus := newStoreAndBus(t, "db")
	ctx := testContext(t)

	feed, err := bus.Watch(ctx, "db")
	require.NoError(t, err)

	const updates = 50
	go func() {
		for i := 0; i < updates; i++ {
			_, err := store.Update("db", func(snap model.Snapshot) model.Snapshot {
				return snap
			})
			assert.NoError(t, err)
		}
	}()

	var last uint64
	for ev := range feed {
		require.Equal(t, "db", ev.Resource)
		if last != 0 {
			require.Equal(t, last+1, ev.Snapshot.Version, "skipped a version")
		}
		last = ev.Snapshot.Version
		if last == updates+1 {
			return
		}
	}
	t.Fatalf("feed closed at version %d", last)
}

func TestWatch_PublisherNeverBlocksOnSlowSubscriber(t *testing.T) {
	store, bus := newStoreAndBus(t, "db")
	ctx := testContext(t)

	// Subscribe but do not consume.
	_, err := bus.Watch(ctx, "db")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			_, err := store.Update("db", func(snap model.Snapshot) model.Snapshot {
				return snap
			})
			assert.NoError(t, err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

func TestWatchAll_MergesAllResources(t *testing.T) {
	store, bus := newStoreAndBus(t, "db", "cache")
	ctx := testContext(t)

	feed := bus.WatchAll(ctx)

	for _, name := range []string{"db", "cache"} {
		n := name
		_, err := store.Update(n, func(snap model.Snapshot) model.Snapshot {
			snap.State = model.StateStarting
			return snap
		})
		require.NoError(t, err)
	}

	seenStarting := map[string]bool{}
	for ev := range feed {
		if ev.Snapshot.State == model.StateStarting {
			seenStarting[ev.Resource] = true
		}
		if len(seenStarting) == 2 {
			return
		}
	}
	t.Fatalf("feed closed having seen %v", seenStarting)
}

func TestWatch_VersionsNeverDecreaseUnderContention(t *testing.T) {
	store, bus := newStoreAndBus(t, "db")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, err := store.Update("db", func(snap model.Snapshot) model.Snapshot {
				return snap
			})
			assert.NoError(t, err)
		}
	}()

	// Each fresh subscription races its current-snapshot read against
	// the publisher; the queued backlog must never replay behind it.
	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		feed, err := bus.Watch(ctx, "db")
		require.NoError(t, err)

		var last uint64
		for n := 0; n < 20; n++ {
			ev, ok := <-feed
			require.True(t, ok, "iteration %d: feed closed early", i)
			require.GreaterOrEqual(t, ev.Snapshot.Version, last,
				"iteration %d: version went backwards", i)
			last = ev.Snapshot.Version
		}
		cancel()
		for range feed {
		}
	}

	close(stop)
	wg.Wait()
}

func TestPublish_IdenticalContentDeliversDistinctVersions(t *testing.T) {
	store, bus := newStoreAndBus(t, "db")
	ctx := testContext(t)

	feed, err := bus.Watch(ctx, "db")
	require.NoError(t, err)

	identity := func(snap model.Snapshot) model.Snapshot { return snap }
	_, err = store.Update("db", identity)
	require.NoError(t, err)
	_, err = store.Update("db", identity)
	require.NoError(t, err)

	var versions []uint64
	for ev := range feed {
		versions = append(versions, ev.Snapshot.Version)
		if len(versions) == 3 {
			break
		}
	}
	// No deduplication: both identical publishes are observable.
	assert.Equal(t, []uint64{1, 2, 3}, versions)
}
