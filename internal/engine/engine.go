package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/readygate-io/readygate/internal/logging"
	"github.com/readygate-io/readygate/internal/model"
)

// Engine coordinates startup ordering and health propagation for one
// topology. Multiple engines over independent topologies can coexist
// in the same process; nothing is process-global.
type Engine struct {
	topo   *model.Topology
	store  *Store
	bus    *Bus
	health *healthTracker
	hooks  *hookRegistry
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHook registers a hook during construction, early enough to
// observe HookAfterTopologyRegistered.
func WithHook(point HookPoint, fn HookFunc) Option {
	return func(e *Engine) {
		e.hooks.register(point, fn)
	}
}

// New builds an engine for an already-validated topology, registers
// every resource at NotStarted, and fires HookAfterTopologyRegistered.
func New(topo *model.Topology, opts ...Option) *Engine {
	e := &Engine{
		topo:   topo,
		health: newHealthTracker(topo),
		hooks:  newHookRegistry(),
		logger: logging.Logger(),
	}
	e.store = NewStore(topo)
	e.bus = NewBus(e.store)

	for _, opt := range opts {
		opt(e)
	}

	e.hooks.fire(context.Background(), HookEvent{Point: HookAfterTopologyRegistered})
	return e
}

// Topology returns the engine's immutable topology.
func (e *Engine) Topology() *model.Topology {
	return e.topo
}

// Snapshot returns the current snapshot for a resource.
func (e *Engine) Snapshot(name string) (model.Snapshot, error) {
	return e.store.Get(name)
}

// Update applies an arbitrary transform to a resource's snapshot.
// Intended for observers and hooks; lifecycle fields should move
// through RequestStart and the Mark methods.
func (e *Engine) Update(name string, transform func(model.Snapshot) model.Snapshot) (model.Snapshot, error) {
	return e.store.Update(name, transform)
}

// WaitFor suspends until a published snapshot for name satisfies pred.
func (e *Engine) WaitFor(ctx context.Context, name string, pred func(model.Snapshot) bool) (model.Snapshot, error) {
	return e.bus.WaitFor(ctx, name, pred)
}

// WaitForState suspends until the resource reaches the exact state.
func (e *Engine) WaitForState(ctx context.Context, name string, state model.LifecycleState) (model.Snapshot, error) {
	return e.bus.WaitForState(ctx, name, state)
}

// Watch returns a raw feed of every published snapshot for a resource.
func (e *Engine) Watch(ctx context.Context, name string) (<-chan Event, error) {
	return e.bus.Watch(ctx, name)
}

// WatchAll returns a merged raw feed over all resources.
func (e *Engine) WatchAll(ctx context.Context) <-chan Event {
	return e.bus.WatchAll(ctx)
}

// OnHook registers a callback at a lifecycle point and returns a
// handle for deregistration.
func (e *Engine) OnHook(point HookPoint, fn HookFunc) uuid.UUID {
	return e.hooks.register(point, fn)
}

// RemoveHook deregisters a previously registered hook.
func (e *Engine) RemoveHook(id uuid.UUID) bool {
	return e.hooks.deregister(id)
}

// HealthBindings returns the resource's current effective set of bound
// health-check keys.
func (e *Engine) HealthBindings(name string) ([]string, error) {
	if _, ok := e.topo.Resource(name); !ok {
		return nil, &UnknownResourceError{Name: name}
	}
	return e.health.boundKeys(name), nil
}

// ReportHealth records a check outcome and recomputes the health
// status of every resource bound to the key, republishing each as part
// of its snapshot. The engine never invokes checks itself.
func (e *Engine) ReportHealth(key string, healthy bool) {
	affected := e.health.record(key, healthy)
	if len(affected) == 0 {
		e.logger.Debug("health report for unbound check", "key", key, "healthy", healthy)
		return
	}
	for _, name := range affected {
		_, err := e.store.Update(name, func(snap model.Snapshot) model.Snapshot {
			snap.Health, snap.HealthReports = e.health.aggregate(name)
			return snap
		})
		if err != nil {
			e.logger.Error("health republish failed", "resource", name, "key", key, "error", err)
		}
	}
}

// RequestStart asks the engine to start a resource. It synchronously
// merges the parent's health-check bindings onto the resource,
// publishes the entry state (Waiting when unresolved wait annotations
// exist, Starting otherwise), and fires HookBeforeResourceStart. A
// Waiting resource is then driven asynchronously to Starting or
// FailedToStart by the wait resolver; ctx bounds that resolution.
func (e *Engine) RequestStart(ctx context.Context, name string) (model.LifecycleState, error) {
	res, ok := e.topo.Resource(name)
	if !ok {
		return "", &UnknownResourceError{Name: name}
	}

	if res.Parent != "" {
		e.health.mergeParent(name, res.Parent)
	}

	waits := res.Waits()
	entry := model.StateStarting
	if len(waits) > 0 {
		entry = model.StateWaiting
	}

	snap, err := e.store.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		if snap.State != model.StateNotStarted {
			return snap, &InvalidTransitionError{Resource: name, From: snap.State, To: entry}
		}
		snap.State = entry
		snap.Health, snap.HealthReports = e.health.aggregate(name)
		return snap, nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Debug("start requested", "resource", name, "entry", string(entry), "waits", len(waits))
	e.hooks.fire(ctx, HookEvent{Point: HookBeforeResourceStart, Resource: name, Snapshot: snap})

	if entry == model.StateStarting {
		e.hooks.fire(ctx, HookEvent{Point: HookAfterResourceStart, Resource: name, Snapshot: snap})
		return entry, nil
	}

	go e.resolveWaits(ctx, name, waits)
	return entry, nil
}

// MarkRunning records that the external executor observed the resource
// running. Only valid from Starting.
func (e *Engine) MarkRunning(name string) error {
	_, err := e.store.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		if snap.State != model.StateStarting {
			return snap, &InvalidTransitionError{Resource: name, From: snap.State, To: model.StateRunning}
		}
		snap.State = model.StateRunning
		return snap, nil
	})
	return err
}

// MarkFinished records that the resource completed, optionally with an
// exit code. Valid from Starting or Running.
func (e *Engine) MarkFinished(name string, exitCode *int) error {
	_, err := e.store.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		if snap.State != model.StateStarting && snap.State != model.StateRunning {
			return snap, &InvalidTransitionError{Resource: name, From: snap.State, To: model.StateFinished}
		}
		snap.State = model.StateFinished
		snap.ExitCode = exitCode
		return snap, nil
	})
	return err
}

// MarkFailed records that the resource failed to start or run. Valid
// from any non-terminal state after startup was requested.
func (e *Engine) MarkFailed(name string) error {
	_, err := e.store.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		if snap.State.Terminal() || snap.State == model.StateNotStarted {
			return snap, &InvalidTransitionError{Resource: name, From: snap.State, To: model.StateFailedToStart}
		}
		snap.State = model.StateFailedToStart
		return snap, nil
	})
	return err
}
