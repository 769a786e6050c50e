package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/readygate-io/readygate/internal/model"
)

// resolveWaits evaluates each wait annotation in its own goroutine and
// drives the waiting resource out of Waiting: Starting once every
// dependency resolves favorably, FailedToStart as soon as any resolves
// unfavorably. ctx cancellation abandons resolution without fabricating
// a transition.
func (e *Engine) resolveWaits(ctx context.Context, name string, waits []model.WaitAnnotation) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, len(waits))
	for _, w := range waits {
		go func(w model.WaitAnnotation) {
			results <- e.resolveWait(wctx, name, w)
		}(w)
	}

	for range waits {
		err := <-results
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.logger.Debug("wait resolution abandoned", "resource", name, "error", err)
			return
		}
		e.logger.Warn("dependency resolved unfavorably", "resource", name, "error", err)
		e.failStart(name)
		return
	}

	e.grantStart(ctx, name)
}

// resolveWait suspends on the bus until one dependency condition
// resolves. A nil return means satisfied; a DependencyFailedError means
// the waiter must fail; a context error means resolution was abandoned.
func (e *Engine) resolveWait(ctx context.Context, name string, w model.WaitAnnotation) error {
	switch w.Mode {
	case model.WaitUntilRunning:
		snap, err := e.bus.WaitFor(ctx, w.Target, func(s model.Snapshot) bool {
			return s.State == model.StateRunning || s.State.Terminal()
		})
		if err != nil {
			return err
		}
		if snap.State == model.StateRunning {
			return nil
		}
		return &DependencyFailedError{
			Resource:   name,
			Dependency: w.Target,
			Reason:     fmt.Sprintf("reached %s before running", snap.State),
		}

	case model.WaitUntilCompleted:
		if dep, ok := e.topo.Resource(w.Target); ok {
			if count := dep.Replicas(); count > 1 {
				// N replicas have no single terminal state to await.
				return &DependencyFailedError{
					Resource:   name,
					Dependency: w.Target,
					Reason:     fmt.Sprintf("completion is ambiguous across %d replicas", count),
				}
			}
		}
		snap, err := e.bus.WaitFor(ctx, w.Target, func(s model.Snapshot) bool {
			return s.State.Terminal()
		})
		if err != nil {
			return err
		}
		if snap.State == model.StateFailedToStart {
			return &DependencyFailedError{
				Resource:   name,
				Dependency: w.Target,
				Reason:     "failed to start",
			}
		}
		if w.ExitCode != nil {
			if snap.ExitCode == nil {
				return &DependencyFailedError{
					Resource:   name,
					Dependency: w.Target,
					Reason:     fmt.Sprintf("expected exit code %d, none produced", *w.ExitCode),
				}
			}
			if *snap.ExitCode != *w.ExitCode {
				return &DependencyFailedError{
					Resource:   name,
					Dependency: w.Target,
					Reason:     fmt.Sprintf("expected exit code %d, got %d", *w.ExitCode, *snap.ExitCode),
				}
			}
		}
		return nil

	default:
		return &DependencyFailedError{
			Resource:   name,
			Dependency: w.Target,
			Reason:     fmt.Sprintf("unsupported wait mode %q", w.Mode),
		}
	}
}

// grantStart moves a waiting resource to Starting and fires the
// after-start hooks. A resource no longer Waiting (torn down
// externally) is left alone.
func (e *Engine) grantStart(ctx context.Context, name string) {
	snap, err := e.store.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		if snap.State != model.StateWaiting {
			return snap, &InvalidTransitionError{Resource: name, From: snap.State, To: model.StateStarting}
		}
		snap.State = model.StateStarting
		return snap, nil
	})
	if err != nil {
		e.logger.Debug("start grant skipped", "resource", name, "error", err)
		return
	}
	e.logger.Debug("start granted", "resource", name, "version", snap.Version)
	e.hooks.fire(ctx, HookEvent{Point: HookAfterResourceStart, Resource: name, Snapshot: snap})
}

// failStart moves a waiting resource to FailedToStart.
func (e *Engine) failStart(name string) {
	_, err := e.store.update(name, func(snap model.Snapshot) (model.Snapshot, error) {
		if snap.State != model.StateWaiting {
			return snap, &InvalidTransitionError{Resource: name, From: snap.State, To: model.StateFailedToStart}
		}
		snap.State = model.StateFailedToStart
		return snap, nil
	})
	if err != nil {
		e.logger.Debug("start failure skipped", "resource", name, "error", err)
	}
}
