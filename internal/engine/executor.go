package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/readygate-io/readygate/internal/model"
)

// Executor is the external collaborator that actually starts the
// underlying workloads. Implementations must not start a resource's
// workload before the engine reports Starting for it.
type Executor interface {
	Run(ctx context.Context) error
}

// SimScript describes the simulated behavior of one resource once the
// engine grants its start. The zero value starts immediately and keeps
// running.
type SimScript struct {
	StartDelay time.Duration // pause between the Starting grant and MarkRunning
	FailStart  bool          // report FailedToStart instead of Running
	Completes  bool          // finish after RunFor with ExitCode
	RunFor     time.Duration
	ExitCode   *int
}

// SimExecutor drives every resource of an engine's topology through a
// full run: it requests startup for all of them, then plays each
// resource's script once the engine grants Starting. Used by the
// simulate command and in tests as a stand-in for a real process
// launcher.
type SimExecutor struct {
	engine  *Engine
	scripts map[string]SimScript
}

// NewSimExecutor creates a simulated executor. Resources without a
// script use the zero SimScript.
func NewSimExecutor(e *Engine, scripts map[string]SimScript) *SimExecutor {
	if scripts == nil {
		scripts = map[string]SimScript{}
	}
	return &SimExecutor{engine: e, scripts: scripts}
}

// Run requests startup for every resource and returns once each one
// has either settled in a terminal state or reached Running without a
// completion script. Individual failures do not stop siblings; they
// are aggregated into the returned error.
func (x *SimExecutor) Run(ctx context.Context) error {
	var mu sync.Mutex
	var errs []error
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	names := x.engine.Topology().Names()
	for _, name := range names {
		if _, err := x.engine.RequestStart(ctx, name); err != nil {
			fail(fmt.Errorf("requesting start of %s: %w", name, err))
		}
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := x.play(ctx, name); err != nil {
				fail(err)
			}
		}(name)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// play waits for the engine's verdict on one resource and acts out its
// script. A resource the wait resolver already failed needs no acting.
func (x *SimExecutor) play(ctx context.Context, name string) error {
	snap, err := x.engine.WaitFor(ctx, name, func(s model.Snapshot) bool {
		return s.State == model.StateStarting || s.State.Terminal()
	})
	if err != nil {
		return fmt.Errorf("awaiting start grant for %s: %w", name, err)
	}
	if snap.State.Terminal() {
		return nil
	}

	script := x.scripts[name]
	if !sleep(ctx, script.StartDelay) {
		return ctx.Err()
	}

	if script.FailStart {
		return x.engine.MarkFailed(name)
	}
	if err := x.engine.MarkRunning(name); err != nil {
		return err
	}
	if !script.Completes {
		return nil
	}
	if !sleep(ctx, script.RunFor) {
		return ctx.Err()
	}
	return x.engine.MarkFinished(name, script.ExitCode)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
