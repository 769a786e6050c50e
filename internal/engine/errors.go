package engine

import (
	"fmt"

	"github.com/readygate-io/readygate/internal/model"
)

// UnknownResourceError means an operation referenced a name that was
// never registered with the topology.
type UnknownResourceError struct {
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource: %q", e.Name)
}

// InvalidTransitionError means a lifecycle transition was requested
// that the state machine does not permit, including any transition out
// of a terminal state.
type InvalidTransitionError struct {
	Resource string
	From     model.LifecycleState
	To       model.LifecycleState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("resource %q: invalid transition %s -> %s", e.Resource, e.From, e.To)
}

// DependencyFailedError means a waited-upon dependency resolved
// unfavorably. It is a modeled outcome, not an exceptional code path:
// the waiting resource transitions to FailedToStart and siblings keep
// progressing.
type DependencyFailedError struct {
	Resource   string
	Dependency string
	Reason     string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("resource %q: dependency %q failed: %s", e.Resource, e.Dependency, e.Reason)
}
