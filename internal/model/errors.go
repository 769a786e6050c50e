package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural is the class of construction-time topology errors.
// Every structural error unwraps to it, so callers can match the class
// with errors.Is and the concrete failure with errors.As.
var ErrStructural = errors.New("structural topology error")

// DuplicateResourceError means the same name was declared more than once.
type DuplicateResourceError struct {
	Name string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("duplicate resource: %q", e.Name)
}

func (e *DuplicateResourceError) Unwrap() error { return ErrStructural }

// UnknownParentError means a resource names a parent that is not declared.
type UnknownParentError struct {
	Resource string
	Parent   string
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("resource %q references unknown parent %q", e.Resource, e.Parent)
}

func (e *UnknownParentError) Unwrap() error { return ErrStructural }

// SelfWaitError means a resource declared a wait on itself.
type SelfWaitError struct {
	Resource string
}

func (e *SelfWaitError) Error() string {
	return fmt.Sprintf("resource %q cannot wait for itself", e.Resource)
}

func (e *SelfWaitError) Unwrap() error { return ErrStructural }

// ParentWaitError means a resource declared a wait on its own parent.
type ParentWaitError struct {
	Resource string
	Parent   string
}

func (e *ParentWaitError) Error() string {
	return fmt.Sprintf("resource %q cannot wait for its parent %q", e.Resource, e.Parent)
}

func (e *ParentWaitError) Unwrap() error { return ErrStructural }

// UnknownWaitTargetError means a wait annotation names an undeclared resource.
type UnknownWaitTargetError struct {
	Resource string
	Target   string
}

func (e *UnknownWaitTargetError) Error() string {
	return fmt.Sprintf("resource %q waits for unknown resource %q", e.Resource, e.Target)
}

func (e *UnknownWaitTargetError) Unwrap() error { return ErrStructural }

// InvalidReplicaError means a replica annotation carries a count below 1.
type InvalidReplicaError struct {
	Resource string
	Count    int
}

func (e *InvalidReplicaError) Error() string {
	return fmt.Sprintf("resource %q declares invalid replica count %d", e.Resource, e.Count)
}

func (e *InvalidReplicaError) Unwrap() error { return ErrStructural }

// WaitCycleError means the declared wait annotations form a cycle that
// would deadlock startup.
type WaitCycleError struct {
	Members []string
}

func (e *WaitCycleError) Error() string {
	if len(e.Members) == 0 {
		return "wait dependency cycle detected"
	}
	return "wait dependency cycle detected among: " + strings.Join(e.Members, ", ")
}

func (e *WaitCycleError) Unwrap() error { return ErrStructural }
