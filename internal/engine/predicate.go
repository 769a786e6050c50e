package engine

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/readygate-io/readygate/internal/model"
)

// SnapshotPredicate is a compiled boolean expression over a resource
// snapshot. The expression environment exposes:
//
//	name     string            resource name
//	state    string            lifecycle state
//	health   string            aggregated health status
//	terminal bool              whether the state is terminal
//	version  int               snapshot version
//	exitCode int or nil        exit code, when produced
//	reports  map[string]string check key -> latest status
//
// Example: `state == "Running" && health == "Healthy"`.
type SnapshotPredicate struct {
	source  string
	program *vm.Program
}

// CompilePredicate compiles an expression for repeated evaluation.
func CompilePredicate(code string) (*SnapshotPredicate, error) {
	program, err := expr.Compile(code, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling predicate %q: %w", code, err)
	}
	return &SnapshotPredicate{source: code, program: program}, nil
}

// Match evaluates the predicate against one resource's snapshot.
func (p *SnapshotPredicate) Match(name string, snap model.Snapshot) (bool, error) {
	out, err := expr.Run(p.program, predicateEnv(name, snap))
	if err != nil {
		return false, fmt.Errorf("evaluating predicate %q: %w", p.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Source returns the original expression text.
func (p *SnapshotPredicate) Source() string {
	return p.source
}

func predicateEnv(name string, snap model.Snapshot) map[string]any {
	reports := make(map[string]string, len(snap.HealthReports))
	for _, r := range snap.HealthReports {
		reports[r.Key] = string(r.Status)
	}
	var exitCode any
	if snap.ExitCode != nil {
		exitCode = *snap.ExitCode
	}
	return map[string]any{
		"name":     name,
		"state":    string(snap.State),
		"health":   string(snap.Health),
		"terminal": snap.State.Terminal(),
		"version":  int(snap.Version),
		"exitCode": exitCode,
		"reports":  reports,
	}
}

// WaitForExpr suspends until the resource's snapshot satisfies a
// compiled expression predicate. Evaluation errors fail the wait.
func (e *Engine) WaitForExpr(ctx context.Context, name, code string) (model.Snapshot, error) {
	pred, err := CompilePredicate(code)
	if err != nil {
		return model.Snapshot{}, err
	}
	var evalErr error
	snap, err := e.bus.WaitFor(ctx, name, func(s model.Snapshot) bool {
		if evalErr != nil {
			return true
		}
		ok, err := pred.Match(name, s)
		if err != nil {
			evalErr = err
			return true
		}
		return ok
	})
	if evalErr != nil {
		return model.Snapshot{}, evalErr
	}
	return snap, err
}
