package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/readygate-io/readygate/internal/engine"
	"github.com/readygate-io/readygate/internal/topofile"
	"github.com/spf13/cobra"
)

var (
	simUntil      string
	simStartDelay time.Duration
	simTimeout    time.Duration
	simHealthy    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <topology.yaml>",
	Short: "Drive a topology through a simulated run",
	Long: `Builds the engine for a topology file, requests startup for every
resource with a simulated executor, and streams each published snapshot
to stdout. Wait annotations resolve exactly as they would in a real
run.

With --until, the run keeps streaming until some resource's snapshot
satisfies the expression, e.g.:

  readygate simulate topology.yaml --until 'name == "api" && state == "Running"'`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simUntil, "until", "", "stop once a snapshot satisfies this expression")
	simulateCmd.Flags().DurationVar(&simStartDelay, "start-delay", 10*time.Millisecond, "simulated startup latency per resource")
	simulateCmd.Flags().DurationVar(&simTimeout, "timeout", 30*time.Second, "overall simulation timeout")
	simulateCmd.Flags().BoolVar(&simHealthy, "healthy", true, "report every declared health check healthy once resources start")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	topo, err := topofile.Load(args[0])
	if err != nil {
		return err
	}

	var pred *engine.SnapshotPredicate
	if simUntil != "" {
		pred, err = engine.CompilePredicate(simUntil)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), simTimeout)
	defer cancel()

	eng := engine.New(topo)
	feed := eng.WatchAll(ctx)

	satisfied := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		matched := false
		for ev := range feed {
			printEvent(ev)
			if pred != nil && !matched {
				ok, err := pred.Match(ev.Resource, ev.Snapshot)
				if err != nil {
					fmt.Printf("predicate error: %v\n", err)
				}
				if ok {
					matched = true
					close(satisfied)
				}
			}
		}
	}()

	scripts := make(map[string]engine.SimScript, topo.Len())
	for _, name := range topo.Names() {
		scripts[name] = engine.SimScript{StartDelay: simStartDelay}
	}
	exec := engine.NewSimExecutor(eng, scripts)
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	if simHealthy {
		seen := make(map[string]bool)
		for _, res := range topo.Resources() {
			for _, key := range res.HealthCheckKeys() {
				if !seen[key] {
					seen[key] = true
					eng.ReportHealth(key, true)
				}
			}
		}
	}

	if pred != nil {
		select {
		case <-satisfied:
			fmt.Printf("\npredicate satisfied: %s\n", pred.Source())
		case <-ctx.Done():
			return fmt.Errorf("predicate not satisfied before timeout: %s", pred.Source())
		}
	}

	// Tear the feed down and wait for the printer to exhaust it; the
	// feed closes on cancellation.
	cancel()
	<-drained
	return nil
}

func printEvent(ev engine.Event) {
	line := fmt.Sprintf("%-20s %-14s health=%-9s v%d",
		ev.Resource, ev.Snapshot.State, ev.Snapshot.Health, ev.Snapshot.Version)
	if ev.Snapshot.ExitCode != nil {
		line += fmt.Sprintf(" exit=%d", *ev.Snapshot.ExitCode)
	}
	fmt.Println(line)
}
