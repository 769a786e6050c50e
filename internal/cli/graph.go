package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/readygate-io/readygate/internal/model"
	"github.com/readygate-io/readygate/internal/topofile"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <topology.yaml>",
	Short: "Output the wait-dependency graph in DOT format",
	Long: `Generates a visual representation of the topology's wait dependencies
and parent links in Graphviz DOT format. Pipe the output to 'dot' to
generate an image:

  readygate graph topology.yaml | dot -Tpng > graph.png`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	topo, err := topofile.Load(args[0])
	if err != nil {
		return err
	}
	renderDOT(os.Stdout, topo)
	return nil
}

// renderDOT writes the topology as a DOT digraph: solid edges for wait
// dependencies (labeled with the mode), dashed edges for parent links.
func renderDOT(w io.Writer, topo *model.Topology) {
	fmt.Fprintln(w, "digraph readygate {")
	fmt.Fprintln(w, "  rankdir = \"BT\";")
	fmt.Fprintln(w, "  node [shape = rect];")
	fmt.Fprintln(w)

	for _, res := range topo.Resources() {
		fmt.Fprintf(w, "  %q;\n", res.Name)
	}
	fmt.Fprintln(w)

	for _, res := range topo.Resources() {
		for _, wait := range res.Waits() {
			label := string(wait.Mode)
			if wait.ExitCode != nil {
				label = fmt.Sprintf("%s (exit %d)", wait.Mode, *wait.ExitCode)
			}
			fmt.Fprintf(w, "  %q -> %q [label = %q];\n", res.Name, wait.Target, label)
		}
		if res.Parent != "" {
			fmt.Fprintf(w, "  %q -> %q [style = dashed, label = \"parent\"];\n", res.Name, res.Parent)
		}
	}
	fmt.Fprintln(w, "}")
}
