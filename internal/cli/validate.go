package cli

import (
	"fmt"

	"github.com/readygate-io/readygate/internal/topofile"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <topology.yaml>",
	Short: "Validate a topology file",
	Long: `Validates a topology file: resource names, parent references, replica
counts, and wait annotations (self-waits, parent-waits, and wait cycles
are rejected).`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Checking %s... ", args[0])

	topo, err := topofile.Load(args[0])
	if err != nil {
		fmt.Println("FAILED")
		return err
	}

	fmt.Println("OK")
	fmt.Printf("\nTopology is valid: %d resource(s)\n", topo.Len())
	return nil
}
