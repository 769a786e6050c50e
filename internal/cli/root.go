package cli

import (
	"github.com/readygate-io/readygate/internal/logging"
	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "readygate",
	Short: "Startup ordering and health propagation for resource topologies",
	Long: `Readygate coordinates startup ordering and health propagation among
interdependent runtime resources: each resource has an observable
lifecycle, and other resources declare wait conditions on it (wait
until running, or wait until completed with an expected exit code).

The engine validates the declared topology, blocks dependents until
their preconditions hold, and publishes every state change to
subscribers.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitFormat(logLevel, logFormat)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}
