// Command console-server runs the aggregator and its gRPC surface: the
// process a traced program embeds internal/instrument.Layer into, and
// that a console-client (or any Instrument-service caller) connects to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asyncwatch/console/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "console-server",
	Short: "Live diagnostic console aggregator and gRPC server",
	Long: `console-server hosts the in-process instrumentation aggregator and
exposes it over the Instrument gRPC service for console-client (or any
other Instrument-service caller) to watch.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(false); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
