// Command console-client is a headless Instrument-service client: it
// mirrors a console-server's state locally (internal/clientstate) and
// prints deltas to the terminal rather than driving a TUI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asyncwatch/console/internal/logging"
)

var flagAddr string

var rootCmd = &cobra.Command{
	Use:   "console-client",
	Short: "Headless client for a console-server's Instrument service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(false)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "http://127.0.0.1:6669", "console-server address (http://, file://, or vsock://)")
	rootCmd.AddCommand(watchCmd, pauseCmd, resumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
