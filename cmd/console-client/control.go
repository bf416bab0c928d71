package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/asyncwatch/console/internal/wireclient"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the server's publish ticks",
	RunE:  runControl((*wireclient.Connection).Pause, "paused"),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the server's publish ticks",
	RunE:  runControl((*wireclient.Connection).Resume, "resumed"),
}

func runControl(call func(*wireclient.Connection, context.Context) error, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		conn := wireclient.New(flagAddr)
		defer conn.Close()

		if err := call(conn, ctx); err != nil {
			return err
		}
		pterm.Success.Printf("%s\n", verb)
		return nil
	}
}
