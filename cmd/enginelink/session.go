package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Check connectivity and authentication",
	Long:  "Dials the engine, completes the credential handshake, reports the session state, and disconnects.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.client.StartSession(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s (endpoint %s)\n",
			rt.client.State(), rt.cfg.Engine.Endpoint)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}
