package main

import (
	"github.com/aretw0/tripflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the turn API: /transcribe and /turn accept utterances, /events and
/ws stream response signals, /token issues LiveKit room tokens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := globalOptions(cmd)
		opts.Addr, _ = cmd.Flags().GetString("addr")
		return cli.RunServe(opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}
