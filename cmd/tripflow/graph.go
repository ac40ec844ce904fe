package main

import (
	"os"

	"github.com/aretw0/tripflow/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [phone]",
	Short: "Export the conversation flow visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the intents, the asset each one plays and
the slots that move the conversation forward. Given a phone, the caller's
progress is highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var phone string
		if len(args) > 0 {
			phone = args[0]
		}
		return cli.RunGraph(globalOptions(cmd), os.Stdout, phone)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
