package main

import (
	"os"

	"github.com/aretw0/tripflow/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored trip sessions",
	Long:  `List, inspect, and remove trip records held in the session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessionList(globalOptions(cmd), os.Stdout)
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <phone>",
	Short: "Inspect the trip record of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessionInspect(globalOptions(cmd), os.Stdout, args[0])
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <phone>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessionRemove(globalOptions(cmd), os.Stdout, args)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
