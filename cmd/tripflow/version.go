package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tripflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tripflow version %s\n", strings.TrimSpace(tripflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
