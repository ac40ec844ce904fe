package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tripflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripflow",
	Short: "Tripflow turns voice and text utterances into trip bookings",
	Long: `Tripflow runs a slot-filling conversation per caller: each utterance is
transcribed, classified by a language model, merged into the caller's trip
record and answered with a pre-recorded response.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file (default tripflow.yaml when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose turn logging")
}

func globalOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{ConfigPath: configPath, Debug: debug}
}
