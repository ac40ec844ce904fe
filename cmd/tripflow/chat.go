package main

import (
	"github.com/aretw0/tripflow/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the booking flow from the terminal",
	Long:  `Reads one utterance per line from stdin and runs it as a text turn for the given caller.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		phone, _ := cmd.Flags().GetString("phone")
		name, _ := cmd.Flags().GetString("name")
		jsonMode, _ := cmd.Flags().GetBool("json")
		return cli.RunChat(cli.ChatOptions{
			Options: globalOptions(cmd),
			Phone:   phone,
			Name:    name,
			JSON:    jsonMode,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("phone", "p", "", "Caller phone number (session key)")
	chatCmd.Flags().String("name", "User", "Caller name")
	chatCmd.Flags().Bool("json", false, "Print NDJSON turn results")
	_ = chatCmd.MarkFlagRequired("phone")
}
