package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Chat backend relaying user sessions to an LLM",
		Long: `chatrelay serves the /api/chat API: bearer-authenticated chat sessions
whose messages are stored in the configured database and answered by the
configured completion provider.

Configuration comes from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newChatCmd())

	return cmd
}
