// Package cmd wires the chatpad CLI: the serve, migrate, and version
// subcommands.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatpad",
	Short: "chatpad - single-tenant AI chat backend",
	Long: `chatpad is the backend for a single-tenant AI chat web app.

It proxies chat turns to a configurable generative-language API, resolves
image and web search tool calls, and keeps per-visitor conversation history
in Postgres. Application settings are edited at runtime through the admin
endpoints; server settings come from the environment or a config file.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// Optional; a missing .env file is not an error.
		_ = godotenv.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
