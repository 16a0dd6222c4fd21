package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - OpenAI-compatible credential-pool chat gateway",
	Long: `Ganymede is a chat gateway that fronts a pool of delegated upstream
credentials behind the standard OpenAI chat-completion API.

Each request draws one pooled credential, streams the upstream's framed
binary reply back as SSE chunks (or one aggregated JSON response), and
leaves a durable request log in the embedded SQLite store. Expired
credentials and stale logs are reclaimed on a cron schedule.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
