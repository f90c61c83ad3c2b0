// Package cli implements the Brushwork command-line interface using
// Cobra. Each subcommand maps to one daemon capability (serve, keys,
// tasks, status).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "brushwork",
	Short: "Brushwork — batch image generation with Gemini",
	Long: `Brushwork runs image generation batches against the Gemini API.
Submit a list of prompts, let the queue worker generate one image per
prompt with automatic key rotation, and collect the results over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
