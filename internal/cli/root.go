// Package cli provides the command-line interface for openapi-extract.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Execute creates and runs the root command.
func Execute() error {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "openapi-extract",
		Short: "Extract OpenAPI documents from annotated Go source",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(newInitCommand())

	return rootCmd.Execute()
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
