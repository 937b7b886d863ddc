package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is injected via ldflags at build time.
var version = "dev"

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "alloy-plan",
		Short:         "Offline training program planner",
		Long:          "alloy-plan lays out program skeletons, generates session content against a local catalog, manages the catalog, and serves MCP over stdio.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	newLogger := func() *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	rootCmd.AddCommand(
		newSkeletonCmd(newLogger),
		newGenerateCmd(newLogger),
		newImportCatalogCmd(newLogger),
		newMCPCmd(newLogger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor("error:"), err)
		os.Exit(1)
	}
}
