// Package main provides the CLI entry point for tkt.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/smykla-skalski/tkt/internal/upgrade"
	"github.com/smykla-skalski/tkt/pkg/logger"
)

// version is the embedded CLI version, set at build time via ldflags.
var version = "dev"

var debugMode bool

var rootCmd = &cobra.Command{
	Use:   "tkt",
	Short: "Issue tracker CLI",
	Long: `tkt is a command-line client for the tkt issue tracker:
issues, projects and organizations from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cleanupPreviousUpgrade()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var upgradeErr *upgrade.Error
		if errors.As(err, &upgradeErr) && upgradeErr.Remedy != "" {
			fmt.Fprintf(os.Stderr, "%s\n", upgradeErr.Remedy)
		}

		return 1
	}

	return 0
}

// cleanupPreviousUpgrade removes the .old binary a prior Windows upgrade may
// have stranded next to the executable. Fire and forget.
func cleanupPreviousUpgrade() {
	exe, err := os.Executable()
	if err != nil {
		return
	}

	upgrade.CleanupOldBinary(exe)
}

// buildLogger returns the logger for the current invocation.
//
//nolint:ireturn // logger selection intentionally returns the interface
func buildLogger() logger.Logger {
	if !debugMode {
		return logger.NewNoOpLogger()
	}

	return logger.NewWriterLogger(os.Stderr, logger.LevelDebug)
}
