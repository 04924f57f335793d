package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/smykla-skalski/tkt/internal/registry"
	"github.com/smykla-skalski/tkt/internal/state"
	"github.com/smykla-skalski/tkt/internal/upgrade"
	"github.com/smykla-skalski/tkt/internal/xdg"
)

// upgradeTimeout bounds the whole upgrade, including downloads and the
// package-manager subprocess.
const upgradeTimeout = 5 * time.Minute

var (
	upgradeCheck   bool
	upgradeForce   bool
	upgradeMethod  string
	upgradeChannel string
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [version|stable|nightly]",
	Short: "Upgrade tkt to the latest version",
	Long: `Upgrade tkt in place.

Detects how tkt was installed (standalone binary, homebrew, or a global
npm/pnpm/bun/yarn install) and uses the matching upgrade path. Passing a
channel name switches the release channel and persists the choice.

Examples:
  tkt upgrade              # Upgrade to the latest version on the current channel
  tkt upgrade 1.3.0        # Upgrade (or downgrade) to an exact version
  tkt upgrade nightly      # Switch to the nightly channel and upgrade
  tkt upgrade --check      # Only report the target version`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpgrade,
}

func init() {
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.Flags().BoolVar(&upgradeCheck, "check", false,
		"Only check for updates, don't install")
	upgradeCmd.Flags().BoolVar(&upgradeForce, "force", false,
		"Reinstall even when already on the target version")
	upgradeCmd.Flags().StringVar(&upgradeMethod, "method", "",
		"Override install-method detection (curl, brew, npm, pnpm, bun, yarn)")
	upgradeCmd.Flags().StringVar(&upgradeChannel, "channel", "",
		"Switch the release channel (stable, nightly)")
}

func runUpgrade(_ *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), upgradeTimeout)
	defer cancel()

	store, err := state.NewFileStore(xdg.StateFile())
	if err != nil {
		return errors.Wrap(err, "loading local state")
	}

	resolver := upgrade.NewResolver(
		registry.NewGitHubClient(nil),
		registry.NewNpmClient(nil),
	)

	orch := upgrade.NewOrchestrator(version, store, resolver,
		upgrade.WithLogger(buildLogger()),
	)

	opts := upgrade.Options{
		Check:   upgradeCheck,
		Force:   upgradeForce,
		Method:  upgradeMethod,
		Channel: upgradeChannel,
	}
	if len(args) > 0 {
		opts.Target = args[0]
	}

	result, err := orch.Run(ctx, opts)
	if err != nil {
		return err
	}

	return reportUpgrade(ctx, orch, result)
}

// reportUpgrade finishes any pending standalone install and prints the outcome.
func reportUpgrade(ctx context.Context, orch *upgrade.Orchestrator, result *upgrade.RunResult) error {
	switch {
	case result.CheckOnly:
		reportCheck(result)

		return nil

	case result.UpToDate:
		fmt.Printf("Already up to date (version %s)\n", result.CurrentVersion)

		return nil

	case result.Outcome != nil:
		fmt.Printf("Installing %s to %s...\n", result.TargetVersion, result.Outcome.InstallPath)

		if err := orch.FinishInstall(ctx, result); err != nil {
			return err
		}

		fmt.Printf("Upgraded %s -> %s\n", result.CurrentVersion, result.TargetVersion)

		if result.Migrated {
			fmt.Printf("\nNote: the old %s-installed copy may still shadow the new binary in PATH.\n",
				result.Method)
			fmt.Printf("Remove it with: %s\n", result.UninstallHint)
		}

		return nil

	default:
		fmt.Printf("Upgraded %s -> %s via %s\n",
			result.CurrentVersion, result.TargetVersion, result.Method)

		return nil
	}
}

// reportCheck prints the --check summary without mutating anything.
func reportCheck(result *upgrade.RunResult) {
	if result.TargetVersion == result.CurrentVersion {
		fmt.Printf("Already on %s (channel %s)\n", result.CurrentVersion, result.Channel)

		return
	}

	fmt.Printf("Current version: %s\n", result.CurrentVersion)
	fmt.Printf("Target version:  %s (channel %s)\n", result.TargetVersion, result.Channel)
	fmt.Printf("\nRun 'tkt upgrade' to install\n")
}
