package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/smykla-skalski/tkt/internal/state"
	"github.com/smykla-skalski/tkt/internal/upgrade"
	"github.com/smykla-skalski/tkt/internal/xdg"
)

var (
	setupMethod       string
	setupChannel      string
	setupInstall      bool
	setupNoModifyPath bool
)

// setupCmd finishes an installation from inside the freshly installed
// binary. The upgrade orchestrator spawns it after every install; users
// normally never run it by hand.
var setupCmd = &cobra.Command{
	Use:    "setup",
	Short:  "Finish installing tkt",
	Hidden: true,
	RunE:   runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringVar(&setupMethod, "method", "",
		"Install method that placed this binary")
	setupCmd.Flags().StringVar(&setupChannel, "channel", "",
		"Release channel this binary was installed from")
	setupCmd.Flags().BoolVar(&setupInstall, "install", false,
		"Record install metadata for this binary")
	setupCmd.Flags().BoolVar(&setupNoModifyPath, "no-modify-path", false,
		"Skip adding the install directory to the shell PATH")
}

func runSetup(_ *cobra.Command, _ []string) error {
	store, err := state.NewFileStore(xdg.StateFile())
	if err != nil {
		return errors.Wrap(err, "loading local state")
	}

	if setupChannel != "" {
		if _, ok := upgrade.ParseChannel(setupChannel); !ok {
			return errors.Newf("unknown channel %q", setupChannel)
		}

		if err := store.SetChannel(setupChannel); err != nil {
			return errors.Wrap(err, "persisting channel")
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "resolving executable path")
	}

	if resolved, evalErr := filepath.EvalSymlinks(exe); evalErr == nil {
		exe = resolved
	}

	if setupInstall {
		info := state.InstallInfo{
			Method:  setupMethod,
			Path:    exe,
			Version: version,
		}
		if err := store.SetInstallInfo(info); err != nil {
			return errors.Wrap(err, "recording install metadata")
		}
	}

	// A prior Windows upgrade may have parked the replaced binary next to us.
	upgrade.CleanupOldBinary(exe)

	if setupMethod == upgrade.InstallMethodCurl.String() && !setupNoModifyPath {
		if err := ensureOnPath(filepath.Dir(exe)); err != nil {
			return err
		}
	}

	fmt.Printf("tkt %s is ready\n", version)

	return nil
}

// pathExportLine is the line appended to the shell rc file.
func pathExportLine(dir string) string {
	return fmt.Sprintf(`export PATH="%s:$PATH"`, dir)
}

// ensureOnPath makes the install directory reachable from new shells by
// appending an export line to the user's shell rc file. Idempotent: nothing
// is written when the directory is already on PATH or the line is present.
func ensureOnPath(dir string) error {
	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if entry != "" && filepath.Clean(entry) == filepath.Clean(dir) {
			return nil
		}
	}

	rcPath := shellRCPath()
	if rcPath == "" {
		fmt.Printf("Add %s to your PATH to use tkt from new shells\n", dir)

		return nil
	}

	line := pathExportLine(dir)

	if raw, err := os.ReadFile(rcPath); err == nil && strings.Contains(string(raw), line) {
		return nil
	}

	f, err := os.OpenFile(rcPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", rcPath)
	}

	_, writeErr := fmt.Fprintf(f, "\n# Added by tkt setup\n%s\n", line)

	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		return errors.Wrapf(writeErr, "updating %s", rcPath)
	}

	fmt.Printf("Added %s to PATH in %s (restart your shell to pick it up)\n", dir, rcPath)

	return nil
}

// shellRCPath picks the rc file for the user's login shell.
func shellRCPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch filepath.Base(os.Getenv("SHELL")) {
	case "zsh":
		return filepath.Join(home, ".zshrc")
	case "bash":
		return filepath.Join(home, ".bashrc")
	case "fish":
		return ""
	default:
		return filepath.Join(home, ".profile")
	}
}
