// Package xdg provides centralized path management following XDG Base Directory
// conventions. All global/user-level paths tkt touches on disk are defined here.
package xdg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const appName = "tkt"

func userHome() (string, error) {
	return os.UserHomeDir()
}

// --- XDG base directory functions ---

// ConfigHome returns $XDG_CONFIG_HOME or ~/.config.
func ConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}

	home, err := userHome()
	if err != nil {
		return filepath.Join("~", ".config")
	}

	return filepath.Join(home, ".config")
}

// StateHome returns $XDG_STATE_HOME or ~/.local/state.
func StateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}

	home, err := userHome()
	if err != nil {
		return filepath.Join("~", ".local", "state")
	}

	return filepath.Join(home, ".local", "state")
}

// --- tkt-specific directories ---

// ConfigDir returns ConfigHome()/tkt.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), appName)
}

// StateDir returns StateHome()/tkt.
func StateDir() string {
	return filepath.Join(StateHome(), appName)
}

// StateFile returns the durable key-value state file path.
// Respects TKT_STATE_FILE env var, otherwise StateDir()/state.toml.
func StateFile() string {
	if v := os.Getenv("TKT_STATE_FILE"); v != "" {
		return v
	}

	return filepath.Join(StateDir(), "state.toml")
}

// HomeDir returns ~/.tkt (standalone-install root).
func HomeDir() string {
	home, err := userHome()
	if err != nil {
		return filepath.Join("~", "."+appName)
	}

	return filepath.Join(home, "."+appName)
}

// FallbackInstallDir returns ~/.tkt/bin, the guaranteed standalone install
// directory used when no preferred PATH directory qualifies.
func FallbackInstallDir() string {
	return filepath.Join(HomeDir(), "bin")
}

// --- Utility functions ---

// ExpandPath resolves ~ prefix to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
// Returns error for invalid tilde usage like "~foo".
func ExpandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	home, err := userHome()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	switch {
	case path == "~":
		return home, nil
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:]), nil
	default:
		return "", errors.Newf("paths starting with ~ must be either ~ or ~/subdir, got %q", path)
	}
}
