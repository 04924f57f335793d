package upgrade

import (
	"os"
	"path/filepath"

	"github.com/smykla-skalski/tkt/internal/xdg"
)

const (
	// InstallDirEnv pins the install directory, bypassing the on-disk
	// preference heuristic. The orchestrator sets it in the environment of
	// the spawned setup child so parent and child agree on the directory.
	InstallDirEnv = "TKT_INSTALL_DIR"

	// TempSuffix marks an in-progress download next to the install path.
	TempSuffix = ".download"

	// OldSuffix marks the previous binary parked by the Windows rename
	// sequence.
	OldSuffix = ".old"

	// LockSuffix marks the PID lock file guarding the install path.
	LockSuffix = ".lock"
)

// BinaryPaths is the set of sibling paths derived from one install path.
// Always derived, never constructed field by field, so the four paths stay
// consistent with each other.
type BinaryPaths struct {
	Install string
	Temp    string
	Old     string
	Lock    string
}

// PathsFor derives the binary path set for an install path.
func PathsFor(installPath string) BinaryPaths {
	return BinaryPaths{
		Install: installPath,
		Temp:    installPath + TempSuffix,
		Old:     installPath + OldSuffix,
		Lock:    installPath + LockSuffix,
	}
}

// preferredInstallDirs is the fixed preference list of well-known
// directories, tried in order. A directory qualifies when it exists on disk
// and is on PATH.
func preferredInstallDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	return []string{
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "bin"),
	}
}

// ResolveInstallDir computes the standalone install directory: the explicit
// environment override wins, then the first preferred directory that exists
// and is on PATH, then the guaranteed fallback under the tkt home directory.
func ResolveInstallDir() string {
	if pin := os.Getenv(InstallDirEnv); pin != "" {
		if expanded, err := xdg.ExpandPath(pin); err == nil {
			return expanded
		}

		return pin
	}

	for _, dir := range preferredInstallDirs() {
		if dirExists(dir) && onPath(dir) {
			return dir
		}
	}

	return xdg.FallbackInstallDir()
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// onPath reports whether dir is an entry of $PATH.
func onPath(dir string) bool {
	cleaned := filepath.Clean(dir)

	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if entry == "" {
			continue
		}

		if filepath.Clean(entry) == cleaned {
			return true
		}
	}

	return false
}
