package upgrade

import (
	"os"

	"github.com/cockroachdb/errors"
)

// executableFileMode is the permission mode set on the new binary before it
// is moved into place.
const executableFileMode = 0o755

// Replacer swaps the installed binary for a freshly downloaded one. The
// strategy is selected once at startup; orchestration code never branches on
// the platform.
type Replacer interface {
	// Replace moves tempPath onto installPath.
	Replace(tempPath, installPath string) error
}

// NewReplacer returns the replacement strategy for the given platform.
//
//nolint:ireturn // strategy selection intentionally returns the interface
func NewReplacer(platform Platform) Replacer {
	if platform.IsWindows() {
		return &renameDanceReplacer{}
	}

	return &atomicRenameReplacer{}
}

// atomicRenameReplacer is the POSIX strategy: a single rename. The directory
// entry update is atomic, so no reader ever observes a truncated binary.
type atomicRenameReplacer struct{}

func (*atomicRenameReplacer) Replace(tempPath, installPath string) error {
	if err := os.Chmod(tempPath, executableFileMode); err != nil {
		return errors.Wrapf(err, "marking %s executable", tempPath)
	}

	if err := os.Rename(tempPath, installPath); err != nil {
		return errors.Wrapf(err, "replacing %s", installPath)
	}

	return nil
}

// renameDanceReplacer is the Windows strategy. A mapped executable cannot be
// overwritten but can be renamed, so the running binary is parked at the
// .old path first. The stranded .old file is left for a later startup's
// CleanupOldBinary call; deleting it here could fail while the old process
// still has it mapped. Windows has no executable permission bit, so no chmod.
type renameDanceReplacer struct{}

func (*renameDanceReplacer) Replace(tempPath, installPath string) error {
	oldPath := installPath + OldSuffix

	if err := os.Rename(installPath, oldPath); err != nil {
		// Either a fresh install (installPath missing) or a stale .old is
		// blocking the rename. Clear the .old and retry once, still
		// tolerating a missing installPath.
		if rmErr := os.Remove(oldPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return errors.Wrapf(rmErr, "removing stale backup %s", oldPath)
		}

		if retryErr := os.Rename(installPath, oldPath); retryErr != nil &&
			!errors.Is(retryErr, os.ErrNotExist) {
			return errors.Wrapf(retryErr, "parking %s", installPath)
		}
	}

	if err := os.Rename(tempPath, installPath); err != nil {
		return errors.Wrapf(err, "replacing %s", installPath)
	}

	return nil
}

// CleanupOldBinary removes the .old binary a previous Windows upgrade left
// behind. Fire and forget: the file may be locked by a still-exiting
// process, missing, or already removed, so every error is swallowed.
func CleanupOldBinary(installPath string) {
	_ = os.Remove(installPath + OldSuffix)
}
