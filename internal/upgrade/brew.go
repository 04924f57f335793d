package upgrade

import (
	"context"

	"github.com/smykla-skalski/tkt/internal/exec"
)

// BrewUpgrader delegates upgrades to the homebrew formula.
type BrewUpgrader struct {
	runner exec.CommandRunner
}

// NewBrewUpgrader creates a new BrewUpgrader.
func NewBrewUpgrader(runner exec.CommandRunner) *BrewUpgrader {
	return &BrewUpgrader{runner: runner}
}

// Upgrade runs brew upgrade for the tkt formula with the caller's stdio.
func (b *BrewUpgrader) Upgrade(ctx context.Context) error {
	result := b.runner.RunInherited(ctx, nil, "brew", "upgrade", BrewFormula)
	if result.Failed() {
		if result.ExitCode != 0 {
			return WrapError(
				KindExecutionFailed, result.Err,
				"brew upgrade exited with code %d", result.ExitCode,
			)
		}

		return WrapError(KindExecutionFailed, result.Err, "running brew upgrade")
	}

	return nil
}

// errBrewVersionPin rejects pinned-version installs via homebrew: the
// formula always tracks the latest stable release.
func errBrewVersionPin(version string) *Error {
	return NewError(
		KindUnsupportedOperation,
		"homebrew installs cannot pin version %s", version,
	).WithRemedy("run 'brew upgrade %s' to get the latest version", BrewFormula)
}
