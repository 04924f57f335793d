package upgrade

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/smykla-skalski/tkt/internal/exec"
	"github.com/smykla-skalski/tkt/internal/registry"
)

// InstallMethod represents how the running CLI was installed.
type InstallMethod int

const (
	// InstallMethodUnknown means no install origin could be determined.
	InstallMethodUnknown InstallMethod = iota

	// InstallMethodCurl means a standalone binary placed by the installer script.
	InstallMethodCurl

	// InstallMethodBrew means the binary is managed by a homebrew formula.
	InstallMethodBrew

	// InstallMethodNpm means a global npm install.
	InstallMethodNpm

	// InstallMethodPnpm means a global pnpm install.
	InstallMethodPnpm

	// InstallMethodBun means a global bun install.
	InstallMethodBun

	// InstallMethodYarn means a global yarn install.
	InstallMethodYarn
)

// String returns the method name as used on the CLI surface.
func (m InstallMethod) String() string {
	switch m {
	case InstallMethodCurl:
		return "curl"
	case InstallMethodBrew:
		return "brew"
	case InstallMethodNpm:
		return "npm"
	case InstallMethodPnpm:
		return "pnpm"
	case InstallMethodBun:
		return "bun"
	case InstallMethodYarn:
		return "yarn"
	default:
		return "unknown"
	}
}

// ParseInstallMethod parses a method name from a CLI flag.
func ParseInstallMethod(s string) (InstallMethod, bool) {
	switch s {
	case "curl":
		return InstallMethodCurl, true
	case "brew":
		return InstallMethodBrew, true
	case "npm":
		return InstallMethodNpm, true
	case "pnpm":
		return InstallMethodPnpm, true
	case "bun":
		return InstallMethodBun, true
	case "yarn":
		return InstallMethodYarn, true
	default:
		return InstallMethodUnknown, false
	}
}

// IsPackageManager reports whether the method delegates installs to a global
// package manager (as opposed to the standalone binary path).
func (m InstallMethod) IsPackageManager() bool {
	switch m {
	case InstallMethodBrew, InstallMethodNpm, InstallMethodPnpm, InstallMethodBun, InstallMethodYarn:
		return true
	default:
		return false
	}
}

// listGlobalCommand returns the command that lists globally installed
// packages for this manager, or nil when the method has no such probe.
func (m InstallMethod) listGlobalCommand() []string {
	switch m {
	case InstallMethodNpm:
		return []string{"npm", "ls", "-g", "--depth=0"}
	case InstallMethodPnpm:
		return []string{"pnpm", "list", "-g", "--depth=0"}
	case InstallMethodBun:
		return []string{"bun", "pm", "ls", "-g"}
	case InstallMethodYarn:
		return []string{"yarn", "global", "list"}
	default:
		return nil
	}
}

// installCommand returns the global-install command for an exact version.
func (m InstallMethod) installCommand(version string) []string {
	pkg := registry.NpmPackage + "@" + version

	switch m {
	case InstallMethodNpm:
		return []string{"npm", "install", "-g", pkg}
	case InstallMethodPnpm:
		return []string{"pnpm", "add", "-g", pkg}
	case InstallMethodBun:
		return []string{"bun", "add", "-g", pkg}
	case InstallMethodYarn:
		return []string{"yarn", "global", "add", pkg}
	default:
		return nil
	}
}

// UninstallHint returns the manager-specific command to remove the old
// globally installed copy.
func (m InstallMethod) UninstallHint() string {
	switch m {
	case InstallMethodBrew:
		return "brew uninstall " + BrewFormula
	case InstallMethodNpm:
		return "npm uninstall -g " + registry.NpmPackage
	case InstallMethodPnpm:
		return "pnpm remove -g " + registry.NpmPackage
	case InstallMethodBun:
		return "bun remove -g " + registry.NpmPackage
	case InstallMethodYarn:
		return "yarn global remove " + registry.NpmPackage
	default:
		return ""
	}
}

// probeOrder is the fixed priority order for package-manager probes.
var probeOrder = []InstallMethod{
	InstallMethodNpm,
	InstallMethodPnpm,
	InstallMethodBun,
	InstallMethodYarn,
}

// Detector determines how the running CLI was installed.
type Detector struct {
	runner     exec.CommandRunner
	tools      exec.ToolChecker
	installDir func() string
	exePath    func() (string, error)
}

// NewDetector creates a new Detector.
func NewDetector(runner exec.CommandRunner) *Detector {
	return &Detector{
		runner:     runner,
		tools:      exec.NewToolChecker(),
		installDir: ResolveInstallDir,
		exePath:    currentBinaryPath,
	}
}

// NewDetectorWithPaths creates a Detector with custom collaborators and path
// resolution (for testing).
func NewDetectorWithPaths(
	runner exec.CommandRunner,
	tools exec.ToolChecker,
	installDir func() string,
	exePath func() (string, error),
) *Detector {
	return &Detector{runner: runner, tools: tools, installDir: installDir, exePath: exePath}
}

// isHomebrewPath returns true if the resolved path looks like a
// homebrew-managed binary.
func isHomebrewPath(resolved string) bool {
	lower := strings.ToLower(resolved)

	return strings.Contains(lower, "/cellar/") ||
		strings.Contains(lower, "/homebrew/") ||
		strings.Contains(lower, "/linuxbrew/")
}

// Detect determines the install method of the running binary.
//
// The standalone-install directory is checked first (cheap, no subprocess),
// then the homebrew path heuristic, then each package manager is probed in a
// fixed priority order by listing its globally installed packages. Managers
// missing from PATH are skipped without spawning anything. A probe that fails
// to spawn, exits non-zero, or lacks the package marker means "not this
// manager", never a fatal error.
func (d *Detector) Detect(ctx context.Context) InstallMethod {
	if resolved, err := d.resolvedExePath(); err == nil {
		if filepath.Dir(resolved) == d.installDir() {
			return InstallMethodCurl
		}

		if isHomebrewPath(resolved) {
			return InstallMethodBrew
		}
	}

	marker := registry.NpmPackage + "@"

	for _, method := range probeOrder {
		cmd := method.listGlobalCommand()

		if !d.tools.IsAvailable(cmd[0]) {
			continue
		}

		result := d.runner.Run(ctx, cmd[0], cmd[1:]...)
		if result.Failed() {
			continue
		}

		if strings.Contains(result.Stdout, marker) {
			return method
		}
	}

	return InstallMethodUnknown
}

// resolvedExePath returns the running executable path with symlinks resolved.
func (d *Detector) resolvedExePath() (string, error) {
	exe, err := d.exePath()
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		// Can't resolve - use the path as reported.
		return exe, nil
	}

	return resolved, nil
}

// currentBinaryPath returns the path of the running executable.
func currentBinaryPath() (string, error) {
	return os.Executable()
}
