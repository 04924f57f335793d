// Package upgrade implements the self-upgrade and binary-lifecycle subsystem:
// install-method detection, version/channel resolution, PID-file locking,
// atomic binary replacement, and the orchestration that sequences them.
package upgrade

import (
	"fmt"
	"runtime"

	"github.com/smykla-skalski/tkt/internal/registry"
)

// BinaryBaseName is the name of the installed binary, without the Windows
// extension.
const BinaryBaseName = "tkt"

// BrewFormula is the homebrew formula for the CLI.
const BrewFormula = "smykla-skalski/tap/tkt"

// Platform represents the current OS and architecture.
type Platform struct {
	OS   string
	Arch string
}

// DetectPlatform returns the current OS and architecture.
func DetectPlatform() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// IsWindows returns true if the platform is Windows.
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// BinaryName returns the installed binary filename for the platform.
func (p Platform) BinaryName() string {
	if p.IsWindows() {
		return BinaryBaseName + ".exe"
	}

	return BinaryBaseName
}

// AssetName returns the release asset filename for the platform.
// Assets follow {name}-{os}-{arch}[.exe] with arch spelled x64/arm64.
func (p Platform) AssetName() string {
	arch := p.Arch
	if arch == "amd64" {
		arch = "x64"
	}

	name := fmt.Sprintf("%s-%s-%s", BinaryBaseName, p.OS, arch)
	if p.IsWindows() {
		name += ".exe"
	}

	return name
}

// DownloadURL returns the full download URL for a release asset.
func DownloadURL(tag, filename string) string {
	return fmt.Sprintf(
		"https://github.com/%s/%s/releases/download/%s/%s",
		registry.GitHubOwner, registry.GitHubRepo, tag, filename,
	)
}
