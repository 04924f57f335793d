package upgrade

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/tkt/internal/registry"
)

// Resolver resolves target versions against the method-appropriate registry.
type Resolver struct {
	releases registry.ReleaseClient
	packages registry.PackageClient
}

// NewResolver creates a new Resolver.
func NewResolver(releases registry.ReleaseClient, packages registry.PackageClient) *Resolver {
	return &Resolver{releases: releases, packages: packages}
}

// FetchLatestVersion resolves the latest version for a channel.
//
// Nightly always comes from the binary-asset registry's rolling tag: nightly
// builds are asset-only and never published to a package registry. Stable
// comes from the binary-asset "latest" release for standalone and brew
// installs, and from the package registry's "latest" dist-tag otherwise.
// A leading "v" is stripped from the result.
func (r *Resolver) FetchLatestVersion(
	ctx context.Context,
	method InstallMethod,
	channel Channel,
) (string, error) {
	if channel == ChannelNightly {
		release, err := r.releases.ReleaseByTag(ctx, registry.NightlyTag)
		if err != nil {
			return "", normalizeNetwork(err, "fetching nightly release")
		}

		version := release.Name
		if version == "" {
			version = release.TagName
		}

		return strings.TrimPrefix(version, "v"), nil
	}

	if method == InstallMethodCurl || method == InstallMethodBrew || method == InstallMethodUnknown {
		release, err := r.releases.LatestRelease(ctx)
		if err != nil {
			return "", normalizeNetwork(err, "fetching latest release")
		}

		return strings.TrimPrefix(release.TagName, "v"), nil
	}

	version, err := r.packages.LatestVersion(ctx)
	if err != nil {
		return "", normalizeNetwork(err, "fetching latest package version")
	}

	return strings.TrimPrefix(version, "v"), nil
}

// VersionExists probes whether an exact version is published on the
// method-appropriate registry.
func (r *Resolver) VersionExists(
	ctx context.Context,
	method InstallMethod,
	version string,
) (bool, error) {
	version = strings.TrimPrefix(version, "v")

	if method.IsPackageManager() && method != InstallMethodBrew {
		exists, err := r.packages.VersionExists(ctx, version)
		if err != nil {
			return false, normalizeNetwork(err, "probing version %s", version)
		}

		return exists, nil
	}

	_, err := r.releases.ReleaseByTag(ctx, "v"+version)
	if err != nil {
		if errors.Is(err, registry.ErrReleaseNotFound) {
			return false, nil
		}

		return false, normalizeNetwork(err, "probing version %s", version)
	}

	return true, nil
}
