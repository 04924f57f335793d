package upgrade_test

import (
	"context"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/tkt/internal/registry"
	"github.com/smykla-skalski/tkt/internal/upgrade"
)

var _ = Describe("Resolver", func() {
	var (
		releases *stubReleases
		packages *stubPackages
		resolver *upgrade.Resolver
	)

	BeforeEach(func() {
		releases = &stubReleases{byTag: map[string]*registry.Release{}}
		packages = &stubPackages{versions: map[string]bool{}}
		resolver = upgrade.NewResolver(releases, packages)
	})

	Describe("FetchLatestVersion", func() {
		It("uses the latest release for standalone installs, stripping the v prefix", func() {
			releases.latest = &registry.Release{TagName: "v1.4.0"}

			version, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodCurl, upgrade.ChannelStable)

			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal("1.4.0"))
		})

		It("uses the latest release for brew installs", func() {
			releases.latest = &registry.Release{TagName: "v1.4.0"}

			version, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodBrew, upgrade.ChannelStable)

			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal("1.4.0"))
		})

		It("uses the package registry for manager installs", func() {
			packages.latest = "1.4.0"

			version, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodNpm, upgrade.ChannelStable)

			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal("1.4.0"))
		})

		It("resolves nightly from the rolling tag regardless of method", func() {
			releases.byTag[registry.NightlyTag] = &registry.Release{
				TagName: registry.NightlyTag,
				Name:    "v1.5.0-nightly.20260829",
			}

			version, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodNpm, upgrade.ChannelNightly)

			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal("1.5.0-nightly.20260829"))
		})

		It("falls back to the nightly tag name when the release has no name", func() {
			releases.byTag[registry.NightlyTag] = &registry.Release{TagName: registry.NightlyTag}

			version, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodCurl, upgrade.ChannelNightly)

			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(registry.NightlyTag))
		})

		It("maps transport failures to network errors", func() {
			releases.latestErr = errors.New("connection refused")

			_, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodCurl, upgrade.ChannelStable)

			Expect(upgrade.IsKind(err, upgrade.KindNetworkError)).To(BeTrue())
		})

		It("propagates context cancellation untouched", func() {
			releases.latestErr = context.Canceled

			_, err := resolver.FetchLatestVersion(
				context.Background(), upgrade.InstallMethodCurl, upgrade.ChannelStable)

			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(upgrade.IsKind(err, upgrade.KindNetworkError)).To(BeFalse())
		})
	})

	Describe("VersionExists", func() {
		It("probes the package registry for manager installs", func() {
			packages.versions["1.2.0"] = true

			Expect(resolver.VersionExists(
				context.Background(), upgrade.InstallMethodNpm, "1.2.0")).To(BeTrue())
			Expect(resolver.VersionExists(
				context.Background(), upgrade.InstallMethodNpm, "9.9.9")).To(BeFalse())
		})

		It("probes the release tag for standalone installs", func() {
			releases.byTag["v1.2.0"] = &registry.Release{TagName: "v1.2.0"}

			Expect(resolver.VersionExists(
				context.Background(), upgrade.InstallMethodCurl, "1.2.0")).To(BeTrue())
		})

		It("treats a missing release tag as not-found, not an error", func() {
			exists, err := resolver.VersionExists(
				context.Background(), upgrade.InstallMethodCurl, "9.9.9")

			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("tolerates a leading v on the requested version", func() {
			packages.versions["1.2.0"] = true

			Expect(resolver.VersionExists(
				context.Background(), upgrade.InstallMethodPnpm, "v1.2.0")).To(BeTrue())
		})

		It("maps probe transport failures to network errors", func() {
			packages.existsErr = errors.New("connection reset")

			_, err := resolver.VersionExists(
				context.Background(), upgrade.InstallMethodNpm, "1.2.0")

			Expect(upgrade.IsKind(err, upgrade.KindNetworkError)).To(BeTrue())
		})
	})
})
