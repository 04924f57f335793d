package upgrade_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/tkt/internal/exec"
	"github.com/smykla-skalski/tkt/internal/upgrade"
)

var _ = Describe("InstallMethod", func() {
	DescribeTable("round-trips through its name",
		func(method upgrade.InstallMethod, name string) {
			Expect(method.String()).To(Equal(name))

			parsed, ok := upgrade.ParseInstallMethod(name)
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(method))
		},
		Entry("curl", upgrade.InstallMethodCurl, "curl"),
		Entry("brew", upgrade.InstallMethodBrew, "brew"),
		Entry("npm", upgrade.InstallMethodNpm, "npm"),
		Entry("pnpm", upgrade.InstallMethodPnpm, "pnpm"),
		Entry("bun", upgrade.InstallMethodBun, "bun"),
		Entry("yarn", upgrade.InstallMethodYarn, "yarn"),
	)

	It("rejects unknown method names", func() {
		_, ok := upgrade.ParseInstallMethod("apt")
		Expect(ok).To(BeFalse())
	})

	It("classifies package managers", func() {
		Expect(upgrade.InstallMethodCurl.IsPackageManager()).To(BeFalse())
		Expect(upgrade.InstallMethodUnknown.IsPackageManager()).To(BeFalse())
		Expect(upgrade.InstallMethodBrew.IsPackageManager()).To(BeTrue())
		Expect(upgrade.InstallMethodNpm.IsPackageManager()).To(BeTrue())
		Expect(upgrade.InstallMethodYarn.IsPackageManager()).To(BeTrue())
	})

	It("names the uninstall command per manager", func() {
		Expect(upgrade.InstallMethodNpm.UninstallHint()).To(Equal("npm uninstall -g tkt-cli"))
		Expect(upgrade.InstallMethodYarn.UninstallHint()).To(Equal("yarn global remove tkt-cli"))
	})
})

var _ = Describe("Detector", func() {
	var (
		installDir string
		exePath    string
		runner     *stubRunner
		tools      *stubTools
	)

	newDetector := func() *upgrade.Detector {
		return upgrade.NewDetectorWithPaths(
			runner,
			tools,
			func() string { return installDir },
			func() (string, error) { return exePath, nil },
		)
	}

	BeforeEach(func() {
		installDir = GinkgoT().TempDir()
		exePath = filepath.Join(GinkgoT().TempDir(), "elsewhere", "tkt")
		runner = &stubRunner{results: map[string]exec.CommandResult{}}
		tools = &stubTools{missing: map[string]bool{}}
	})

	It("returns curl when the executable lives in the install directory", func() {
		exePath = filepath.Join(installDir, "tkt")
		Expect(os.WriteFile(exePath, []byte("bin"), 0o755)).To(Succeed())

		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodCurl))
	})

	It("returns brew for a homebrew cellar path", func() {
		exePath = "/opt/homebrew/Cellar/tkt/1.2.0/bin/tkt"

		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodBrew))
	})

	It("returns the first manager whose global list contains the package", func() {
		runner.results["npm ls -g --depth=0"] = exec.CommandResult{Stdout: "empty\n"}
		runner.results["pnpm list -g --depth=0"] = exec.CommandResult{Stdout: "tkt-cli@1.2.0\n"}

		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodPnpm))
	})

	It("treats probe failures as not-this-manager", func() {
		runner.results["npm ls -g --depth=0"] = exec.CommandResult{
			ExitCode: 1, Err: errors.New("exit status 1"),
		}
		runner.results["yarn global list"] = exec.CommandResult{Stdout: "tkt-cli@1.2.0\n"}

		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodYarn))
	})

	It("skips managers missing from PATH without spawning them", func() {
		tools.missing["npm"] = true
		runner.results["npm ls -g --depth=0"] = exec.CommandResult{Stdout: "tkt-cli@1.2.0\n"}
		runner.results["pnpm list -g --depth=0"] = exec.CommandResult{Stdout: "tkt-cli@1.2.0\n"}

		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodPnpm))
	})

	It("degrades to unknown only after every probe fails", func() {
		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodUnknown))
	})

	It("ignores manager output without the package marker", func() {
		runner.results["npm ls -g --depth=0"] = exec.CommandResult{Stdout: "other-package@2.0.0\n"}

		Expect(newDetector().Detect(context.Background())).To(Equal(upgrade.InstallMethodUnknown))
	})
})
