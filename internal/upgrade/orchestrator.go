package upgrade

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/tkt/internal/exec"
	"github.com/smykla-skalski/tkt/internal/registry"
	"github.com/smykla-skalski/tkt/internal/state"
	"github.com/smykla-skalski/tkt/pkg/logger"
)

// probeTimeout bounds each package-manager detection probe.
const probeTimeout = 30 * time.Second

// installDirMode is the permission mode for a freshly created install directory.
const installDirMode = 0o755

// Options carries the upgrade command's inputs.
type Options struct {
	// Target is the optional positional argument: an exact version or a
	// channel name ("stable"/"nightly").
	Target string

	// Check reports the target version without mutating anything.
	Check bool

	// Force upgrades even when the target equals the running version.
	Force bool

	// Method overrides install-method detection.
	Method string

	// Channel reassigns and persists the release channel.
	Channel string
}

// Outcome is returned when the standalone path downloaded a binary and the
// command layer must finish installing it and then release the lock.
type Outcome struct {
	TempBinaryPath string
	InstallPath    string
	LockPath       string
}

// RunResult describes what an upgrade run decided and did.
type RunResult struct {
	Method         InstallMethod
	Channel        Channel
	CurrentVersion string
	TargetVersion  string

	// CheckOnly is set when --check short-circuited before any mutation.
	CheckOnly bool

	// UpToDate is set when the target equals the running version and
	// nothing forced an install.
	UpToDate bool

	// Migrated is set when a package-manager install switched to the
	// standalone binary (nightly is asset-only). UninstallHint names the
	// manager command that removes the old, possibly PATH-shadowing copy.
	Migrated      bool
	UninstallHint string

	// Outcome is non-nil when the caller must call FinishInstall.
	Outcome *Outcome

	// pinned marks an explicit exact-version request. Pinned assets always
	// come from their own release tag, never the rolling nightly tag.
	pinned bool
}

// Orchestrator sequences install-method detection, version resolution,
// locking, download, replacement, and the post-install setup re-exec.
type Orchestrator struct {
	version    string
	store      state.Store
	resolver   *Resolver
	runner     exec.CommandRunner
	detector   *Detector
	downloader *Downloader
	locks      *LockManager
	replacer   Replacer
	brew       *BrewUpgrader
	platform   Platform
	log        logger.Logger
	installDir func() string
	exePath    func() (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the debug logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithRunner sets the command runner used for probes, package-manager
// installs, and the setup re-exec.
func WithRunner(runner exec.CommandRunner) Option {
	return func(o *Orchestrator) { o.runner = runner }
}

// WithDetector sets the install-method detector.
func WithDetector(detector *Detector) Option {
	return func(o *Orchestrator) { o.detector = detector }
}

// WithDownloader sets the asset downloader.
func WithDownloader(downloader *Downloader) Option {
	return func(o *Orchestrator) { o.downloader = downloader }
}

// WithLockManager sets the lock manager.
func WithLockManager(locks *LockManager) Option {
	return func(o *Orchestrator) { o.locks = locks }
}

// WithReplacer sets the binary replacement strategy.
func WithReplacer(replacer Replacer) Option {
	return func(o *Orchestrator) { o.replacer = replacer }
}

// WithBrewUpgrader sets the homebrew delegate.
func WithBrewUpgrader(brew *BrewUpgrader) Option {
	return func(o *Orchestrator) { o.brew = brew }
}

// WithPlatform overrides platform detection (for testing).
func WithPlatform(platform Platform) Option {
	return func(o *Orchestrator) {
		o.platform = platform
		o.replacer = NewReplacer(platform)
	}
}

// WithInstallDirResolver overrides install-directory resolution (for testing).
func WithInstallDirResolver(resolve func() string) Option {
	return func(o *Orchestrator) { o.installDir = resolve }
}

// WithExecutablePath overrides running-executable resolution (for testing).
func WithExecutablePath(resolve func() (string, error)) Option {
	return func(o *Orchestrator) { o.exePath = resolve }
}

// NewOrchestrator creates an Orchestrator for the running CLI version.
func NewOrchestrator(
	version string,
	store state.Store,
	resolver *Resolver,
	opts ...Option,
) *Orchestrator {
	platform := DetectPlatform()

	o := &Orchestrator{
		version:    version,
		store:      store,
		resolver:   resolver,
		runner:     exec.NewCommandRunner(probeTimeout),
		downloader: NewDownloader(http.DefaultClient),
		locks:      NewLockManager(),
		replacer:   NewReplacer(platform),
		platform:   platform,
		log:        logger.NewNoOpLogger(),
		installDir: ResolveInstallDir,
		exePath:    currentBinaryPath,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.detector == nil {
		o.detector = NewDetector(o.runner)
	}

	if o.brew == nil {
		o.brew = NewBrewUpgrader(o.runner)
	}

	return o
}

// Run executes the upgrade state machine up to the point where either the
// installation is complete (package-manager paths) or a downloaded binary
// awaits FinishInstall (standalone paths, Outcome non-nil with the lock held).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	channel, channelChanged, err := o.resolveChannel(opts)
	if err != nil {
		return nil, err
	}

	method, err := o.resolveMethod(ctx, opts)
	if err != nil {
		return nil, err
	}

	o.log.Debug("upgrade context resolved",
		"channel", channel, "method", method, "channel_changed", channelChanged)

	pinned, err := pinnedVersion(opts.Target)
	if err != nil {
		return nil, err
	}

	if pinned != "" && method == InstallMethodBrew {
		return nil, errBrewVersionPin(pinned)
	}

	target := pinned
	if target == "" {
		target, err = o.resolver.FetchLatestVersion(ctx, method, channel)
		if err != nil {
			return nil, err
		}
	}

	result := &RunResult{
		Method:         method,
		Channel:        channel,
		CurrentVersion: o.version,
		TargetVersion:  target,
		pinned:         pinned != "",
	}

	if opts.Check {
		result.CheckOnly = true

		return result, nil
	}

	if target == o.version && !opts.Force && !channelChanged {
		result.UpToDate = true

		return result, nil
	}

	if pinned != "" {
		exists, existsErr := o.resolver.VersionExists(ctx, method, pinned)
		if existsErr != nil {
			return nil, existsErr
		}

		if !exists {
			return nil, NewError(KindVersionNotFound, "version %s not found", pinned).
				WithRemedy("run 'tkt upgrade --check' to see the latest available version")
		}
	}

	if channel == ChannelNightly && method.IsPackageManager() {
		return o.runChannelMigration(ctx, result)
	}

	return o.runStandard(ctx, result)
}

// FinishInstall completes a standalone install: atomic replacement, lock
// release (on every exit path), and the setup re-exec in the new binary.
func (o *Orchestrator) FinishInstall(ctx context.Context, result *RunResult) (err error) {
	outcome := result.Outcome
	if outcome == nil {
		return errors.New("no pending install to finish")
	}

	defer func() {
		if releaseErr := o.locks.Release(outcome.LockPath); releaseErr != nil && err == nil {
			err = WrapError(KindExecutionFailed, releaseErr, "releasing upgrade lock")
		}
	}()

	if replaceErr := o.replacer.Replace(outcome.TempBinaryPath, outcome.InstallPath); replaceErr != nil {
		return WrapError(KindExecutionFailed, replaceErr, "installing new binary")
	}

	o.log.Debug("binary replaced", "path", outcome.InstallPath, "version", result.TargetVersion)

	// Pin the install directory for the child so its own resolution cannot
	// disagree with the directory actually used.
	return o.spawnSetup(
		ctx,
		outcome.InstallPath,
		InstallMethodCurl,
		result.Channel,
		filepath.Dir(outcome.InstallPath),
	)
}

// resolveChannel applies the explicit channel selection (positional argument
// or flag), persisting it before any network call so the preference sticks
// even when the upgrade itself is skipped.
func (o *Orchestrator) resolveChannel(opts Options) (Channel, bool, error) {
	previous := Channel(o.store.Channel())

	requested := previous
	explicit := false

	if channel, ok := ParseChannel(opts.Target); ok {
		requested = channel
		explicit = true
	} else if opts.Channel != "" {
		channel, ok := ParseChannel(opts.Channel)
		if !ok {
			return "", false, NewError(
				KindUnsupportedOperation, "unknown channel %q", opts.Channel,
			).WithRemedy("valid channels are 'stable' and 'nightly'")
		}

		requested = channel
		explicit = true
	}

	if explicit {
		if err := o.store.SetChannel(string(requested)); err != nil {
			return "", false, WrapError(KindExecutionFailed, err, "persisting channel %s", requested)
		}
	}

	return requested, explicit && requested != previous, nil
}

// resolveMethod applies the explicit method override or runs detection.
func (o *Orchestrator) resolveMethod(ctx context.Context, opts Options) (InstallMethod, error) {
	if opts.Method != "" {
		method, ok := ParseInstallMethod(opts.Method)
		if !ok {
			return InstallMethodUnknown, NewError(
				KindUnknownMethod, "unknown install method %q", opts.Method,
			).WithRemedy("valid methods are curl, brew, npm, pnpm, bun and yarn")
		}

		return method, nil
	}

	method := o.detector.Detect(ctx)
	if method == InstallMethodUnknown {
		return InstallMethodUnknown, NewError(
			KindUnknownMethod, "could not determine how tkt was installed",
		).WithRemedy("re-run with --method curl|brew|npm|pnpm|bun|yarn")
	}

	return method, nil
}

// runChannelMigration handles nightly on a package-manager install: nightly
// is never published to a package registry, so the upgrade switches wholesale
// to the standalone binary, installed into the PATH-preference-resolved
// directory. The old manager-installed copy may still shadow the new one;
// the result carries the manager-specific uninstall hint.
func (o *Orchestrator) runChannelMigration(
	ctx context.Context,
	result *RunResult,
) (*RunResult, error) {
	dir := o.installDir()
	if err := os.MkdirAll(dir, installDirMode); err != nil {
		return nil, WrapError(KindExecutionFailed, err, "creating install directory %s", dir)
	}

	installPath := filepath.Join(dir, o.platform.BinaryName())

	if err := o.lockAndDownload(ctx, result, installPath); err != nil {
		return nil, err
	}

	result.Migrated = true
	result.UninstallHint = result.Method.UninstallHint()

	o.log.Info("channel migration prepared",
		"from", result.Method, "install_path", installPath)

	return result, nil
}

// runStandard handles the non-migration branches: standalone download for
// curl, delegation to the manager's own global install otherwise.
func (o *Orchestrator) runStandard(ctx context.Context, result *RunResult) (*RunResult, error) {
	if result.Method == InstallMethodCurl {
		exe, err := o.resolvedExePath()
		if err != nil {
			return nil, WrapError(KindExecutionFailed, err, "resolving running executable")
		}

		if err := o.lockAndDownload(ctx, result, exe); err != nil {
			return nil, err
		}

		return result, nil
	}

	if result.Method == InstallMethodBrew {
		if err := o.brew.Upgrade(ctx); err != nil {
			return nil, err
		}
	} else {
		cmd := result.Method.installCommand(result.TargetVersion)

		run := o.runner.RunInherited(ctx, nil, cmd[0], cmd[1:]...)
		if run.Failed() {
			if run.ExitCode != 0 {
				return nil, WrapError(
					KindExecutionFailed, run.Err,
					"%s install exited with code %d", result.Method, run.ExitCode,
				)
			}

			return nil, WrapError(
				KindExecutionFailed, run.Err, "running %s install", result.Method,
			)
		}
	}

	// The manager already placed the new binary at the running path; re-exec
	// it to finish its own setup.
	exe, err := o.exePath()
	if err != nil {
		return nil, WrapError(KindExecutionFailed, err, "resolving running executable")
	}

	if err := o.spawnSetup(ctx, exe, result.Method, result.Channel, ""); err != nil {
		return nil, err
	}

	return result, nil
}

// lockAndDownload acquires the PID lock for installPath and downloads the
// target asset to the temp path. On failure the lock is released; on success
// it stays held for FinishInstall.
func (o *Orchestrator) lockAndDownload(
	ctx context.Context,
	result *RunResult,
	installPath string,
) error {
	paths := PathsFor(installPath)

	if err := o.locks.Acquire(paths.Lock); err != nil {
		return mapLockError(err)
	}

	tag := tagFor(result.Channel, result.TargetVersion, result.pinned)
	asset := o.platform.AssetName()

	expected, err := o.fetchExpectedChecksum(ctx, tag, asset)
	if err != nil {
		_ = o.locks.Release(paths.Lock)

		return err
	}

	url := DownloadURL(tag, asset)

	o.log.Debug("downloading asset", "url", url, "temp", paths.Temp)

	if err := o.downloader.Download(ctx, url, paths.Temp); err != nil {
		_ = o.locks.Release(paths.Lock)

		return err
	}

	if verifyErr := VerifyFileChecksum(paths.Temp, expected); verifyErr != nil {
		_ = os.Remove(paths.Temp)
		_ = o.locks.Release(paths.Lock)

		return WrapError(KindExecutionFailed, verifyErr, "verifying %s", asset)
	}

	result.Outcome = &Outcome{
		TempBinaryPath: paths.Temp,
		InstallPath:    paths.Install,
		LockPath:       paths.Lock,
	}

	return nil
}

// fetchExpectedChecksum downloads the release's checksums file and looks up
// the digest for the platform asset. Every release publishes one; its absence
// is a broken release, not a skippable condition.
func (o *Orchestrator) fetchExpectedChecksum(
	ctx context.Context,
	tag, asset string,
) (string, error) {
	content, err := o.downloader.DownloadString(ctx, DownloadURL(tag, ChecksumsFile))
	if err != nil {
		return "", err
	}

	expected, ok := ParseChecksums(content)[asset]
	if !ok {
		return "", NewError(KindExecutionFailed, "no checksum for %s in release %s", asset, tag)
	}

	return expected, nil
}

// spawnSetup runs the freshly installed binary's setup subcommand with the
// caller's stdio. A non-zero exit fails the whole upgrade.
func (o *Orchestrator) spawnSetup(
	ctx context.Context,
	binaryPath string,
	method InstallMethod,
	channel Channel,
	pinInstallDir string,
) error {
	args := []string{
		"setup",
		"--method", method.String(),
		"--channel", string(channel),
		"--install",
	}

	var env []string
	if pinInstallDir != "" {
		env = append(env, InstallDirEnv+"="+pinInstallDir)
	}

	o.log.Debug("spawning setup", "binary", binaryPath, "method", method, "channel", channel)

	run := o.runner.RunInherited(ctx, env, binaryPath, args...)
	if run.Failed() {
		if run.ExitCode != 0 {
			return WrapError(
				KindExecutionFailed, run.Err,
				"setup exited with code %d", run.ExitCode,
			)
		}

		return WrapError(KindExecutionFailed, run.Err, "running setup")
	}

	return nil
}

// resolvedExePath returns the running executable with symlinks resolved.
func (o *Orchestrator) resolvedExePath() (string, error) {
	exe, err := o.exePath()
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return exe, nil
	}

	return resolved, nil
}

// tagFor maps a channel and version to the release tag holding its assets.
// Only an unpinned nightly target lives under the rolling tag; a pinned
// version is verified against its own tag and must be downloaded from it,
// whatever the channel.
func tagFor(channel Channel, version string, pinned bool) string {
	if channel == ChannelNightly && !pinned {
		return registry.NightlyTag
	}

	return "v" + version
}

// pinnedVersion extracts an exact requested version from the positional
// target. Channel names are not versions; anything else must parse as
// semver (leading "v" tolerated).
func pinnedVersion(target string) (string, error) {
	if target == "" {
		return "", nil
	}

	if _, ok := ParseChannel(target); ok {
		return "", nil
	}

	stripped := strings.TrimPrefix(target, "v")

	if _, err := semver.NewVersion(stripped); err != nil {
		return "", NewError(
			KindVersionNotFound,
			"invalid version %q: must be a version (e.g. 1.3.0) or a channel (stable, nightly)",
			target,
		)
	}

	return stripped, nil
}

// mapLockError converts lock-manager failures to the typed taxonomy.
func mapLockError(err error) error {
	if errors.Is(err, ErrUpgradeInProgress) {
		return WrapError(KindExecutionFailed, err, "upgrade already in progress").
			WithRemedy("wait for the other tkt process to finish and retry")
	}

	return WrapError(KindExecutionFailed, err, "acquiring upgrade lock")
}
