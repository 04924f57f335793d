// Package exec provides abstractions for executing external commands.
package exec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
)

// CommandResult contains the outcome of a command execution.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Err is non-nil when the command failed to spawn, was cancelled,
	// or exited non-zero.
	Err error
}

// Success reports whether the command ran and exited zero.
func (r CommandResult) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failed reports whether the command failed to spawn or exited non-zero.
func (r CommandResult) Failed() bool {
	return !r.Success()
}

// CommandRunner executes external commands.
type CommandRunner interface {
	// Run executes a command with captured stdout/stderr.
	Run(ctx context.Context, name string, args ...string) CommandResult

	// RunInherited executes a command with the caller's stdio attached.
	// extraEnv entries ("KEY=value") are appended to the current environment.
	RunInherited(ctx context.Context, extraEnv []string, name string, args ...string) CommandResult
}

// commandRunner implements CommandRunner.
type commandRunner struct {
	defaultTimeout time.Duration
}

// NewCommandRunner creates a new CommandRunner with the given default timeout.
// A zero timeout disables the default deadline.
func NewCommandRunner(defaultTimeout time.Duration) CommandRunner {
	return &commandRunner{defaultTimeout: defaultTimeout}
}

// Run executes a command and captures its output.
func (r *commandRunner) Run(ctx context.Context, name string, args ...string) CommandResult {
	if r.defaultTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return buildResult(stdout.String(), stderr.String(), name, err)
}

// RunInherited executes a command wired to the caller's stdin/stdout/stderr.
func (*commandRunner) RunInherited(
	ctx context.Context,
	extraEnv []string,
	name string,
	args ...string,
) CommandResult {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	err := cmd.Run()

	return buildResult("", "", name, err)
}

// buildResult maps an os/exec error to a CommandResult.
func buildResult(stdout, stderr, name string, err error) CommandResult {
	result := CommandResult{
		Stdout: stdout,
		Stderr: stderr,
	}

	var exitErr *exec.ExitError

	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Err = err
	default:
		result.Err = errors.Wrapf(err, "executing %s", name)
	}

	return result
}
