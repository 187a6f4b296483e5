// Package cmdexec wraps external command execution behind a small interface
// so that callers can capture output, enforce timeouts, and substitute a fake
// runner in tests without touching real OS state.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured outcome of a single command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Success reports whether the command completed within its deadline with a
// zero exit code.
func (r *Result) Success() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// TrimmedStdout returns stdout with surrounding whitespace removed.
func (r *Result) TrimmedStdout() string {
	return strings.TrimSpace(r.Stdout)
}

// Runner executes external commands.
type Runner interface {
	// Run executes command through the shell and captures stdout, stderr and
	// the exit code. A non-zero exit code is reported via Result, not as an
	// error; the returned error indicates the command could not be run at all.
	Run(ctx context.Context, command string) (*Result, error)

	// RunWithStdin behaves like Run with the provided string piped to the
	// command's standard input.
	RunWithStdin(ctx context.Context, command, stdin string) (*Result, error)
}

// ShellRunner runs commands via "sh -c" with a per-invocation timeout.
type ShellRunner struct {
	// Timeout bounds each invocation. Zero means no timeout beyond the
	// caller's context.
	Timeout time.Duration
}

// NewShellRunner creates a ShellRunner with the given timeout.
func NewShellRunner(timeout time.Duration) *ShellRunner {
	return &ShellRunner{Timeout: timeout}
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, command string) (*Result, error) {
	return r.run(ctx, command, "")
}

// RunWithStdin implements Runner.
func (r *ShellRunner) RunWithStdin(ctx context.Context, command, stdin string) (*Result, error) {
	return r.run(ctx, command, stdin)
}

func (r *ShellRunner) run(ctx context.Context, command, stdin string) (*Result, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("empty command")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to run command: %w", err)
	}

	result.ExitCode = 0
	return result, nil
}
