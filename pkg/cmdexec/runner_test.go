package cmdexec

import (
	"context"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	runner := NewShellRunner(5 * time.Second)

	result, err := runner.Run(context.Background(), "echo hello world")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("Expected success, got exit code %d", result.ExitCode)
	}
	if result.TrimmedStdout() != "hello world" {
		t.Errorf("Expected stdout %q, got %q", "hello world", result.TrimmedStdout())
	}
}

func TestRunReportsExitCode(t *testing.T) {
	runner := NewShellRunner(5 * time.Second)

	result, err := runner.Run(context.Background(), "echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", result.ExitCode)
	}
	if result.Success() {
		t.Error("Expected Success() to be false for a non-zero exit")
	}
	if result.Stderr == "" {
		t.Error("Expected stderr to be captured")
	}
}

func TestRunWithStdin(t *testing.T) {
	runner := NewShellRunner(5 * time.Second)

	result, err := runner.RunWithStdin(context.Background(), "tr a-z A-Z", "piped input")
	if err != nil {
		t.Fatalf("RunWithStdin failed: %v", err)
	}
	if result.TrimmedStdout() != "PIPED INPUT" {
		t.Errorf("Expected stdout %q, got %q", "PIPED INPUT", result.TrimmedStdout())
	}
}

func TestRunTimeout(t *testing.T) {
	runner := NewShellRunner(100 * time.Millisecond)

	result, err := runner.Run(context.Background(), "sleep 5")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.TimedOut {
		t.Error("Expected the command to time out")
	}
	if result.Success() {
		t.Error("A timed-out command must not be successful")
	}
}

func TestRunEmptyCommand(t *testing.T) {
	runner := NewShellRunner(time.Second)

	if _, err := runner.Run(context.Background(), "   "); err == nil {
		t.Error("Expected an error for an empty command")
	}
}
