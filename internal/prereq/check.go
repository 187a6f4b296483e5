// Package prereq evaluates a template's prerequisites before an operation is
// allowed to proceed. Each prerequisite type is its own Check implementation;
// a check failure of any kind counts as "unmet" and never escapes the
// evaluator.
package prereq

import (
	"context"
	"fmt"
	"os"

	"snapstate/internal/kvstore"
	"snapstate/internal/template"
	"snapstate/pkg/cmdexec"
)

// Check is a single evaluable prerequisite.
type Check interface {
	// Name returns the prerequisite's declared name.
	Name() string
	// Policy returns what happens when the check is unmet.
	Policy() template.MissingPolicy
	// Evaluate returns nil when the prerequisite is met, or an error
	// describing why it is not.
	Evaluate(ctx context.Context) error
}

// scriptCheck runs a shell script and optionally compares its trimmed output
// against an expected value by exact string equality.
type scriptCheck struct {
	spec   template.PrerequisiteSpec
	runner cmdexec.Runner
}

func (c *scriptCheck) Name() string                   { return c.spec.Name }
func (c *scriptCheck) Policy() template.MissingPolicy { return c.spec.OnMissing }

func (c *scriptCheck) Evaluate(ctx context.Context) error {
	command := c.spec.InlineScript
	if command == "" {
		command = fmt.Sprintf("sh %q", c.spec.Path)
	}

	result, err := c.runner.Run(ctx, command)
	if err != nil {
		return fmt.Errorf("script failed to run: %w", err)
	}
	if result.TimedOut {
		return fmt.Errorf("script timed out")
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("script exited with code %d", result.ExitCode)
	}
	if c.spec.ExpectedOutput != "" {
		actual := result.TrimmedStdout()
		if actual != c.spec.ExpectedOutput {
			return fmt.Errorf("script output %q does not match expected %q", actual, c.spec.ExpectedOutput)
		}
	}
	return nil
}

// registryCheck verifies a key path exists in the key/value store.
type registryCheck struct {
	spec  template.PrerequisiteSpec
	store kvstore.Store
}

func (c *registryCheck) Name() string                   { return c.spec.Name }
func (c *registryCheck) Policy() template.MissingPolicy { return c.spec.OnMissing }

func (c *registryCheck) Evaluate(ctx context.Context) error {
	if !c.store.KeyExists(c.spec.Path) {
		return fmt.Errorf("registry key %s does not exist", c.spec.Path)
	}
	return nil
}

// fileCheck verifies a path exists on disk.
type fileCheck struct {
	spec template.PrerequisiteSpec
}

func (c *fileCheck) Name() string                   { return c.spec.Name }
func (c *fileCheck) Policy() template.MissingPolicy { return c.spec.OnMissing }

func (c *fileCheck) Evaluate(ctx context.Context) error {
	if _, err := os.Stat(c.spec.Path); err != nil {
		return fmt.Errorf("file %s not found: %w", c.spec.Path, err)
	}
	return nil
}

// applicationCheck verifies a command is installed and resolvable.
type applicationCheck struct {
	spec   template.PrerequisiteSpec
	runner cmdexec.Runner
}

func (c *applicationCheck) Name() string                   { return c.spec.Name }
func (c *applicationCheck) Policy() template.MissingPolicy { return c.spec.OnMissing }

func (c *applicationCheck) Evaluate(ctx context.Context) error {
	result, err := c.runner.Run(ctx, fmt.Sprintf("command -v %q", c.spec.Path))
	if err != nil {
		return fmt.Errorf("application lookup failed: %w", err)
	}
	if !result.Success() {
		return fmt.Errorf("application %s is not installed", c.spec.Path)
	}
	return nil
}

// serviceCheck verifies a system service is active.
type serviceCheck struct {
	spec   template.PrerequisiteSpec
	runner cmdexec.Runner
}

func (c *serviceCheck) Name() string                   { return c.spec.Name }
func (c *serviceCheck) Policy() template.MissingPolicy { return c.spec.OnMissing }

func (c *serviceCheck) Evaluate(ctx context.Context) error {
	result, err := c.runner.Run(ctx, fmt.Sprintf("systemctl is-active %q", c.spec.Path))
	if err != nil {
		return fmt.Errorf("service lookup failed: %w", err)
	}
	if result.TimedOut {
		return fmt.Errorf("service lookup timed out")
	}
	if result.TrimmedStdout() != "active" {
		return fmt.Errorf("service %s is not active", c.spec.Path)
	}
	return nil
}
