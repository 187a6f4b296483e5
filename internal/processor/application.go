package processor

import (
	"context"
	"fmt"
	"strings"

	"snapstate/internal/config"
	tmpl "snapstate/internal/template"
	"snapstate/pkg/cmdexec"
	"snapstate/pkg/log"
	"snapstate/pkg/template"
)

// Entry is one normalized application inventory entry.
type Entry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// applicationRecord is the structured state file for an application item.
type applicationRecord struct {
	Source  string  `yaml:"source,omitempty"`
	Entries []Entry `yaml:"entries"`
}

// ApplicationProcessor captures and applies application inventories. Standard
// items enumerate installed packages through the configured package-manager
// query filtered by the item's source identifier; custom items run the item's
// discovery command and normalize its raw output through the item's parse
// script.
type ApplicationProcessor struct {
	item      tmpl.ApplicationItem
	statePath string
	runner    cmdexec.Runner
	pm        config.PackageManagerConfig
}

// NewApplicationProcessor binds a processor to one application item and its
// resolved state path.
func NewApplicationProcessor(item tmpl.ApplicationItem, statePath string, runner cmdexec.Runner, pm config.PackageManagerConfig) *ApplicationProcessor {
	return &ApplicationProcessor{item: item, statePath: statePath, runner: runner, pm: pm}
}

// Capture enumerates the item's application entries and persists them. An
// inventory with no matching entries yields no record.
func (p *ApplicationProcessor) Capture(ctx context.Context) (bool, error) {
	var (
		entries []Entry
		err     error
	)

	switch p.item.Type {
	case tmpl.AppStandard:
		entries, err = p.captureStandard(ctx)
	case tmpl.AppCustom:
		entries, err = p.captureCustom(ctx)
	default:
		return false, fmt.Errorf("unknown application type %q", string(p.item.Type))
	}
	if err != nil {
		return false, err
	}

	if len(entries) == 0 {
		log.Warn("No application entries discovered, skipping", "item", p.item.Name)
		return false, nil
	}

	record := applicationRecord{Source: p.item.Source, Entries: entries}
	if err := writeRecord(p.statePath, &record); err != nil {
		return false, err
	}

	log.Debug("Captured application item", "item", p.item.Name, "entries", len(entries))
	return true, nil
}

// captureStandard runs the package-manager list command and filters its
// output by the item's source identifier.
func (p *ApplicationProcessor) captureStandard(ctx context.Context) ([]Entry, error) {
	result, err := p.runner.Run(ctx, p.pm.ListCommand)
	if err != nil {
		return nil, fmt.Errorf("package query failed to run: %w", err)
	}
	if result.TimedOut {
		return nil, fmt.Errorf("package query timed out")
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("package query exited with code %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	var entries []Entry
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		id := strings.TrimSpace(fields[0])
		if id == "" {
			continue
		}
		if p.item.Source != "" && !strings.Contains(id, p.item.Source) {
			continue
		}
		entry := Entry{ID: id, Name: id}
		if len(fields) == 2 {
			entry.Version = strings.TrimSpace(fields[1])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// captureCustom runs the discovery command and pipes its raw output through
// the parse script, which must emit one entry per line as
// "id<TAB>name<TAB>version" (name and version optional).
func (p *ApplicationProcessor) captureCustom(ctx context.Context) ([]Entry, error) {
	discovered, err := p.runner.Run(ctx, p.item.DiscoveryCommand)
	if err != nil {
		return nil, fmt.Errorf("discovery command failed to run: %w", err)
	}
	if discovered.TimedOut {
		return nil, fmt.Errorf("discovery command timed out")
	}
	if discovered.ExitCode != 0 {
		return nil, fmt.Errorf("discovery command exited with code %d: %s", discovered.ExitCode, strings.TrimSpace(discovered.Stderr))
	}

	parsed, err := p.runner.RunWithStdin(ctx, p.item.ParseScript, discovered.Stdout)
	if err != nil {
		return nil, fmt.Errorf("parse script failed to run: %w", err)
	}
	if parsed.TimedOut {
		return nil, fmt.Errorf("parse script timed out")
	}
	if parsed.ExitCode != 0 {
		return nil, fmt.Errorf("parse script exited with code %d: %s", parsed.ExitCode, strings.TrimSpace(parsed.Stderr))
	}

	var entries []Entry
	for _, line := range strings.Split(parsed.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		entry := Entry{ID: strings.TrimSpace(fields[0])}
		if entry.ID == "" {
			continue
		}
		entry.Name = entry.ID
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			entry.Name = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			entry.Version = strings.TrimSpace(fields[2])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Apply issues the install command for every recorded entry, continuing past
// per-entry failures and aggregating them. Custom items without an install
// command are discovery-only and apply as a no-op.
func (p *ApplicationProcessor) Apply(ctx context.Context) error {
	var record applicationRecord
	if err := readRecord(p.statePath, &record); err != nil {
		return err
	}

	commandTemplate := p.item.InstallCommand
	if commandTemplate == "" && p.item.Type == tmpl.AppStandard {
		commandTemplate = p.pm.InstallCommand
	}
	if commandTemplate == "" {
		log.Debug("Application item has no install command, nothing to apply", "item", p.item.Name)
		return nil
	}

	var failures []string
	applied := 0
	for _, entry := range record.Entries {
		command, err := template.Substitute(commandTemplate, map[string]string{
			"id":      entry.ID,
			"name":    entry.Name,
			"version": entry.Version,
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", entry.ID, err))
			continue
		}

		result, err := p.runner.Run(ctx, command)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", entry.ID, err))
			continue
		}
		if result.TimedOut {
			failures = append(failures, fmt.Sprintf("%s: install timed out", entry.ID))
			continue
		}
		if result.ExitCode != 0 {
			failures = append(failures, fmt.Sprintf("%s: install exited with code %d", entry.ID, result.ExitCode))
			continue
		}
		applied++
	}

	log.Debug("Applied application item", "item", p.item.Name, "applied", applied, "failed", len(failures))

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d entries failed to apply: %s", len(failures), len(record.Entries), strings.Join(failures, "; "))
	}
	return nil
}
