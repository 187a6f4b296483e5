package processor

import (
	"context"
	"errors"
	"fmt"

	"snapstate/internal/kvstore"
	"snapstate/internal/template"
	"snapstate/pkg/log"
)

// registryRecord is the structured state file for a registry item: the key
// path and the named values captured under it as a unit.
type registryRecord struct {
	Path   string            `yaml:"path"`
	Values map[string]string `yaml:"values"`
}

// RegistryProcessor captures and applies named values under a key path in
// the key/value store.
type RegistryProcessor struct {
	item      template.RegistryItem
	statePath string
	store     kvstore.Store
}

// NewRegistryProcessor binds a processor to one registry item and its
// resolved state path.
func NewRegistryProcessor(item template.RegistryItem, statePath string, store kvstore.Store) *RegistryProcessor {
	return &RegistryProcessor{item: item, statePath: statePath, store: store}
}

// Capture reads the item's values from the store and persists them. A key or
// value that does not exist yields no record rather than failing the run.
func (p *RegistryProcessor) Capture(ctx context.Context) (bool, error) {
	var values map[string]string

	if p.item.KeyName != "" {
		value, err := p.store.GetValue(p.item.Path, p.item.KeyName)
		if err != nil {
			if errors.Is(err, kvstore.ErrKeyNotFound) || errors.Is(err, kvstore.ErrValueNotFound) {
				log.Warn("Registry value not found, skipping", "item", p.item.Name, "path", p.item.Path, "key", p.item.KeyName)
				return false, nil
			}
			return false, fmt.Errorf("failed to read registry value: %w", err)
		}
		values = map[string]string{p.item.KeyName: value}
	} else {
		all, err := p.store.GetValues(p.item.Path)
		if err != nil {
			if errors.Is(err, kvstore.ErrKeyNotFound) {
				log.Warn("Registry key not found, skipping", "item", p.item.Name, "path", p.item.Path)
				return false, nil
			}
			return false, fmt.Errorf("failed to read registry key: %w", err)
		}
		values = all
	}

	record := registryRecord{Path: p.item.Path, Values: values}
	if err := writeRecord(p.statePath, &record); err != nil {
		return false, err
	}

	log.Debug("Captured registry item", "item", p.item.Name, "path", p.item.Path, "values", len(values))
	return true, nil
}

// Apply writes the captured values back to the store, creating the key path
// if it is absent.
func (p *RegistryProcessor) Apply(ctx context.Context) error {
	var record registryRecord
	if err := readRecord(p.statePath, &record); err != nil {
		return err
	}
	if len(record.Values) == 0 {
		return fmt.Errorf("state file %s holds no values", p.statePath)
	}

	if err := p.store.SetValues(p.item.Path, record.Values); err != nil {
		return fmt.Errorf("failed to write registry key %s: %w", p.item.Path, err)
	}

	log.Debug("Applied registry item", "item", p.item.Name, "path", p.item.Path, "values", len(record.Values))
	return nil
}
