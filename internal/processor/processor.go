// Package processor implements the three state item processors (registry,
// file, application). Each processor is bound to a single template item and
// its resolved physical state path, and implements the common Capture/Apply
// contract the engine dispatches through.
package processor

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"snapstate/pkg/crypto"
	"snapstate/pkg/files"
)

// Category identifies a state item's kind in results and logs.
type Category string

const (
	CategoryRegistry    Category = "registry"
	CategoryFile        Category = "file"
	CategoryApplication Category = "application"
)

// Processor is the common contract. Capture reads system state into the
// item's state file and reports whether a record was produced: (false, nil)
// means the source was absent (or an encrypt-flagged item had no usable
// passphrase) and nothing was written. Apply reads the state file back and
// reapplies it to the system.
type Processor interface {
	Capture(ctx context.Context) (captured bool, err error)
	Apply(ctx context.Context) error
}

// Encryption carries the operation's encryption session and passphrase into
// processors that handle encrypt-flagged items. A nil Encryption or an empty
// passphrase means no usable passphrase is available.
type Encryption struct {
	Session    *crypto.Session
	Passphrase string
}

// Usable reports whether encryption material can be derived.
func (e *Encryption) Usable() bool {
	return e != nil && e.Session != nil && e.Passphrase != ""
}

// writeRecord marshals a structured record to YAML and writes it atomically.
func writeRecord(statePath string, record any) error {
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal state record: %w", err)
	}
	if err := files.WriteAtomic(statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", statePath, err)
	}
	return nil
}

// readRecord reads and unmarshals a structured YAML record.
func readRecord(statePath string, record any) error {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return fmt.Errorf("failed to read state file %s: %w", statePath, err)
	}
	if err := yaml.Unmarshal(data, record); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", statePath, err)
	}
	return nil
}
