package statefiles

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"snapstate/pkg/files"
)

// MetadataSuffix is appended to a state file's path to name its sidecar.
const MetadataSuffix = ".metadata.json"

// Metadata is the sidecar record written next to each file item's state file.
// OriginalSize is the pre-encryption size so that a Restore can be checked
// against the source without decrypting.
type Metadata struct {
	Encrypted    bool      `json:"Encrypted"`
	OriginalSize int64     `json:"OriginalSize"`
	Timestamp    time.Time `json:"Timestamp"`
}

// MetadataPath returns the sidecar path for a state file path.
func MetadataPath(statePath string) string {
	return statePath + MetadataSuffix
}

// WriteMetadata writes the sidecar for statePath atomically.
func WriteMetadata(statePath string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := files.WriteAtomic(MetadataPath(statePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", statePath, err)
	}
	return nil
}

// ReadMetadata reads the sidecar for statePath. A missing sidecar is reported
// via os.IsNotExist on the wrapped error; callers treat it as an unencrypted
// legacy state file.
func ReadMetadata(statePath string) (*Metadata, error) {
	data, err := os.ReadFile(MetadataPath(statePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for %s: %w", statePath, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", statePath, err)
	}
	return &meta, nil
}
