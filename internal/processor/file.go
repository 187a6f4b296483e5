package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"snapstate/internal/statefiles"
	"snapstate/internal/template"
	"snapstate/pkg/crypto"
	"snapstate/pkg/files"
	"snapstate/pkg/log"
)

// FileProcessor captures and applies a single file's content. Encrypt-flagged
// items route their payload through the encryption session; the sidecar
// metadata records whether the state file holds ciphertext and the
// pre-encryption size.
type FileProcessor struct {
	item       template.FileItem
	statePath  string
	encryption *Encryption
}

// NewFileProcessor binds a processor to one file item and its resolved state
// path.
func NewFileProcessor(item template.FileItem, statePath string, encryption *Encryption) *FileProcessor {
	return &FileProcessor{item: item, statePath: statePath, encryption: encryption}
}

// Capture reads the source file and persists it together with its sidecar
// metadata. A missing source yields no record. An encrypt-flagged item
// without a usable passphrase also yields no record at all: neither the state
// file nor the sidecar is written, and callers detect the condition through
// the absence.
func (p *FileProcessor) Capture(ctx context.Context) (bool, error) {
	raw, err := os.ReadFile(p.item.Path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Source file not found, skipping", "item", p.item.Name, "path", p.item.Path)
			return false, nil
		}
		return false, fmt.Errorf("failed to read source file %s: %w", p.item.Path, err)
	}

	payload := raw
	encrypted := false

	if p.item.Encrypt {
		if !p.encryption.Usable() {
			log.Warn("No usable passphrase for encrypted item, skipping", "item", p.item.Name)
			return false, nil
		}
		km, err := p.encryption.Session.DeriveKey(p.encryption.Passphrase)
		if err != nil {
			log.Warn("Key derivation failed for encrypted item, skipping", "item", p.item.Name, "error", err)
			return false, nil
		}
		encoded, err := crypto.Encrypt(raw, km)
		if err != nil {
			log.Warn("Encryption failed for item, skipping", "item", p.item.Name, "error", err)
			return false, nil
		}
		payload = []byte(encoded)
		encrypted = true
	}

	if err := files.WriteAtomic(p.statePath, payload, 0644); err != nil {
		return false, fmt.Errorf("failed to write state file %s: %w", p.statePath, err)
	}

	meta := statefiles.Metadata{
		Encrypted:    encrypted,
		OriginalSize: int64(len(raw)),
		Timestamp:    time.Now().UTC(),
	}
	if err := statefiles.WriteMetadata(p.statePath, meta); err != nil {
		return false, err
	}

	log.Debug("Captured file item", "item", p.item.Name, "path", p.item.Path, "encrypted", encrypted, "size", len(raw))
	return true, nil
}

// Apply restores the captured content to the item's source path, consulting
// the sidecar metadata to decide whether the payload needs decryption first.
// A decryption failure leaves the target untouched.
func (p *FileProcessor) Apply(ctx context.Context) error {
	payload, err := os.ReadFile(p.statePath)
	if err != nil {
		return fmt.Errorf("failed to read state file %s: %w", p.statePath, err)
	}

	// A missing sidecar means a legacy unencrypted state file.
	encrypted := false
	if meta, err := statefiles.ReadMetadata(p.statePath); err == nil {
		encrypted = meta.Encrypted
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	content := payload
	if encrypted {
		if !p.encryption.Usable() {
			return fmt.Errorf("state file %s is encrypted but no passphrase was provided", p.statePath)
		}
		plain, err := crypto.Decrypt(string(payload), p.encryption.Passphrase, p.encryption.Session)
		if err != nil {
			return fmt.Errorf("failed to decrypt state file %s: %w", p.statePath, err)
		}
		content = plain
	}

	if err := files.WriteAtomic(p.item.Path, content, 0644); err != nil {
		return fmt.Errorf("failed to restore file %s: %w", p.item.Path, err)
	}

	log.Debug("Applied file item", "item", p.item.Name, "path", p.item.Path, "encrypted", encrypted)
	return nil
}
