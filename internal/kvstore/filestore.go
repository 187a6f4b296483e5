package kvstore

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"snapstate/pkg/files"
)

// FileStore is a Store backed by a single YAML hive file on disk. The hive
// maps key paths to their named values:
//
//	user/environment:
//	  EDITOR: vim
//	  PAGER: less
//
// Reads are served from an in-memory copy loaded lazily from the hive file;
// every write rewrites the hive atomically so a crashed run never leaves a
// half-written hive behind.
type FileStore struct {
	mu      sync.RWMutex
	once    sync.Once
	loadErr error
	path    string
	hive    map[string]map[string]string
}

// NewFileStore creates a FileStore persisting to the given hive file path.
// The file does not need to exist yet; it is created on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// GetValues implements Store.
func (s *FileStore) GetValues(path string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	values, ok := s.hive[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
	}

	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

// GetValue implements Store.
func (s *FileStore) GetValue(path, name string) (string, error) {
	values, err := s.GetValues(path)
	if err != nil {
		return "", err
	}
	value, ok := values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s under %s", ErrValueNotFound, name, path)
	}
	return value, nil
}

// SetValues implements Store.
func (s *FileStore) SetValues(path string, values map[string]string) error {
	if len(values) == 0 {
		return fmt.Errorf("no values provided for key %s", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}

	key := normalizePath(path)
	existing, ok := s.hive[key]
	if !ok {
		existing = make(map[string]string, len(values))
		s.hive[key] = existing
	}
	for k, v := range values {
		existing[k] = v
	}

	return s.persist()
}

// KeyExists implements Store.
func (s *FileStore) KeyExists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureLoaded(); err != nil {
		return false
	}
	_, ok := s.hive[normalizePath(path)]
	return ok
}

// ensureLoaded reads the hive file into memory exactly once. A missing hive
// file is an empty hive, not an error.
func (s *FileStore) ensureLoaded() error {
	s.once.Do(func() {
		s.hive = make(map[string]map[string]string)

		data, err := os.ReadFile(s.path)
		if err != nil {
			if !os.IsNotExist(err) {
				s.loadErr = fmt.Errorf("failed to read hive file %s: %w", s.path, err)
			}
			return
		}

		if err := yaml.Unmarshal(data, &s.hive); err != nil {
			s.loadErr = fmt.Errorf("failed to parse hive file %s: %w", s.path, err)
			return
		}
		if s.hive == nil {
			s.hive = make(map[string]map[string]string)
		}
	})
	return s.loadErr
}

func (s *FileStore) persist() error {
	data, err := yaml.Marshal(s.hive)
	if err != nil {
		return fmt.Errorf("failed to marshal hive: %w", err)
	}
	if err := files.WriteAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write hive file: %w", err)
	}
	return nil
}

func normalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
