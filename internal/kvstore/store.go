// Package kvstore provides the registry-like key/value store consumed by the
// registry state item processor and the registry prerequisite check. Keys are
// slash-separated paths, each holding a set of named string values.
package kvstore

import "errors"

// ErrKeyNotFound is returned when a key path does not exist in the store.
var ErrKeyNotFound = errors.New("key not found")

// ErrValueNotFound is returned when a key path exists but does not hold the
// requested named value.
var ErrValueNotFound = errors.New("value not found")

// Store is the key/value store abstraction.
type Store interface {
	// GetValues returns all named values under the key path.
	// Returns ErrKeyNotFound when the path does not exist.
	GetValues(path string) (map[string]string, error)

	// GetValue returns a single named value under the key path.
	GetValue(path, name string) (string, error)

	// SetValues writes the given named values under the key path, creating
	// the key path if it does not exist. Existing values with the same names
	// are overwritten; other values under the path are left untouched.
	SetValues(path string, values map[string]string) error

	// KeyExists reports whether the key path exists.
	KeyExists(path string) bool
}
