// Package statefiles maps an item's logical dynamic state path to a physical
// file under a caller-supplied root, and persists the sidecar metadata and
// structured records stored there.
package statefiles

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Resolver turns relative, slash-separated dynamic state paths into absolute
// paths under a single state-files root. A given dynamic state path always
// resolves to the same physical file for the same root, which is what
// correlates a Backup artifact with a later Restore.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver for the given state-files root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the state-files root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the physical path for a dynamic state path. Absolute paths
// and paths escaping the root via ".." are rejected so that distinct items
// can never collide outside the root.
func (r *Resolver) Resolve(dynamicStatePath string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(dynamicStatePath))
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("empty dynamic state path")
	}
	if path.IsAbs(cleaned) {
		return "", fmt.Errorf("dynamic state path %q must be relative", dynamicStatePath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("dynamic state path %q escapes the state root", dynamicStatePath)
	}

	return filepath.Join(r.root, filepath.FromSlash(cleaned)), nil
}
