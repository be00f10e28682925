// Package fs provides path resolution, permission evaluation and a read-only
// FUSE view over the managed tree.
package fs

import (
	"path/filepath"
	"strings"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// Resolver turns user-supplied paths into canonical index keys.
type Resolver struct {
	root string
}

// NewResolver creates a resolver anchored at root. A relative root is
// cleaned but left relative; callers normalize it at startup.
func NewResolver(root string) *Resolver {
	return &Resolver{root: filepath.Clean(root)}
}

// Root returns the configured root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the canonical path for raw. Absolute paths are kept,
// relative ones are joined to the root. Both are cleaned.
func (r *Resolver) Resolve(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", types.NewPathError("resolve", "", types.ErrInvalidArgument)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), nil
	}
	return filepath.Join(r.root, raw), nil
}

// Parent returns the canonical parent of a canonical path.
func Parent(canonical string) string {
	return filepath.Dir(canonical)
}
