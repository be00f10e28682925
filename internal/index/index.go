// Package index provides the metadata index: a path-keyed mapping of
// entries mirrored to a persistent snapshot.
package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// Index is the in-memory mapping from canonical path to entry.
type Index struct {
	mu      sync.RWMutex
	entries map[string]types.Entry
	snap    Snapshotter
	strict  bool
}

// Option configures an Index.
type Option func(*Index)

// WithStrict makes Load fail on a corrupt snapshot or an invalid record
// instead of skipping it.
func WithStrict(strict bool) Option {
	return func(idx *Index) {
		idx.strict = strict
	}
}

// New creates an empty index backed by snap.
func New(snap Snapshotter, opts ...Option) *Index {
	idx := &Index{
		entries: make(map[string]types.Entry),
		snap:    snap,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Get returns the entry for path.
func (idx *Index) Get(path string) (types.Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok := idx.entries[path]
	return entry, ok
}

// Put inserts or replaces the entry keyed by entry.Path.
func (idx *Index) Put(entry types.Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[entry.Path] = entry
}

// Remove deletes the entry for path.
func (idx *Index) Remove(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[path]; !ok {
		return types.NewPathError("remove entry", path, types.ErrNotFound)
	}
	delete(idx.entries, path)
	return nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// Entries returns a copy of all entries sorted by path.
func (idx *Index) Entries() []types.Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]types.Entry, 0, len(idx.entries))
	for _, entry := range idx.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

// Load replaces the whole mapping with the snapshot contents.
func (idx *Index) Load(ctx context.Context) error {
	raw, err := idx.snap.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptSnapshot) && !idx.strict {
			logging.Warn("Index snapshot is corrupt, starting with an empty index", logging.Err(err))
			raw = nil
		} else {
			return fmt.Errorf("failed to load index: %w", err)
		}
	}

	entries := make(map[string]types.Entry, len(raw))
	for path, entry := range raw {
		entry.Path = path
		if err := validateEntry(entry); err != nil {
			if idx.strict {
				return fmt.Errorf("failed to load index: %w", err)
			}
			logging.Warn("Skipping invalid index record",
				logging.String("path", path),
				logging.Err(err),
			)
			continue
		}
		entries[path] = entry
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
	return nil
}

// Persist writes the whole mapping to the snapshot.
func (idx *Index) Persist(ctx context.Context) error {
	idx.mu.RLock()
	entries := make(map[string]types.Entry, len(idx.entries))
	for path, entry := range idx.entries {
		entries[path] = entry
	}
	idx.mu.RUnlock()

	if err := idx.snap.Save(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}

// Close releases the snapshot backend.
func (idx *Index) Close() error {
	return idx.snap.Close()
}

func validateEntry(entry types.Entry) error {
	switch {
	case !filepath.IsAbs(entry.Path):
		return fmt.Errorf("%w: key %q is not an absolute path", ErrInvalidRecord, entry.Path)
	case !entry.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, entry.Type)
	case entry.Owner == "":
		return fmt.Errorf("%w: empty owner", ErrInvalidRecord)
	}
	return nil
}

// ErrInvalidRecord marks a snapshot record that fails validation.
var ErrInvalidRecord = errors.New("invalid index record")
