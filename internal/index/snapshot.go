package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// ErrCorruptSnapshot is returned by Snapshotter.Load when the stored data
// cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt index snapshot")

// Snapshotter reads and writes a complete copy of the index mapping.
type Snapshotter interface {
	// Load returns the stored mapping. A snapshot that does not exist yet
	// yields an empty mapping and no error.
	Load(ctx context.Context) (map[string]types.Entry, error)

	// Save replaces the stored mapping with entries.
	Save(ctx context.Context, entries map[string]types.Entry) error

	// Close releases any resources held by the backend.
	Close() error
}

// encodeSnapshot renders entries as the snapshot document:
// {"<path>": {"type": ..., "user": ..., "permissions": {...}}}.
func encodeSnapshot(entries map[string]types.Entry) ([]byte, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (map[string]types.Entry, error) {
	entries := make(map[string]types.Entry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return entries, nil
}

// MemorySnapshotter keeps the snapshot in memory.
// Useful for testing.
type MemorySnapshotter struct {
	data []byte
}

// NewMemorySnapshotter creates an empty in-memory snapshotter.
func NewMemorySnapshotter() *MemorySnapshotter {
	return &MemorySnapshotter{}
}

// Load decodes the last saved document.
func (m *MemorySnapshotter) Load(ctx context.Context) (map[string]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeSnapshot(m.data)
}

// Save stores an encoded copy of entries.
func (m *MemorySnapshotter) Save(ctx context.Context, entries map[string]types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// SetRaw replaces the stored document verbatim.
func (m *MemorySnapshotter) SetRaw(data []byte) {
	m.data = append([]byte(nil), data...)
}

// Close is a no-op.
func (m *MemorySnapshotter) Close() error {
	return nil
}

// Open returns the snapshotter for backend ("json" or "badger") at path.
// For badger, path names the database directory.
func Open(backend, path string) (Snapshotter, error) {
	switch backend {
	case "", "json":
		snap, err := NewJSONFile(path)
		if err != nil {
			return nil, err
		}
		return snap, nil
	case "badger":
		snap, err := NewBadgerSnapshotter(path)
		if err != nil {
			return nil, err
		}
		return snap, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}
