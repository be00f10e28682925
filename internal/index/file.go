package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// JSONFile stores the snapshot as a single JSON document. Writes go to a
// temporary file that is renamed over the target, and both reads and
// writes hold a flock on "<path>.lock".
type JSONFile struct {
	path     string
	lockPath string
}

// NewJSONFile creates a JSON file snapshotter at path, creating the
// parent directory if needed.
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("snapshot path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &JSONFile{
		path:     path,
		lockPath: path + ".lock",
	}, nil
}

// Path returns the snapshot file location.
func (j *JSONFile) Path() string {
	return j.path
}

// Load reads and decodes the snapshot under a shared lock.
func (j *JSONFile) Load(ctx context.Context) (map[string]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock, err := acquireLock(j.lockPath, false)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]types.Entry), nil
		}
		return nil, fmt.Errorf("failed to read index snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// Save encodes entries and atomically replaces the snapshot under an
// exclusive lock.
func (j *JSONFile) Save(ctx context.Context, entries map[string]types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	lock, err := acquireLock(j.lockPath, true)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := atomicwriter.WriteFile(j.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write index snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; locks are only held for the duration of a call.
func (j *JSONFile) Close() error {
	return nil
}
