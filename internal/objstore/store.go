// Package objstore wraps the real filesystem holding managed files and
// directories. It knows nothing about the metadata index.
package objstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

const (
	filePerm = 0644
	dirPerm  = 0755
)

// Store performs object-level operations on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New creates a store over the given filesystem.
func New(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOS creates a store over the host filesystem.
func NewOS() *Store {
	return New(afero.NewOsFs())
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// EnsureRoot creates the root directory if it does not exist.
func (s *Store) EnsureRoot(root string) error {
	if err := s.fs.MkdirAll(root, dirPerm); err != nil {
		return fmt.Errorf("failed to create root directory: %w", err)
	}
	return nil
}

// Exists reports whether any object exists at path.
func (s *Store) Exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return ok, nil
}

// IsDir reports whether path exists and is a directory.
func (s *Store) IsDir(path string) (bool, error) {
	ok, err := afero.DirExists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return ok, nil
}

// ReadBytes returns the content of the file at path.
func (s *Store) ReadBytes(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, wrap("read", path, err)
	}
	return data, nil
}

// WriteBytes creates or truncates the file at path and writes content.
func (s *Store) WriteBytes(path string, content []byte) error {
	if err := afero.WriteFile(s.fs, path, content, filePerm); err != nil {
		return wrap("write", path, err)
	}
	return nil
}

// DeleteObject removes the file at path.
func (s *Store) DeleteObject(path string) error {
	if err := s.fs.Remove(path); err != nil {
		return wrap("delete", path, err)
	}
	return nil
}

// ListChildren returns the names of the entries in dirPath, sorted.
func (s *Store) ListChildren(dirPath string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, dirPath)
	if err != nil {
		return nil, wrap("list", dirPath, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// CreateDirectory creates a single directory. The parent must exist.
func (s *Store) CreateDirectory(path string) error {
	if err := s.fs.Mkdir(path, dirPerm); err != nil {
		return wrap("mkdir", path, err)
	}
	return nil
}

// DeleteDirectory removes an empty directory.
func (s *Store) DeleteDirectory(path string) error {
	empty, err := afero.IsEmpty(s.fs, path)
	if err != nil {
		return wrap("rmdir", path, err)
	}
	if !empty {
		return types.NewPathError("rmdir", path, types.ErrNotEmpty)
	}
	if err := s.fs.Remove(path); err != nil {
		return wrap("rmdir", path, err)
	}
	return nil
}

// SetMode changes the permission bits of the object at path.
func (s *Store) SetMode(path string, mode os.FileMode) error {
	if err := s.fs.Chmod(path, mode); err != nil {
		return wrap("chmod", path, err)
	}
	return nil
}

// Mode returns the permission bits of the object at path.
func (s *Store) Mode(path string) (os.FileMode, error) {
	info, err := s.stat(path)
	if err != nil {
		return 0, err
	}
	return info.Mode().Perm(), nil
}

// Size returns the size in bytes of the object at path.
func (s *Store) Size(path string) (int64, error) {
	info, err := s.stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// LastModified returns the modification time of the object at path.
func (s *Store) LastModified(path string) (time.Time, error) {
	info, err := s.stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Stat returns the file info of the object at path.
func (s *Store) Stat(path string) (os.FileInfo, error) {
	return s.stat(path)
}

func (s *Store) stat(path string) (os.FileInfo, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, wrap("stat", path, err)
	}
	return info, nil
}

// wrap maps not-exist errors onto types.ErrNotFound and keeps the cause otherwise.
func wrap(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return types.NewPathError(op, path, types.ErrNotFound)
	}
	return fmt.Errorf("failed to %s %s: %w", op, path, err)
}
