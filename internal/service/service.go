// Package service implements the file manager operations. Each operation
// resolves the path, consults the metadata index and the permission rules,
// performs the real filesystem work and keeps the index in step with it.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ajaxzhan/filekeeper/internal/fs"
	"github.com/ajaxzhan/filekeeper/internal/index"
	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/internal/metrics"
	"github.com/ajaxzhan/filekeeper/internal/objstore"
	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// FileSystem is the operation surface shared by the local service and the
// remote client.
type FileSystem interface {
	CreateFile(ctx context.Context, path string, content []byte, user string) error
	ReadFile(ctx context.Context, path, user string) ([]byte, error)
	WriteFile(ctx context.Context, path string, content []byte, user string) error
	DeleteFile(ctx context.Context, path, user string) error
	CreateDirectory(ctx context.Context, path, user string) error
	DeleteDirectory(ctx context.Context, path, user string) error
	ChangePermission(ctx context.Context, path string, mode os.FileMode, user string) error
	ListDirectory(ctx context.Context, path, user string) ([]string, error)
	DisplayIndex(ctx context.Context, user string) ([]types.EntryView, error)
}

// Service owns the index and serializes every operation on it.
type Service struct {
	mu       sync.Mutex
	resolver *fs.Resolver
	index    *index.Index
	store    *objstore.Store
	perms    fs.PermissionEvaluator
	metrics  *metrics.Metrics
}

var _ FileSystem = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New assembles a service from its collaborators. The index is expected
// to be loaded already.
func New(resolver *fs.Resolver, idx *index.Index, store *objstore.Store, perms fs.PermissionEvaluator, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		index:    idx,
		store:    store,
		perms:    perms,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetIndexEntries(idx.Len())
	return s
}

// CreateFile writes a new file and records it in the index.
func (s *Service) CreateFile(ctx context.Context, path string, content []byte, user string) (err error) {
	defer s.record("create_file", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return err
	}
	if err := s.requireAbsent(p); err != nil {
		return err
	}
	if err := s.requireParent(p); err != nil {
		return err
	}

	if err := s.store.WriteBytes(p, content); err != nil {
		return err
	}

	entry := types.Entry{
		Path:        p,
		Type:        types.TypeFile,
		Owner:       user,
		Permissions: fs.DefaultPermissions(s.perms, user),
	}
	s.index.Put(entry)

	if err := s.persist(ctx); err != nil {
		s.rollback("create_file", p, func() error {
			s.index.Remove(p)
			return s.store.DeleteObject(p)
		})
		return err
	}

	logging.Debug("File created", logging.String("path", p), logging.String("user", user))
	return nil
}

// ReadFile returns the content of a tracked file.
func (s *Service) ReadFile(ctx context.Context, path, user string) (data []byte, err error) {
	defer s.record("read_file", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return nil, err
	}
	entry, err := s.requireFile(p)
	if err != nil {
		return nil, err
	}
	if err := s.perms.CheckRead(entry, user); err != nil {
		return nil, err
	}

	return s.store.ReadBytes(p)
}

// WriteFile overwrites the content of a tracked file. The index is not
// touched.
func (s *Service) WriteFile(ctx context.Context, path string, content []byte, user string) (err error) {
	defer s.record("write_file", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return err
	}
	entry, err := s.requireFile(p)
	if err != nil {
		return err
	}
	if err := s.perms.CheckWrite(entry, user); err != nil {
		return err
	}

	if err := s.store.WriteBytes(p, content); err != nil {
		return err
	}

	logging.Debug("File written", logging.String("path", p), logging.String("user", user))
	return nil
}

// DeleteFile removes a tracked file and its entry.
func (s *Service) DeleteFile(ctx context.Context, path, user string) (err error) {
	defer s.record("delete_file", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return err
	}
	entry, err := s.requireFile(p)
	if err != nil {
		return err
	}
	if err := s.perms.CheckWrite(entry, user); err != nil {
		return err
	}

	if err := s.removeEntry(ctx, "delete_file", entry, s.store.DeleteObject); err != nil {
		return err
	}

	logging.Debug("File deleted", logging.String("path", p), logging.String("user", user))
	return nil
}

// CreateDirectory creates a directory whose parent already exists.
func (s *Service) CreateDirectory(ctx context.Context, path, user string) (err error) {
	defer s.record("create_directory", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return err
	}
	if err := s.requireAbsent(p); err != nil {
		return err
	}
	if err := s.requireParent(p); err != nil {
		return err
	}

	if err := s.store.CreateDirectory(p); err != nil {
		return err
	}

	entry := types.Entry{
		Path:        p,
		Type:        types.TypeDirectory,
		Owner:       user,
		Permissions: fs.DefaultPermissions(s.perms, user),
	}
	s.index.Put(entry)

	if err := s.persist(ctx); err != nil {
		s.rollback("create_directory", p, func() error {
			s.index.Remove(p)
			return s.store.DeleteDirectory(p)
		})
		return err
	}

	logging.Debug("Directory created", logging.String("path", p), logging.String("user", user))
	return nil
}

// DeleteDirectory removes an empty tracked directory and its entry.
func (s *Service) DeleteDirectory(ctx context.Context, path, user string) (err error) {
	defer s.record("delete_directory", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return err
	}

	isDir, err := s.store.IsDir(p)
	if err != nil {
		return err
	}
	if !isDir {
		return types.NewPathError("delete directory", p, types.ErrNotFound)
	}
	children, err := s.store.ListChildren(p)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return types.NewPathError("delete directory", p, types.ErrNotEmpty)
	}
	entry, ok := s.index.Get(p)
	if !ok || !entry.IsDir() {
		return types.NewPathError("delete directory", p, types.ErrNotFound)
	}
	if err := s.perms.CheckWrite(entry, user); err != nil {
		return err
	}

	if err := s.removeEntry(ctx, "delete_directory", entry, s.store.DeleteDirectory); err != nil {
		return err
	}

	logging.Debug("Directory deleted", logging.String("path", p), logging.String("user", user))
	return nil
}

// ChangePermission applies mode to the object and derives the entry's
// flags from it. Only the owner may do this. Directory entries accept it
// too, since their read flag gates ListDirectory.
func (s *Service) ChangePermission(ctx context.Context, path string, mode os.FileMode, user string) (err error) {
	defer s.record("change_permission", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return err
	}
	if mode&^os.ModePerm != 0 {
		return types.NewPathError("change permissions", p, types.ErrInvalidArgument)
	}

	entry, ok := s.index.Get(p)
	if !ok {
		return types.NewPathError("change permissions", p, types.ErrNotFound)
	}
	exists, err := s.store.Exists(p)
	if err != nil {
		return err
	}
	if !exists {
		return types.NewPathError("change permissions", p, types.ErrNotFound)
	}
	if err := s.perms.CheckChangeMode(entry, user); err != nil {
		return err
	}

	previousMode, err := s.store.Mode(p)
	if err != nil {
		return err
	}
	if err := s.store.SetMode(p, EffectiveMode(mode, entry.Type)); err != nil {
		return err
	}

	previous := entry
	entry.Permissions = FlagsFromMode(mode)
	s.index.Put(entry)

	if err := s.persist(ctx); err != nil {
		s.rollback("change_permission", p, func() error {
			s.index.Put(previous)
			return s.store.SetMode(p, previousMode)
		})
		return err
	}

	logging.Debug("Permissions changed",
		logging.String("path", p),
		logging.String("user", user),
		logging.String("mode", fmt.Sprintf("%03o", mode)),
		logging.String("permissions", entry.Permissions.String()),
	)
	return nil
}

// ListDirectory returns the child names of a directory. A tracked
// directory requires read permission; untracked ones, such as the root,
// are listed freely.
func (s *Service) ListDirectory(ctx context.Context, path, user string) (names []string, err error) {
	defer s.record("list_directory", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(path, user)
	if err != nil {
		return nil, err
	}
	isDir, err := s.store.IsDir(p)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, types.NewPathError("list directory", p, types.ErrNotFound)
	}
	if entry, ok := s.index.Get(p); ok {
		if err := s.perms.CheckRead(entry, user); err != nil {
			return nil, err
		}
	}

	return s.store.ListChildren(p)
}

// DisplayIndex returns the entries user may read, enriched with size and
// modification time and sorted by path.
func (s *Service) DisplayIndex(ctx context.Context, user string) (views []types.EntryView, err error) {
	defer s.record("display_index", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if user == "" {
		return nil, types.NewPathError("display index", "", types.ErrInvalidArgument)
	}

	views = make([]types.EntryView, 0, s.index.Len())
	for _, entry := range s.index.Entries() {
		if !s.perms.CanAccess(entry, user, types.CapRead) {
			continue
		}
		view := types.EntryView{Entry: entry}
		info, statErr := s.store.Stat(entry.Path)
		if statErr != nil {
			logging.Debug("Index entry has no object",
				logging.String("path", entry.Path),
				logging.Err(statErr),
			)
		} else {
			if entry.IsFile() {
				view.Size = info.Size()
			}
			view.LastModified = info.ModTime()
		}
		views = append(views, view)
	}
	return views, nil
}

// Stat returns the object attributes at path without consulting the index.
func (s *Service) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	p, err := s.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	return s.store.Stat(p)
}

// Lookup returns the index entry at path.
func (s *Service) Lookup(path string) (types.Entry, bool) {
	p, err := s.resolver.Resolve(path)
	if err != nil {
		return types.Entry{}, false
	}
	return s.index.Get(p)
}

// Reload replaces the in-memory index with the current snapshot.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Load(ctx); err != nil {
		return err
	}
	s.metrics.SetIndexEntries(s.index.Len())
	logging.Info("Index reloaded", logging.Int("entries", s.index.Len()))
	return nil
}

// Root returns the directory relative paths are resolved against.
func (s *Service) Root() string {
	return s.resolver.Root()
}

// Close releases the index backend.
func (s *Service) Close() error {
	return s.index.Close()
}

// prepare validates the user and resolves path.
func (s *Service) prepare(path, user string) (string, error) {
	if user == "" {
		return "", types.NewPathError("authorize", path, types.ErrInvalidArgument)
	}
	return s.resolver.Resolve(path)
}

func (s *Service) requireAbsent(p string) error {
	if _, ok := s.index.Get(p); ok {
		return types.NewPathError("create", p, types.ErrAlreadyExists)
	}
	exists, err := s.store.Exists(p)
	if err != nil {
		return err
	}
	if exists {
		return types.NewPathError("create", p, types.ErrAlreadyExists)
	}
	return nil
}

func (s *Service) requireParent(p string) error {
	ok, err := s.store.IsDir(fs.Parent(p))
	if err != nil {
		return err
	}
	if !ok {
		return types.NewPathError("create", p, types.ErrParentMissing)
	}
	return nil
}

// requireFile checks both sides: the real object must be a file and the
// index must hold a file entry for it.
func (s *Service) requireFile(p string) (types.Entry, error) {
	exists, err := s.store.Exists(p)
	if err != nil {
		return types.Entry{}, err
	}
	isDir, err := s.store.IsDir(p)
	if err != nil {
		return types.Entry{}, err
	}
	entry, ok := s.index.Get(p)
	if !exists || isDir || !ok || !entry.IsFile() {
		return types.Entry{}, types.NewPathError("lookup", p, types.ErrNotFound)
	}
	return entry, nil
}

// removeEntry drops entry from the index, persists, then removes the
// object. Either failure leaves the entry in place.
func (s *Service) removeEntry(ctx context.Context, op string, entry types.Entry, removeObject func(string) error) error {
	if err := s.index.Remove(entry.Path); err != nil {
		return err
	}
	if err := s.persist(ctx); err != nil {
		s.rollback(op, entry.Path, func() error {
			s.index.Put(entry)
			return nil
		})
		return err
	}
	if err := removeObject(entry.Path); err != nil {
		s.rollback(op, entry.Path, func() error {
			s.index.Put(entry)
			return s.persist(ctx)
		})
		return err
	}
	return nil
}

func (s *Service) persist(ctx context.Context) error {
	start := time.Now()
	err := s.index.Persist(ctx)
	s.metrics.ObservePersist(time.Since(start))
	s.metrics.SetIndexEntries(s.index.Len())
	return err
}

func (s *Service) rollback(op, path string, undo func() error) {
	s.metrics.RecordRollback(op)
	if err := undo(); err != nil {
		logging.Error("Rollback failed, index and filesystem may diverge",
			logging.String("operation", op),
			logging.String("path", path),
			logging.Err(err),
		)
		return
	}
	logging.Warn("Operation rolled back",
		logging.String("operation", op),
		logging.String("path", path),
	)
}

func (s *Service) record(op string, err *error) {
	s.metrics.RecordOperation(op, *err)
	if *err != nil && !isExpected(*err) {
		logging.Error("Operation failed", logging.String("operation", op), logging.Err(*err))
	}
}

// isExpected reports whether err is one of the domain failures callers
// are meant to handle, as opposed to an I/O fault.
func isExpected(err error) bool {
	for _, target := range []error{
		types.ErrInvalidArgument,
		types.ErrAlreadyExists,
		types.ErrNotFound,
		types.ErrParentMissing,
		types.ErrNotEmpty,
		types.ErrPermissionDenied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
