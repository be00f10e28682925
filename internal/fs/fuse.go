package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// Errors for IndexFS
var (
	ErrInvalidRoot       = errors.New("invalid root directory")
	ErrInvalidMountPoint = errors.New("invalid mount point")
	ErrMissingUser       = errors.New("mount user is required")
)

// Source is the subset of the file manager the FUSE view reads through.
// Paths are canonical.
type Source interface {
	Stat(ctx context.Context, path string) (os.FileInfo, error)
	ReadFile(ctx context.Context, path, user string) ([]byte, error)
	ListDirectory(ctx context.Context, path, user string) ([]string, error)
}

// IndexFSConfig holds the configuration for creating an IndexFS.
type IndexFSConfig struct {
	Root       string // Managed root directory
	MountPoint string // Where to mount the FUSE filesystem
	User       string // Identity every access is evaluated for
}

// IndexFS is a read-only FUSE view of the managed tree. Reads go through
// the file manager, so the index read rule applies to every open.
type IndexFS struct {
	config  *IndexFSConfig
	source  Source
	server  *fuse.Server
	mounted atomic.Bool
	mu      sync.Mutex
}

// NewIndexFS creates a new IndexFS instance.
func NewIndexFS(config *IndexFSConfig, source Source) (*IndexFS, error) {
	if config.Root == "" {
		return nil, ErrInvalidRoot
	}
	if config.MountPoint == "" {
		return nil, ErrInvalidMountPoint
	}
	if config.User == "" {
		return nil, ErrMissingUser
	}

	info, err := os.Stat(config.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrInvalidRoot
	}

	return &IndexFS{
		config: config,
		source: source,
	}, nil
}

// Mount mounts the FUSE filesystem. It blocks until the context is cancelled.
func (ifs *IndexFS) Mount(ctx context.Context) error {
	root := &viewDir{ifs: ifs, path: filepath.Clean(ifs.config.Root)}

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: "filekeeper",
			Name:   "filekeeper",
			Debug:  false,
		},
	}

	server, err := fs.Mount(ifs.config.MountPoint, root, opts)
	if err != nil {
		return err
	}

	ifs.mu.Lock()
	ifs.server = server
	ifs.mounted.Store(true)
	ifs.mu.Unlock()

	logging.Info("Index view mounted",
		logging.String("mountpoint", ifs.config.MountPoint),
		logging.String("user", ifs.config.User),
	)

	<-ctx.Done()

	if err := server.Unmount(); err != nil {
		return err
	}
	ifs.mounted.Store(false)

	return ctx.Err()
}

// IsMounted returns true if the filesystem is currently mounted.
func (ifs *IndexFS) IsMounted() bool {
	return ifs.mounted.Load()
}

// viewDir is a directory node. The root is a viewDir as well.
type viewDir struct {
	fs.Inode
	ifs  *IndexFS
	path string
}

var _ = (fs.NodeLookuper)((*viewDir)(nil))
var _ = (fs.NodeReaddirer)((*viewDir)(nil))
var _ = (fs.NodeGetattrer)((*viewDir)(nil))
var _ = (fs.NodeMkdirer)((*viewDir)(nil))
var _ = (fs.NodeCreater)((*viewDir)(nil))
var _ = (fs.NodeUnlinker)((*viewDir)(nil))
var _ = (fs.NodeRmdirer)((*viewDir)(nil))
var _ = (fs.NodeRenamer)((*viewDir)(nil))

// Getattr implements fs.NodeGetattrer.
func (d *viewDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := d.ifs.source.Stat(ctx, d.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(&out.Attr, info)
	return fs.OK
}

// Lookup implements fs.NodeLookuper.
func (d *viewDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := filepath.Join(d.path, name)

	info, err := d.ifs.source.Stat(ctx, childPath)
	if err != nil {
		return nil, toErrno(err)
	}
	fillAttr(&out.Attr, info)

	if info.IsDir() {
		child := &viewDir{ifs: d.ifs, path: childPath}
		return d.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR}), fs.OK
	}
	if !info.Mode().IsRegular() {
		return nil, syscall.ENOENT
	}
	child := &viewFile{ifs: d.ifs, path: childPath}
	return d.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG}), fs.OK
}

// Readdir implements fs.NodeReaddirer. Tracked directories require read
// permission, as in ListDirectory.
func (d *viewDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, err := d.ifs.source.ListDirectory(ctx, d.path, d.ifs.config.User)
	if err != nil {
		return nil, toErrno(err)
	}

	result := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		info, err := d.ifs.source.Stat(ctx, filepath.Join(d.path, name))
		if err != nil {
			continue
		}
		var mode uint32
		switch {
		case info.IsDir():
			mode = fuse.S_IFDIR
		case info.Mode().IsRegular():
			mode = fuse.S_IFREG
		default:
			continue
		}
		result = append(result, fuse.DirEntry{Name: name, Mode: mode})
	}

	return fs.NewListDirStream(result), fs.OK
}

// Mkdir implements fs.NodeMkdirer.
func (d *viewDir) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

// Create implements fs.NodeCreater.
func (d *viewDir) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (node *fs.Inode, fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

// Unlink implements fs.NodeUnlinker.
func (d *viewDir) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

// Rmdir implements fs.NodeRmdirer.
func (d *viewDir) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

// Rename implements fs.NodeRenamer.
func (d *viewDir) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

// viewFile is a regular file node.
type viewFile struct {
	fs.Inode
	ifs  *IndexFS
	path string
}

var _ = (fs.NodeGetattrer)((*viewFile)(nil))
var _ = (fs.NodeSetattrer)((*viewFile)(nil))
var _ = (fs.NodeOpener)((*viewFile)(nil))

// Getattr implements fs.NodeGetattrer.
func (f *viewFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := f.ifs.source.Stat(ctx, f.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(&out.Attr, info)
	return fs.OK
}

// Setattr implements fs.NodeSetattrer.
func (f *viewFile) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

// Open implements fs.NodeOpener. The content is read once, through the
// permission check, and served from memory.
func (f *viewFile) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}

	data, err := f.ifs.source.ReadFile(ctx, f.path, f.ifs.config.User)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &viewFileHandle{data: data}, fuse.FOPEN_DIRECT_IO, fs.OK
}

// viewFileHandle serves a snapshot of the file content.
type viewFileHandle struct {
	data []byte
}

var _ = (fs.FileReader)((*viewFileHandle)(nil))

// Read implements fs.FileReader.
func (fh *viewFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(fh.data)) {
		return fuse.ReadResultData(nil), fs.OK
	}
	end := off + int64(len(dest))
	if end > int64(len(fh.data)) {
		end = int64(len(fh.data))
	}
	return fuse.ReadResultData(fh.data[off:end]), fs.OK
}

func fillAttr(attr *fuse.Attr, info os.FileInfo) {
	mode := uint32(info.Mode().Perm())
	if info.IsDir() {
		mode |= fuse.S_IFDIR
	} else {
		mode |= fuse.S_IFREG
	}
	attr.Mode = mode
	attr.Size = uint64(info.Size())
	mtime := info.ModTime()
	attr.SetTimes(nil, &mtime, nil)
}

// toErrno converts a file manager error to a syscall.Errno.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}

	switch {
	case errors.Is(err, types.ErrPermissionDenied):
		return syscall.EACCES
	case errors.Is(err, types.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, types.ErrInvalidArgument):
		return syscall.EINVAL
	case errors.Is(err, types.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, types.ErrNotEmpty):
		return syscall.ENOTEMPTY
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
