package objstore

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// TestStore runs the same checks over an in-memory and an OS-backed filesystem.
func TestStore(t *testing.T) {
	implementations := map[string]func(t *testing.T) (*Store, string){
		"MemMapFs": func(t *testing.T) (*Store, string) {
			s := New(afero.NewMemMapFs())
			if err := s.EnsureRoot("/root"); err != nil {
				t.Fatalf("EnsureRoot failed: %v", err)
			}
			return s, "/root"
		},
		"OsFs": func(t *testing.T) (*Store, string) {
			return NewOS(), t.TempDir()
		},
	}

	for name, create := range implementations {
		t.Run(name, func(t *testing.T) {
			t.Run("Files", func(t *testing.T) { testStoreFiles(t, create) })
			t.Run("Directories", func(t *testing.T) { testStoreDirectories(t, create) })
			t.Run("Attributes", func(t *testing.T) { testStoreAttributes(t, create) })
		})
	}
}

func testStoreFiles(t *testing.T, create func(t *testing.T) (*Store, string)) {
	s, root := create(t)
	path := root + "/a.txt"

	if ok, _ := s.Exists(path); ok {
		t.Fatal("file should not exist yet")
	}
	if err := s.WriteBytes(path, []byte("hello")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	if ok, _ := s.Exists(path); !ok {
		t.Fatal("file should exist after write")
	}
	if isDir, _ := s.IsDir(path); isDir {
		t.Error("file reported as directory")
	}

	data, err := s.ReadBytes(path)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}

	if err := s.WriteBytes(path, []byte("bye")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = s.ReadBytes(path)
	if string(data) != "bye" {
		t.Errorf("expected truncating overwrite, got %q", data)
	}

	if err := s.DeleteObject(path); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if _, err := s.ReadBytes(path); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func testStoreDirectories(t *testing.T, create func(t *testing.T) (*Store, string)) {
	s, root := create(t)
	dir := root + "/docs"

	if err := s.CreateDirectory(dir); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if isDir, _ := s.IsDir(dir); !isDir {
		t.Fatal("directory should exist")
	}

	for _, name := range []string{"b.txt", "a.txt"} {
		if err := s.WriteBytes(dir+"/"+name, []byte(name)); err != nil {
			t.Fatalf("WriteBytes failed: %v", err)
		}
	}

	names, err := s.ListChildren(dir)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Errorf("unexpected children %v", names)
	}

	if err := s.DeleteDirectory(dir); !errors.Is(err, types.ErrNotEmpty) {
		t.Fatalf("expected ErrNotEmpty, got %v", err)
	}
	if isDir, _ := s.IsDir(dir); !isDir {
		t.Fatal("non-empty directory must survive a failed delete")
	}

	for _, name := range names {
		if err := s.DeleteObject(dir + "/" + name); err != nil {
			t.Fatalf("DeleteObject failed: %v", err)
		}
	}
	if err := s.DeleteDirectory(dir); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}
	if _, err := s.ListChildren(dir); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound listing a removed dir, got %v", err)
	}
}

func testStoreAttributes(t *testing.T, create func(t *testing.T) (*Store, string)) {
	s, root := create(t)
	path := root + "/attr.txt"

	if err := s.WriteBytes(path, []byte("12345")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	size, err := s.Size(path)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 5 {
		t.Errorf("expected size 5, got %d", size)
	}

	mtime, err := s.LastModified(path)
	if err != nil {
		t.Fatalf("LastModified failed: %v", err)
	}
	if mtime.IsZero() {
		t.Error("expected non-zero modification time")
	}

	if err := s.SetMode(path, 0600); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	mode, err := s.Mode(path)
	if err != nil {
		t.Fatalf("Mode failed: %v", err)
	}
	if mode != 0600 {
		t.Errorf("expected mode 0600, got %o", mode)
	}

	if _, err := s.Size(root + "/missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing object, got %v", err)
	}
}
