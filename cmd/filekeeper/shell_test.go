package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/ajaxzhan/filekeeper/internal/fs"
	"github.com/ajaxzhan/filekeeper/internal/index"
	"github.com/ajaxzhan/filekeeper/internal/objstore"
	"github.com/ajaxzhan/filekeeper/internal/service"
)

const testRoot = "/srv/files"

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	return newTestServiceWith(t, index.NewMemorySnapshotter())
}

func newTestServiceWith(t *testing.T, snap index.Snapshotter) *service.Service {
	t.Helper()

	store := objstore.New(afero.NewMemMapFs())
	if err := store.EnsureRoot(testRoot); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	return service.New(
		fs.NewResolver(testRoot),
		index.New(snap),
		store,
		fs.NewPermissionEvaluator("admin"),
	)
}

func runShell(t *testing.T, svc *service.Service, user, input string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	err := newShell(svc, user, strings.NewReader(input), &out).run(context.Background())
	return out.String(), err
}

func TestShell_Session(t *testing.T) {
	svc := newTestService(t)

	input := strings.Join([]string{
		"5", "docs",
		"1", "docs/a.txt", "hello",
		"2", "docs/a.txt",
		"3", "docs/a.txt", "bye",
		"7", "docs",
		"9", "docs/a.txt", "640",
		"8",
		"51",
	}, "\n") + "\n"

	out, err := runShell(t, svc, "admin", input)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, want := range []string{
		"filekeeper",
		"Acting as admin",
		"Directory created: docs",
		"File created: docs/a.txt",
		"File content:\nhello",
		"File written: docs/a.txt",
		"a.txt",
		"Permissions of docs/a.txt changed to Read: Yes, Write: No",
		"Index (2 entries)",
		"Exiting...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}

	data, err := svc.ReadFile(context.Background(), "docs/a.txt", "admin")
	if err != nil || string(data) != "bye" {
		t.Errorf("expected bye, got %q (%v)", data, err)
	}
}

func TestShell_ErrorsKeepRunning(t *testing.T) {
	svc := newTestService(t)

	input := strings.Join([]string{
		"2", "missing.txt",
		"42",
		"9", "missing.txt", "999",
		"6", "nope",
	}, "\n") + "\n"

	out, err := runShell(t, svc, "alice", input)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if n := strings.Count(out, "Error: "); n != 3 {
		t.Errorf("expected 3 errors, got %d\n%s", n, out)
	}
	if !strings.Contains(out, "Invalid choice. Please try again.") {
		t.Errorf("expected invalid choice message\n%s", out)
	}
}

func TestShell_PermissionDenied(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.CreateFile(ctx, "secret.txt", []byte("x"), "alice"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := svc.ChangePermission(ctx, "secret.txt", 0o600, "alice"); err != nil {
		t.Fatalf("ChangePermission failed: %v", err)
	}

	out, err := runShell(t, svc, "bob", "2\nsecret.txt\n51\n")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Error: ") || strings.Contains(out, "File content:") {
		t.Errorf("expected read to be denied\n%s", out)
	}
}

func TestShell_LongContent(t *testing.T) {
	svc := newTestService(t)
	content := strings.Repeat("a", 70*1024)

	out, err := runShell(t, svc, "admin", "1\nbig.txt\n"+content+"\n2\nbig.txt\n51\n")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "File content:\n"+content+"\n") {
		t.Error("long content was not read back")
	}

	data, err := svc.ReadFile(context.Background(), "big.txt", "admin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != len(content) {
		t.Errorf("expected %d bytes, got %d", len(content), len(data))
	}
}

func TestShell_LineTooLong(t *testing.T) {
	svc := newTestService(t)
	content := strings.Repeat("a", maxLine+1)

	out, err := runShell(t, svc, "admin", "1\nbig.txt\n"+content+"\n2\nbig.txt\n51\n")
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("expected bufio.ErrTooLong, got %v", err)
	}
	if strings.Contains(out, "File created") || strings.Contains(out, "Exiting...") {
		t.Errorf("session should stop without acting on the line\n%s", out)
	}
	if _, ok := svc.Lookup("big.txt"); ok {
		t.Error("file should not be created from a truncated answer")
	}
}

func TestShell_EndOfInputMidAction(t *testing.T) {
	svc := newTestService(t)

	out, err := runShell(t, svc, "admin", "1\nhalf.txt\n")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Exiting...") {
		t.Errorf("expected exit message\n%s", out)
	}
	if _, ok := svc.Lookup("half.txt"); ok {
		t.Error("file should not be created without content")
	}
}

func TestShell_ChangesSavedBeforeExit(t *testing.T) {
	snap := index.NewMemorySnapshotter()
	svc := newTestServiceWith(t, snap)

	// No exit choice: the session ends at end of input.
	if _, err := runShell(t, svc, "admin", "5\ndocs\n1\ndocs/a.txt\nhi\n"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	saved := index.New(snap)
	if err := saved.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if saved.Len() != 2 {
		t.Errorf("expected 2 saved entries, got %d", saved.Len())
	}
}

func TestShell_CancelledContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sh := newShell(svc, "admin", strings.NewReader("8\n"), &bytes.Buffer{})
	if err := sh.run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
