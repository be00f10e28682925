package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/spf13/afero"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ajaxzhan/filekeeper/internal/fs"
	"github.com/ajaxzhan/filekeeper/internal/index"
	"github.com/ajaxzhan/filekeeper/internal/objstore"
	"github.com/ajaxzhan/filekeeper/internal/service"
	"github.com/ajaxzhan/filekeeper/pkg/types"
)

const (
	bufSize  = 1024 * 1024
	testRoot = "/srv/files"
)

// testServer wraps the gRPC server and its dependencies for testing.
type testServer struct {
	lis    *bufconn.Listener
	server *Server
	svc    *service.Service
	client *Client
}

// setupTestServer starts a server over an in-memory listener backed by an
// in-memory filesystem.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store := objstore.New(afero.NewMemMapFs())
	if err := store.EnsureRoot(testRoot); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	svc := service.New(
		fs.NewResolver(testRoot),
		index.New(index.NewMemorySnapshotter()),
		store,
		fs.NewPermissionEvaluator("admin"),
	)

	srv, err := New(&Config{GRPCAddr: "bufnet"}, svc)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	lis := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			t.Logf("server error: %v", err)
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}
	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(dialer))
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}

	ts := &testServer{lis: lis, server: srv, svc: svc, client: client}
	t.Cleanup(ts.close)
	return ts
}

// close shuts down the test server.
func (ts *testServer) close() {
	ts.client.Close()
	ts.server.Stop()
}

func TestFileService_RoundTrip(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	c := ts.client

	if err := c.CreateDirectory(ctx, "docs", "admin"); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if err := c.CreateFile(ctx, "docs/notes.txt", []byte("hello"), "admin"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	data, err := c.ReadFile(ctx, "docs/notes.txt", "guest")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}

	if err := c.WriteFile(ctx, "docs/notes.txt", []byte("bye"), "guest"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	names, err := c.ListDirectory(ctx, "docs", "guest")
	if err != nil {
		t.Fatalf("ListDirectory failed: %v", err)
	}
	if len(names) != 1 || names[0] != "notes.txt" {
		t.Errorf("unexpected listing %v", names)
	}

	if err := c.ChangePermission(ctx, "docs/notes.txt", 0o640, "admin"); err != nil {
		t.Fatalf("ChangePermission failed: %v", err)
	}

	views, err := c.DisplayIndex(ctx, "admin")
	if err != nil {
		t.Fatalf("DisplayIndex failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(views))
	}
	file := views[1]
	if file.Path != testRoot+"/docs/notes.txt" || !file.IsFile() || file.Owner != "admin" {
		t.Errorf("unexpected entry %+v", file)
	}
	if !file.Permissions.Read || file.Permissions.Write {
		t.Errorf("expected Read only after chmod 640, got %s", file.Permissions)
	}
	if file.Size != 3 {
		t.Errorf("expected size 3, got %d", file.Size)
	}

	if err := c.DeleteFile(ctx, "docs/notes.txt", "admin"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if err := c.DeleteDirectory(ctx, "docs", "admin"); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}
}

func TestFileService_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	c := ts.client

	if err := c.CreateDirectory(ctx, "full", "alice"); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if err := c.CreateFile(ctx, "full/a.txt", []byte("x"), "alice"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	tests := []struct {
		name     string
		call     func() error
		expected error
	}{
		{"already exists", func() error { return c.CreateFile(ctx, "full/a.txt", []byte("y"), "alice") }, types.ErrAlreadyExists},
		{"not found", func() error { _, err := c.ReadFile(ctx, "nope.txt", "alice"); return err }, types.ErrNotFound},
		{"parent missing", func() error { return c.CreateFile(ctx, "nope/a.txt", []byte("x"), "alice") }, types.ErrParentMissing},
		{"not empty", func() error { return c.DeleteDirectory(ctx, "full", "alice") }, types.ErrNotEmpty},
		{"permission denied", func() error { return c.WriteFile(ctx, "full/a.txt", []byte("x"), "bob") }, types.ErrPermissionDenied},
		{"invalid argument", func() error { return c.CreateFile(ctx, "", []byte("x"), "alice") }, types.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestFileService_RequestID(t *testing.T) {
	ts := setupTestServer(t)

	invoke := func(ctx context.Context) string {
		var header metadata.MD
		err := ts.client.conn.Invoke(ctx, "/"+serviceName+"/ListDirectory",
			&PathRequest{Path: testRoot, User: "admin"}, &ListResponse{},
			grpc.ForceCodec(jsonCodec{}),
			grpc.Header(&header),
		)
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		values := header.Get(requestIDKey)
		if len(values) != 1 {
			t.Fatalf("expected one request id header, got %v", values)
		}
		return values[0]
	}

	generated := invoke(context.Background())
	if generated == "" {
		t.Error("expected generated request id")
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDKey, "req-123")
	if got := invoke(ctx); got != "req-123" {
		t.Errorf("expected caller request id to be echoed, got %q", got)
	}
}

func TestStatusMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		err  error
		code codes.Code
	}{
		{types.NewPathError("create", "/a", types.ErrAlreadyExists), codes.AlreadyExists},
		{types.NewPathError("lookup", "/a", types.ErrNotFound), codes.NotFound},
		{types.NewPathError("create", "/a", types.ErrParentMissing), codes.FailedPrecondition},
		{types.NewPathError("rmdir", "/a", types.ErrNotEmpty), codes.FailedPrecondition},
		{&types.PermissionError{Path: "/a", Operation: "read", User: "bob"}, codes.PermissionDenied},
		{types.ErrInvalidArgument, codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := status.Code(toStatus(ctx, tt.err)); got != tt.code {
				t.Errorf("toStatus(%v) code = %v, want %v", tt.err, got, tt.code)
			}
		})
	}

	if toStatus(ctx, nil) != nil {
		t.Error("nil error must stay nil")
	}
}

func TestFromStatus(t *testing.T) {
	notEmpty := fromStatus(
		status.Error(codes.FailedPrecondition, "rmdir '/a': directory not empty"),
		metadata.Pairs(reasonKey, "not_empty"),
	)
	if !errors.Is(notEmpty, types.ErrNotEmpty) {
		t.Errorf("expected ErrNotEmpty, got %v", notEmpty)
	}
	if notEmpty.Error() != "rmdir '/a': directory not empty" {
		t.Errorf("server message should be kept, got %q", notEmpty.Error())
	}

	// Without a trailer the status code alone decides.
	denied := fromStatus(status.Error(codes.PermissionDenied, "nope"), nil)
	if !errors.Is(denied, types.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", denied)
	}

	internal := status.Error(codes.Internal, "boom")
	if got := fromStatus(internal, nil); got != internal {
		t.Errorf("unmapped status should pass through, got %v", got)
	}
}

func TestServer_New(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{GRPCAddr: ":0"}, nil); err == nil {
		t.Error("expected error for nil service")
	}
}
