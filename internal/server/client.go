package server

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ajaxzhan/filekeeper/internal/service"
	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// Client calls a remote file service. It satisfies service.FileSystem,
// and errors unwrap to the same sentinels the local service returns.
type Client struct {
	conn *grpc.ClientConn
}

var _ service.FileSystem = (*Client)(nil)

// Dial connects to the server at addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	var trailer metadata.MD
	err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp,
		grpc.ForceCodec(jsonCodec{}),
		grpc.Trailer(&trailer),
	)
	if err != nil {
		return fromStatus(err, trailer)
	}
	return nil
}

func (c *Client) CreateFile(ctx context.Context, path string, content []byte, user string) error {
	return c.invoke(ctx, "CreateFile", &ContentRequest{Path: path, User: user, Content: content}, &Empty{})
}

func (c *Client) ReadFile(ctx context.Context, path, user string) ([]byte, error) {
	var resp ReadResponse
	if err := c.invoke(ctx, "ReadFile", &PathRequest{Path: path, User: user}, &resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

func (c *Client) WriteFile(ctx context.Context, path string, content []byte, user string) error {
	return c.invoke(ctx, "WriteFile", &ContentRequest{Path: path, User: user, Content: content}, &Empty{})
}

func (c *Client) DeleteFile(ctx context.Context, path, user string) error {
	return c.invoke(ctx, "DeleteFile", &PathRequest{Path: path, User: user}, &Empty{})
}

func (c *Client) CreateDirectory(ctx context.Context, path, user string) error {
	return c.invoke(ctx, "CreateDirectory", &PathRequest{Path: path, User: user}, &Empty{})
}

func (c *Client) DeleteDirectory(ctx context.Context, path, user string) error {
	return c.invoke(ctx, "DeleteDirectory", &PathRequest{Path: path, User: user}, &Empty{})
}

func (c *Client) ChangePermission(ctx context.Context, path string, mode os.FileMode, user string) error {
	return c.invoke(ctx, "ChangePermission", &ModeRequest{Path: path, User: user, Mode: uint32(mode)}, &Empty{})
}

func (c *Client) ListDirectory(ctx context.Context, path, user string) ([]string, error) {
	var resp ListResponse
	if err := c.invoke(ctx, "ListDirectory", &PathRequest{Path: path, User: user}, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) DisplayIndex(ctx context.Context, user string) ([]types.EntryView, error) {
	var resp IndexResponse
	if err := c.invoke(ctx, "DisplayIndex", &UserRequest{User: user}, &resp); err != nil {
		return nil, err
	}
	views := make([]types.EntryView, 0, len(resp.Entries))
	for _, m := range resp.Entries {
		views = append(views, messageToEntry(m))
	}
	return views, nil
}
