// Package server exposes the file manager operations over gRPC.
//
// Messages are plain Go structs carried by a JSON codec, and the service
// descriptor is declared by hand, so no generated stubs are needed.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/internal/metrics"
	"github.com/ajaxzhan/filekeeper/internal/service"
)

const serviceName = "filekeeper.v1.FileService"

// Config holds server configuration.
type Config struct {
	GRPCAddr    string
	MetricsAddr string // Optional Prometheus endpoint address
}

// Server represents the gRPC server.
type Server struct {
	config     *Config
	grpcServer *grpc.Server
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a gRPC server serving fsys.
func New(cfg *Config, fsys service.FileSystem) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if fsys == nil {
		return nil, errors.New("file system service is required")
	}

	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(requestIDInterceptor, loggingInterceptor),
	)
	Register(grpcServer, fsys)

	return &Server{
		config:     cfg,
		grpcServer: grpcServer,
	}, nil
}

// Register adds the file service to an existing gRPC server. The server
// must have been created with the JSON codec.
func Register(s grpc.ServiceRegistrar, fsys service.FileSystem) {
	s.RegisterService(&fileServiceDesc, fsys)
}

// Start listens on the configured address and serves until stopped.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	logging.Info("gRPC server listening", logging.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// StartWithMetrics serves gRPC and, if configured, the Prometheus
// endpoint. It returns when either server fails.
func (s *Server) StartWithMetrics(gatherer prometheus.Gatherer) error {
	if s.config.MetricsAddr == "" {
		return s.Start()
	}

	grpcLis, err := net.Listen("tcp", s.config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}

	errCh := make(chan error, 2)

	go func() {
		if err := s.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	go func() {
		logging.Info("Metrics endpoint listening", logging.String("addr", s.config.MetricsAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return <-errCh
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.grpcServer.GracefulStop()
}

// ============================================
// Service descriptor
// ============================================

var fileServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*service.FileSystem)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateFile", func(ctx context.Context, fsys service.FileSystem, req *ContentRequest) (*Empty, error) {
			return &Empty{}, fsys.CreateFile(ctx, req.Path, req.Content, req.User)
		}),
		unary("ReadFile", func(ctx context.Context, fsys service.FileSystem, req *PathRequest) (*ReadResponse, error) {
			data, err := fsys.ReadFile(ctx, req.Path, req.User)
			if err != nil {
				return nil, err
			}
			return &ReadResponse{Content: data}, nil
		}),
		unary("WriteFile", func(ctx context.Context, fsys service.FileSystem, req *ContentRequest) (*Empty, error) {
			return &Empty{}, fsys.WriteFile(ctx, req.Path, req.Content, req.User)
		}),
		unary("DeleteFile", func(ctx context.Context, fsys service.FileSystem, req *PathRequest) (*Empty, error) {
			return &Empty{}, fsys.DeleteFile(ctx, req.Path, req.User)
		}),
		unary("CreateDirectory", func(ctx context.Context, fsys service.FileSystem, req *PathRequest) (*Empty, error) {
			return &Empty{}, fsys.CreateDirectory(ctx, req.Path, req.User)
		}),
		unary("DeleteDirectory", func(ctx context.Context, fsys service.FileSystem, req *PathRequest) (*Empty, error) {
			return &Empty{}, fsys.DeleteDirectory(ctx, req.Path, req.User)
		}),
		unary("ChangePermission", func(ctx context.Context, fsys service.FileSystem, req *ModeRequest) (*Empty, error) {
			return &Empty{}, fsys.ChangePermission(ctx, req.Path, os.FileMode(req.Mode), req.User)
		}),
		unary("ListDirectory", func(ctx context.Context, fsys service.FileSystem, req *PathRequest) (*ListResponse, error) {
			names, err := fsys.ListDirectory(ctx, req.Path, req.User)
			if err != nil {
				return nil, err
			}
			return &ListResponse{Names: names}, nil
		}),
		unary("DisplayIndex", func(ctx context.Context, fsys service.FileSystem, req *UserRequest) (*IndexResponse, error) {
			views, err := fsys.DisplayIndex(ctx, req.User)
			if err != nil {
				return nil, err
			}
			resp := &IndexResponse{Entries: make([]EntryMessage, 0, len(views))}
			for _, v := range views {
				resp.Entries = append(resp.Entries, entryToMessage(v))
			}
			return resp, nil
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "filekeeper/v1/file_service",
}

// unary builds a method descriptor that decodes Req, calls fn through the
// interceptor chain and maps service errors onto gRPC status codes.
func unary[Req, Resp any](method string, fn func(context.Context, service.FileSystem, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			fsys := srv.(service.FileSystem)

			call := func(ctx context.Context, req any) (any, error) {
				resp, err := fn(ctx, fsys, req.(*Req))
				if err != nil {
					return nil, toStatus(ctx, err)
				}
				return resp, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			return interceptor(ctx, in, info, call)
		},
	}
}
