package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ajaxzhan/filekeeper/internal/logging"
)

const requestIDKey = "x-request-id"

type requestIDCtxKey struct{}

// RequestID returns the request id attached by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// requestIDInterceptor reuses the caller's x-request-id or mints a new one,
// stores it in the context and echoes it in the response header.
func requestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(requestIDKey); len(values) > 0 && values[0] != "" {
			id = values[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))
	return handler(context.WithValue(ctx, requestIDCtxKey{}, id), req)
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []zap.Field{
		logging.String("method", info.FullMethod),
		logging.String("request_id", RequestID(ctx)),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, logging.String("code", status.Code(err).String()), logging.Err(err))
		logging.Warn("RPC failed", fields...)
		return resp, err
	}
	logging.Debug("RPC completed", fields...)
	return resp, nil
}
