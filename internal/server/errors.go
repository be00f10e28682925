package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// reasonKey is the trailer that disambiguates errors sharing a status code.
const reasonKey = "filekeeper-reason"

var errorCodes = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{types.ErrInvalidArgument, codes.InvalidArgument, "invalid_argument"},
	{types.ErrAlreadyExists, codes.AlreadyExists, "already_exists"},
	{types.ErrNotFound, codes.NotFound, "not_found"},
	{types.ErrParentMissing, codes.FailedPrecondition, "parent_missing"},
	{types.ErrNotEmpty, codes.FailedPrecondition, "not_empty"},
	{types.ErrPermissionDenied, codes.PermissionDenied, "permission_denied"},
}

// toStatus converts a service error into a gRPC status error and records
// the reason in the response trailer.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(reasonKey, ec.reason))
			return status.Error(ec.code, err.Error())
		}
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// remoteError keeps the server's message and unwraps to the matching
// sentinel so errors.Is works on the client side.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.err }

// fromStatus converts a gRPC error back into a service error.
func fromStatus(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var reason string
	if values := trailer.Get(reasonKey); len(values) > 0 {
		reason = values[0]
	}

	for _, ec := range errorCodes {
		if reason == ec.reason || (reason == "" && st.Code() == ec.code && ec.code != codes.FailedPrecondition) {
			return &remoteError{msg: st.Message(), err: ec.err}
		}
	}
	return err
}
