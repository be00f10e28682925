// Package types defines error types for the file manager.
package types

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrParentMissing    = errors.New("parent directory does not exist")
	ErrNotEmpty         = errors.New("directory not empty")
	ErrPermissionDenied = errors.New("permission denied")
)

// PathError records a failed operation on a canonical path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError is shorthand for building a *PathError.
func NewPathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// PermissionError represents a denied access with context.
type PermissionError struct {
	Path      string
	Operation string
	User      string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf(
		"permission denied: user '%s' may not %s '%s'",
		e.User, e.Operation, e.Path,
	)
}

// Is lets errors.Is(err, ErrPermissionDenied) match a *PermissionError.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}
