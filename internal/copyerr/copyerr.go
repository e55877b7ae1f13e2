// Package copyerr maps raw OS errors onto a closed, stable taxonomy of
// error codes. Code meanings never change within a major version; new
// codes are additive only.
package copyerr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Code is a stable, machine-readable classification of a copy failure.
type Code string

const (
	CodeInvalidInput     Code = "invalid_input"
	CodeSourceNotFound   Code = "source_not_found"
	CodeAlreadyExists    Code = "already_exists"
	CodePermissionDenied Code = "permission_denied"
	CodeNoSpace          Code = "no_space"
	CodeCancelled        Code = "cancelled"
	CodePartialCopy      Code = "partial_copy"
	CodeSymlinkLoop      Code = "symlink_loop"
	CodeIsADirectory     Code = "is_a_directory"
	CodeIOError          Code = "io_error"
	CodeInternal         Code = "internal"
)

// Error is a classified copy failure. It wraps the underlying OS error (if
// any) and carries the path the failure is about.
type Error struct {
	Code Code
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Path != "":
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with an explicit code.
func New(code Code, path string, err error) *Error {
	return &Error{Code: code, Path: path, Err: err}
}

// Wrap classifies err and attaches path. If err is already an *Error it is
// returned unchanged so the original classification survives rewrapping.
func Wrap(path string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Code: Classify(err), Path: path, Err: err}
}

// CodeOf extracts the code from a classified error, or classifies err on
// the fly. A nil error has no code and returns "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return Classify(err)
}

// Classify maps a raw error onto the taxonomy. Unrecognized errors land on
// io_error rather than failing classification.
func Classify(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return CodeNoSpace
	case errors.Is(err, fs.ErrNotExist):
		return CodeSourceNotFound
	case errors.Is(err, fs.ErrExist):
		return CodeAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return CodePermissionDenied
	case errors.Is(err, syscall.EISDIR):
		return CodeIsADirectory
	case errors.Is(err, syscall.ELOOP):
		return CodeSymlinkLoop
	case errors.Is(err, syscall.EINVAL):
		return CodeInvalidInput
	default:
		return CodeIOError
	}
}

// IsNoSpace reports whether err classifies as an out-of-space condition.
func IsNoSpace(err error) bool { return CodeOf(err) == CodeNoSpace }

// IsCancelled reports whether err classifies as cancellation.
func IsCancelled(err error) bool { return CodeOf(err) == CodeCancelled }
