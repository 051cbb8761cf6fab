package fs

import (
	"errors"
	"fmt"
)

// Error classes shared by every backend and the workspace layer.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrNonEmptyDirectory = errors.New("directory not empty")
	ErrInvalidName       = errors.New("invalid name")
	ErrParentMissing     = errors.New("parent directory missing")
)

// PathError records the operation and path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

var codes = []struct {
	code string
	err  error
}{
	{"not_found", ErrNotFound},
	{"already_exists", ErrAlreadyExists},
	{"type_mismatch", ErrTypeMismatch},
	{"non_empty_directory", ErrNonEmptyDirectory},
	{"invalid_name", ErrInvalidName},
	{"parent_missing", ErrParentMissing},
}

// ErrorCode returns a stable code for the error class of err, or "" when err
// does not belong to the taxonomy.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// FromCode rebuilds an error received over a transport so that errors.Is
// matches the sentinel the host returned.
func FromCode(code, msg string) error {
	for _, c := range codes {
		if c.code == code {
			return &remoteError{msg: msg, class: c.err}
		}
	}
	return errors.New(msg)
}

type remoteError struct {
	msg   string
	class error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.class }

// invalidName reports a name that cannot address a single entry.
func invalidName(op, name string) error {
	return pathErr(op, name, fmt.Errorf("%w: %q", ErrInvalidName, name))
}
