package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// LocalFS implements Backend using the native filesystem. It is what the
// host process serves to host-delegated workspaces.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory. With root "/"
// request paths are used verbatim.
func NewLocalFS(root string) *LocalFS {
	if root == "" {
		root = Root
	}
	return &LocalFS{root: root}
}

// abs maps a request path onto the native filesystem. The path is resolved
// against "/" first so ".." can never leave the root.
func (l *LocalFS) abs(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(JoinPath(Root, path)))
}

// Kind reports KindLocal.
func (l *LocalFS) Kind() Kind { return KindLocal }

// CopyFile copies a regular file, overwriting the destination.
func (l *LocalFS) CopyFile(_ context.Context, req CopyFileRequest) (uint64, error) {
	src, err := os.Open(l.abs(req.From))
	if err != nil {
		return 0, mapOSError("copy", req.From, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, mapOSError("copy", req.From, err)
	}
	if info.IsDir() {
		return 0, pathErr("copy", req.From, fmt.Errorf("%w: source is a directory", ErrTypeMismatch))
	}

	dst, err := os.OpenFile(l.abs(req.To), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, mapOSError("copy", req.To, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, mapOSError("copy", req.To, err)
	}
	return uint64(n), nil
}

// CreateDir creates a single directory; the parent must exist.
func (l *LocalFS) CreateDir(_ context.Context, req PathRequest) error {
	if err := os.Mkdir(l.abs(req.Path), 0o755); err != nil {
		return mapOSError("create_dir", req.Path, err)
	}
	return nil
}

// CreateDirWithParents creates a directory and any missing parents.
func (l *LocalFS) CreateDirWithParents(_ context.Context, req PathRequest) error {
	if err := os.MkdirAll(l.abs(req.Path), 0o755); err != nil {
		return mapOSError("create_dir_with_parents", req.Path, err)
	}
	return nil
}

// CreateFile creates an empty file, failing if the entry already exists.
func (l *LocalFS) CreateFile(_ context.Context, req PathRequest) error {
	f, err := os.OpenFile(l.abs(req.Path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return mapOSError("create_file", req.Path, err)
	}
	return f.Close()
}

// ReadDir lists the immediate children of the directory at the given path.
func (l *LocalFS) ReadDir(_ context.Context, req PathRequest) ([]DirEntry, error) {
	entries, err := os.ReadDir(l.abs(req.Path))
	if err != nil {
		return nil, mapOSError("read_dir", req.Path, err)
	}
	result := make([]DirEntry, len(entries))
	for i, e := range entries {
		result[i] = DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
		}
	}
	return result, nil
}

// ReadToString reads the whole file at the given path.
func (l *LocalFS) ReadToString(_ context.Context, req PathRequest) (string, error) {
	data, err := os.ReadFile(l.abs(req.Path))
	if err != nil {
		return "", mapOSError("read_to_string", req.Path, err)
	}
	return string(data), nil
}

// RemoveDir removes an empty directory.
func (l *LocalFS) RemoveDir(_ context.Context, req PathRequest) error {
	p := l.abs(req.Path)
	if err := l.expectDir("remove_dir", req.Path, p, true); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return mapOSError("remove_dir", req.Path, err)
	}
	return nil
}

// RemoveDirRecursive removes a directory and everything below it.
func (l *LocalFS) RemoveDirRecursive(_ context.Context, req PathRequest) error {
	p := l.abs(req.Path)
	if err := l.expectDir("remove_dir_recursive", req.Path, p, true); err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return mapOSError("remove_dir_recursive", req.Path, err)
	}
	return nil
}

// RemoveFile removes a single file.
func (l *LocalFS) RemoveFile(_ context.Context, req PathRequest) error {
	p := l.abs(req.Path)
	if err := l.expectDir("remove_file", req.Path, p, false); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return mapOSError("remove_file", req.Path, err)
	}
	return nil
}

// Rename moves an entry; on the native filesystem this is atomic.
func (l *LocalFS) Rename(_ context.Context, req RenameRequest) error {
	if err := os.Rename(l.abs(req.From), l.abs(req.To)); err != nil {
		return mapOSError("rename", req.From, err)
	}
	return nil
}

// WriteFile replaces the file contents, creating the file if needed.
func (l *LocalFS) WriteFile(_ context.Context, req WriteFileRequest) (uint64, error) {
	if err := os.WriteFile(l.abs(req.Path), []byte(req.Contents), 0o644); err != nil {
		return 0, mapOSError("write_file", req.Path, err)
	}
	return uint64(len(req.Contents)), nil
}

func (l *LocalFS) expectDir(op, path, native string, dir bool) error {
	info, err := os.Stat(native)
	if err != nil {
		return mapOSError(op, path, err)
	}
	if info.IsDir() != dir {
		want := "file"
		if dir {
			want = "directory"
		}
		return pathErr(op, path, fmt.Errorf("%w: not a %s", ErrTypeMismatch, want))
	}
	return nil
}

// mapOSError classifies a native error into the backend taxonomy.
func mapOSError(op, path string, err error) error {
	var class error
	switch {
	case errors.Is(err, syscall.ENOTEMPTY):
		class = ErrNonEmptyDirectory
	case errors.Is(err, os.ErrNotExist):
		class = ErrNotFound
	case errors.Is(err, os.ErrExist):
		class = ErrAlreadyExists
	case errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.EISDIR):
		class = ErrTypeMismatch
	default:
		return pathErr(op, path, err)
	}
	return pathErr(op, path, fmt.Errorf("%w: %v", class, err))
}
