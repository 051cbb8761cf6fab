package fs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SandboxFS implements Backend on top of handle-addressed sandboxed storage.
// Directory handles are cached by path for the lifetime of the instance and
// evicted only when their directory is removed.
type SandboxFS struct {
	root DirectoryHandle

	mu       sync.Mutex
	dirCache map[string]DirectoryHandle
}

// NewSandboxFS creates a SandboxFS whose "/" is the given root handle.
func NewSandboxFS(root DirectoryHandle) *SandboxFS {
	return &SandboxFS{
		root:     root,
		dirCache: map[string]DirectoryHandle{Root: root},
	}
}

// Kind reports KindSandbox.
func (s *SandboxFS) Kind() Kind { return KindSandbox }

func clean(path string) string {
	return JoinPath(Root, path)
}

func (s *SandboxFS) cached(path string) (DirectoryHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.dirCache[path]
	return h, ok
}

func (s *SandboxFS) cache(path string, h DirectoryHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirCache[path] = h
}

// evict drops path and every cached descendant.
func (s *SandboxFS) evict(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := path + "/"
	for p := range s.dirCache {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(s.dirCache, p)
		}
	}
	s.dirCache[Root] = s.root
}

// getDirectoryHandle resolves a directory, walking up to the nearest cached
// ancestor and caching every handle on the way back down.
func (s *SandboxFS) getDirectoryHandle(ctx context.Context, path string) (DirectoryHandle, error) {
	path = clean(path)
	if h, ok := s.cached(path); ok {
		return h, nil
	}
	parent, err := s.getDirectoryHandle(ctx, DirectoryName(path))
	if err != nil {
		return nil, err
	}
	h, err := parent.GetDirectoryHandle(ctx, Filename(path), false)
	if err != nil {
		return nil, err
	}
	s.cache(path, h)
	return h, nil
}

// getFileHandle resolves a file through its parent directory. File handles
// are not cached.
func (s *SandboxFS) getFileHandle(ctx context.Context, path string, create bool) (FileHandle, error) {
	path = clean(path)
	if path == Root {
		return nil, pathErr("getFileHandle", path, ErrTypeMismatch)
	}
	parent, err := s.getDirectoryHandle(ctx, DirectoryName(path))
	if err != nil {
		return nil, err
	}
	return parent.GetFileHandle(ctx, Filename(path), create)
}

func (s *SandboxFS) exists(ctx context.Context, dir DirectoryHandle, name string) (bool, error) {
	entries, err := dir.Entries(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// parentOf resolves the parent handle of a new entry and rejects the entry
// if it is already present.
func (s *SandboxFS) parentOf(ctx context.Context, op, path string) (DirectoryHandle, string, error) {
	if path == Root {
		return nil, "", pathErr(op, path, ErrAlreadyExists)
	}
	parent, err := s.getDirectoryHandle(ctx, DirectoryName(path))
	if err != nil {
		return nil, "", err
	}
	name := Filename(path)
	found, err := s.exists(ctx, parent, name)
	if err != nil {
		return nil, "", err
	}
	if found {
		return nil, "", pathErr(op, path, ErrAlreadyExists)
	}
	return parent, name, nil
}

// CopyFile copies a file, overwriting the destination.
func (s *SandboxFS) CopyFile(ctx context.Context, req CopyFileRequest) (uint64, error) {
	src, err := s.getFileHandle(ctx, req.From, false)
	if err != nil {
		return 0, err
	}
	data, err := src.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	dst, err := s.getFileHandle(ctx, req.To, true)
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(ctx, data)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// CreateDir creates a single directory below an existing parent.
func (s *SandboxFS) CreateDir(ctx context.Context, req PathRequest) error {
	path := clean(req.Path)
	parent, name, err := s.parentOf(ctx, "create_dir", path)
	if err != nil {
		return err
	}
	h, err := parent.GetDirectoryHandle(ctx, name, true)
	if err != nil {
		return err
	}
	s.cache(path, h)
	return nil
}

// CreateDirWithParents creates every missing directory along the path.
func (s *SandboxFS) CreateDirWithParents(ctx context.Context, req PathRequest) error {
	current := s.root
	path := Root
	for _, part := range Parts(clean(req.Path)) {
		path = JoinPath(path, part)
		if h, ok := s.cached(path); ok {
			current = h
			continue
		}
		h, err := current.GetDirectoryHandle(ctx, part, true)
		if err != nil {
			return err
		}
		s.cache(path, h)
		current = h
	}
	return nil
}

// CreateFile creates an empty file.
func (s *SandboxFS) CreateFile(ctx context.Context, req PathRequest) error {
	parent, name, err := s.parentOf(ctx, "create_file", clean(req.Path))
	if err != nil {
		return err
	}
	_, err = parent.GetFileHandle(ctx, name, true)
	return err
}

// ReadDir lists one level of the directory at the given path.
func (s *SandboxFS) ReadDir(ctx context.Context, req PathRequest) ([]DirEntry, error) {
	dir, err := s.getDirectoryHandle(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	entries, err := dir.Entries(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, len(entries))
	for i, e := range entries {
		result[i] = DirEntry{Name: e.Name, IsDir: e.IsDir}
	}
	return result, nil
}

// ReadToString reads the whole file at the given path.
func (s *SandboxFS) ReadToString(ctx context.Context, req PathRequest) (string, error) {
	f, err := s.getFileHandle(ctx, req.Path, false)
	if err != nil {
		return "", err
	}
	data, err := f.ReadAll(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RemoveDir removes an empty directory.
func (s *SandboxFS) RemoveDir(ctx context.Context, req PathRequest) error {
	path := clean(req.Path)
	if path == Root {
		return invalidName("remove_dir", path)
	}
	if _, err := s.getDirectoryHandle(ctx, path); err != nil {
		return err
	}
	parent, err := s.getDirectoryHandle(ctx, DirectoryName(path))
	if err != nil {
		return err
	}
	if err := parent.RemoveEntry(ctx, Filename(path), false); err != nil {
		return err
	}
	s.evict(path)
	return nil
}

// RemoveDirRecursive removes every entry below the directory, then the
// directory itself.
func (s *SandboxFS) RemoveDirRecursive(ctx context.Context, req PathRequest) error {
	path := clean(req.Path)
	dir, err := s.getDirectoryHandle(ctx, path)
	if err != nil {
		return err
	}
	entries, err := dir.Entries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := PathRequest{Path: JoinPath(path, e.Name)}
		if e.IsDir {
			err = s.RemoveDirRecursive(ctx, child)
		} else {
			err = s.RemoveFile(ctx, child)
		}
		if err != nil {
			return err
		}
	}
	return s.RemoveDir(ctx, PathRequest{Path: path})
}

// RemoveFile removes a single file.
func (s *SandboxFS) RemoveFile(ctx context.Context, req PathRequest) error {
	path := clean(req.Path)
	if _, err := s.getFileHandle(ctx, path, false); err != nil {
		return err
	}
	parent, err := s.getDirectoryHandle(ctx, DirectoryName(path))
	if err != nil {
		return err
	}
	return parent.RemoveEntry(ctx, Filename(path), false)
}

// Rename moves a file by copying it and then deleting the source. It is not
// atomic: a failure after the copy leaves both entries in place. Directories
// cannot be renamed.
func (s *SandboxFS) Rename(ctx context.Context, req RenameRequest) error {
	from, to := clean(req.From), clean(req.To)
	if from == to {
		return nil
	}
	if _, err := s.getDirectoryHandle(ctx, from); err == nil {
		return pathErr("rename", from, fmt.Errorf("%w: directories cannot be renamed in sandbox storage", ErrTypeMismatch))
	} else if !errors.Is(err, ErrTypeMismatch) && !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.CopyFile(ctx, CopyFileRequest{From: from, To: to}); err != nil {
		return err
	}
	return s.RemoveFile(ctx, PathRequest{Path: from})
}

// WriteFile replaces the file contents, creating the file if needed.
func (s *SandboxFS) WriteFile(ctx context.Context, req WriteFileRequest) (uint64, error) {
	f, err := s.getFileHandle(ctx, req.Path, true)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(ctx, []byte(req.Contents))
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
