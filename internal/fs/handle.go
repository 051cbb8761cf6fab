package fs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// HandleEntry is one child reported by a DirectoryHandle.
type HandleEntry struct {
	Name  string
	IsDir bool
}

// DirectoryHandle is an opaque, cacheable reference to a resolved directory
// in sandboxed storage.
type DirectoryHandle interface {
	Name() string
	// GetDirectoryHandle resolves the named child directory, creating it when
	// create is set. A child that is a file yields ErrTypeMismatch.
	GetDirectoryHandle(ctx context.Context, name string, create bool) (DirectoryHandle, error)
	// GetFileHandle resolves the named child file, creating it when create is set.
	GetFileHandle(ctx context.Context, name string, create bool) (FileHandle, error)
	// RemoveEntry removes the named child. A non-empty directory requires recursive.
	RemoveEntry(ctx context.Context, name string, recursive bool) error
	Entries(ctx context.Context) ([]HandleEntry, error)
}

// FileHandle references a single file in sandboxed storage.
type FileHandle interface {
	Name() string
	ReadAll(ctx context.Context) ([]byte, error)
	// Write replaces the file contents.
	Write(ctx context.Context, data []byte) (int64, error)
}

// NewMemoryStorage returns the root handle of an empty in-memory sandbox.
func NewMemoryStorage() DirectoryHandle {
	root, _ := NewAferoStorage(afero.NewMemMapFs())
	return root
}

// NewDiskStorage returns the root handle of a sandbox persisted below dir.
func NewDiskStorage(dir string) (DirectoryHandle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox dir %s: %w", dir, err)
	}
	return NewAferoStorage(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewAferoStorage returns the root handle of a sandbox stored in afs.
func NewAferoStorage(afs afero.Fs) (DirectoryHandle, error) {
	if err := afs.MkdirAll(Root, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}
	return &aferoDir{fs: afs, path: Root, name: Root}, nil
}

type aferoDir struct {
	fs   afero.Fs
	path string
	name string
}

func (d *aferoDir) Name() string { return d.name }

func (d *aferoDir) child(ctx context.Context, op, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !IsValidName(name) {
		return "", invalidName(op, name)
	}
	return JoinPath(d.path, name), nil
}

func (d *aferoDir) GetDirectoryHandle(ctx context.Context, name string, create bool) (DirectoryHandle, error) {
	p, err := d.child(ctx, "getDirectoryHandle", name)
	if err != nil {
		return nil, err
	}
	info, err := d.fs.Stat(p)
	switch {
	case err == nil && !info.IsDir():
		return nil, pathErr("getDirectoryHandle", p, ErrTypeMismatch)
	case err == nil:
	case !errors.Is(err, os.ErrNotExist):
		return nil, pathErr("getDirectoryHandle", p, err)
	case !create:
		return nil, pathErr("getDirectoryHandle", p, ErrNotFound)
	default:
		if err := d.fs.Mkdir(p, 0o755); err != nil {
			return nil, pathErr("getDirectoryHandle", p, err)
		}
	}
	return &aferoDir{fs: d.fs, path: p, name: name}, nil
}

func (d *aferoDir) GetFileHandle(ctx context.Context, name string, create bool) (FileHandle, error) {
	p, err := d.child(ctx, "getFileHandle", name)
	if err != nil {
		return nil, err
	}
	info, err := d.fs.Stat(p)
	switch {
	case err == nil && info.IsDir():
		return nil, pathErr("getFileHandle", p, ErrTypeMismatch)
	case err == nil:
	case !errors.Is(err, os.ErrNotExist):
		return nil, pathErr("getFileHandle", p, err)
	case !create:
		return nil, pathErr("getFileHandle", p, ErrNotFound)
	default:
		f, err := d.fs.Create(p)
		if err != nil {
			return nil, pathErr("getFileHandle", p, err)
		}
		if err := f.Close(); err != nil {
			return nil, pathErr("getFileHandle", p, err)
		}
	}
	return &aferoFile{fs: d.fs, path: p, name: name}, nil
}

func (d *aferoDir) RemoveEntry(ctx context.Context, name string, recursive bool) error {
	p, err := d.child(ctx, "removeEntry", name)
	if err != nil {
		return err
	}
	info, err := d.fs.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pathErr("removeEntry", p, ErrNotFound)
		}
		return pathErr("removeEntry", p, err)
	}
	if info.IsDir() {
		if recursive {
			if err := d.fs.RemoveAll(p); err != nil {
				return pathErr("removeEntry", p, err)
			}
			return nil
		}
		empty, err := afero.IsEmpty(d.fs, p)
		if err != nil {
			return pathErr("removeEntry", p, err)
		}
		if !empty {
			return pathErr("removeEntry", p, ErrNonEmptyDirectory)
		}
	}
	if err := d.fs.Remove(p); err != nil {
		return pathErr("removeEntry", p, err)
	}
	return nil
}

func (d *aferoDir) Entries(ctx context.Context) ([]HandleEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pathErr("entries", d.path, ErrNotFound)
		}
		return nil, pathErr("entries", d.path, err)
	}
	entries := make([]HandleEntry, len(infos))
	for i, info := range infos {
		entries[i] = HandleEntry{Name: info.Name(), IsDir: info.IsDir()}
	}
	return entries, nil
}

type aferoFile struct {
	fs   afero.Fs
	path string
	name string
}

func (f *aferoFile) Name() string { return f.name }

func (f *aferoFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pathErr("read", f.path, ErrNotFound)
		}
		return nil, pathErr("read", f.path, err)
	}
	return data, nil
}

func (f *aferoFile) Write(ctx context.Context, data []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := afero.WriteFile(f.fs, f.path, data, 0o644); err != nil {
		return 0, pathErr("write", f.path, err)
	}
	return int64(len(data)), nil
}
