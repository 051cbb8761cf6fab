package fs

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) *SandboxFS {
	t.Helper()
	return NewSandboxFS(NewMemoryStorage())
}

func TestSandboxFS_CreateAndRead(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, PathRequest{Path: "/src"}))
	assert.ErrorIs(t, s.CreateDir(ctx, PathRequest{Path: "/src"}), ErrAlreadyExists)

	require.NoError(t, s.CreateFile(ctx, PathRequest{Path: "/src/main.go"}))
	assert.ErrorIs(t, s.CreateFile(ctx, PathRequest{Path: "/src/main.go"}), ErrAlreadyExists)

	n, err := s.WriteFile(ctx, WriteFileRequest{Path: "/src/main.go", Contents: "hello"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	got, err := s.ReadToString(ctx, PathRequest{Path: "/src/main.go"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	entries, err := s.ReadDir(ctx, PathRequest{Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "src", IsDir: true}}, entries)

	entries, err = s.ReadDir(ctx, PathRequest{Path: "/src"})
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "main.go", IsDir: false}}, entries)
}

func TestSandboxFS_MissingParent(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.CreateDir(ctx, PathRequest{Path: "/missing/x"}), ErrNotFound)
	assert.ErrorIs(t, s.CreateFile(ctx, PathRequest{Path: "/missing/x.txt"}), ErrNotFound)
	_, err := s.ReadToString(ctx, PathRequest{Path: "/nope.txt"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSandboxFS_TypeMismatch(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	require.NoError(t, s.CreateFile(ctx, PathRequest{Path: "/f.txt"}))
	require.NoError(t, s.CreateDir(ctx, PathRequest{Path: "/d"}))

	_, err := s.ReadDir(ctx, PathRequest{Path: "/f.txt"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = s.ReadToString(ctx, PathRequest{Path: "/d"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.ErrorIs(t, s.RemoveFile(ctx, PathRequest{Path: "/d"}), ErrTypeMismatch)
	assert.ErrorIs(t, s.RemoveDir(ctx, PathRequest{Path: "/f.txt"}), ErrTypeMismatch)
}

func TestSandboxFS_CreateDirWithParents(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDirWithParents(ctx, PathRequest{Path: "/a/b/c"}))
	require.NoError(t, s.CreateDirWithParents(ctx, PathRequest{Path: "/a/b/c"}))

	entries, err := s.ReadDir(ctx, PathRequest{Path: "/a/b"})
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "c", IsDir: true}}, entries)

	require.NoError(t, s.CreateFile(ctx, PathRequest{Path: "/a/file"}))
	err = s.CreateDirWithParents(ctx, PathRequest{Path: "/a/file/x"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSandboxFS_RemoveDirRecursive(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDirWithParents(ctx, PathRequest{Path: "/a/b/c"}))
	_, err := s.WriteFile(ctx, WriteFileRequest{Path: "/a/b/one.txt", Contents: "1"})
	require.NoError(t, err)
	_, err = s.WriteFile(ctx, WriteFileRequest{Path: "/a/b/c/two.txt", Contents: "2"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.RemoveDir(ctx, PathRequest{Path: "/a"}), ErrNonEmptyDirectory)

	require.NoError(t, s.RemoveDirRecursive(ctx, PathRequest{Path: "/a"}))

	_, err = s.ReadDir(ctx, PathRequest{Path: "/a"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ReadDir(ctx, PathRequest{Path: "/a/b/c"})
	assert.ErrorIs(t, err, ErrNotFound)

	s.mu.Lock()
	assert.Len(t, s.dirCache, 1, "only the root handle stays cached")
	s.mu.Unlock()

	require.NoError(t, s.CreateDir(ctx, PathRequest{Path: "/a"}))
	entries, err := s.ReadDir(ctx, PathRequest{Path: "/a"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSandboxFS_RemoveRoot(t *testing.T) {
	s := newTestSandbox(t)
	assert.ErrorIs(t, s.RemoveDir(context.Background(), PathRequest{Path: "/"}), ErrInvalidName)
}

func TestSandboxFS_CopyFile(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	_, err := s.WriteFile(ctx, WriteFileRequest{Path: "/a.txt", Contents: "abcdef"})
	require.NoError(t, err)

	n, err := s.CopyFile(ctx, CopyFileRequest{From: "/a.txt", To: "/b.txt"})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)

	got, err := s.ReadToString(ctx, PathRequest{Path: "/b.txt"})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", got)
}

func TestSandboxFS_Rename(t *testing.T) {
	s := newTestSandbox(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, PathRequest{Path: "/src"}))
	_, err := s.WriteFile(ctx, WriteFileRequest{Path: "/src/a.txt", Contents: "x"})
	require.NoError(t, err)

	require.NoError(t, s.Rename(ctx, RenameRequest{From: "/src/a.txt", To: "/b.txt"}))

	_, err = s.ReadToString(ctx, PathRequest{Path: "/src/a.txt"})
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.ReadToString(ctx, PathRequest{Path: "/b.txt"})
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	require.NoError(t, s.Rename(ctx, RenameRequest{From: "/b.txt", To: "/b.txt"}))
	_, err = s.ReadToString(ctx, PathRequest{Path: "/b.txt"})
	require.NoError(t, err)

	err = s.Rename(ctx, RenameRequest{From: "/src", To: "/dst"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSandboxFS_DiskStorage(t *testing.T) {
	dir := t.TempDir()
	root, err := NewDiskStorage(dir)
	require.NoError(t, err)
	s := NewSandboxFS(root)
	ctx := context.Background()

	require.NoError(t, s.CreateDirWithParents(ctx, PathRequest{Path: "/p/q"}))
	_, err = s.WriteFile(ctx, WriteFileRequest{Path: "/p/q/r.txt", Contents: "disk"})
	require.NoError(t, err)

	data, err := afero.ReadFile(afero.NewOsFs(), dir+"/p/q/r.txt")
	require.NoError(t, err)
	assert.Equal(t, "disk", string(data))
}
