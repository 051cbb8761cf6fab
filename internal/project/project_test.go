package project

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T) *workspace.Workspace {
	t.Helper()
	return workspace.New(fs.NewSandboxFS(fs.NewMemoryStorage()), tree.NewRoot(fs.Root))
}

func newSQLStore(t *testing.T, ws *workspace.Workspace) *SQLStore {
	t.Helper()
	db, err := OpenDB(DriverDuckDB, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLStore(db, ws, nil)
	require.NoError(t, store.Init(context.Background()))
	return store
}

// populate builds /src/main.ez, /src/lib/util.ez, /README and an empty /empty.
func populate(t *testing.T, ws *workspace.Workspace, body string) {
	t.Helper()
	ctx := context.Background()
	root := ws.Root()

	lib, err := ws.CreateDirWithParents(ctx, root, "src/lib")
	require.NoError(t, err)
	src := lib.Parent()

	main, err := ws.CreateFile(ctx, src, "main.ez")
	require.NoError(t, err)
	_, err = ws.WriteFile(ctx, main, body)
	require.NoError(t, err)

	util, err := ws.CreateFile(ctx, lib, "util.ez")
	require.NoError(t, err)
	_, err = ws.WriteFile(ctx, util, "util")
	require.NoError(t, err)

	_, err = ws.CreateFile(ctx, root, "README")
	require.NoError(t, err)
	_, err = ws.CreateDir(ctx, root, "empty")
	require.NoError(t, err)
}

// contents maps every path below the workspace root to its file contents,
// or to "/" for directories.
func contents(t *testing.T, ws *workspace.Workspace) map[string]string {
	t.Helper()
	out := make(map[string]string)
	require.NoError(t, tree.Walk(ws.Root(), func(item tree.Item) error {
		if item.IsDir() {
			out[item.Path()] = "/"
			return nil
		}
		s, err := ws.ReadToString(context.Background(), item.(*tree.File))
		out[item.Path()] = s
		return err
	}))
	return out
}

func TestSnapshot_Shape(t *testing.T) {
	ws := newSandbox(t)
	populate(t, ws, "add $t0 $t0 1")

	snap, err := Serialize(context.Background(), ws, ws.Root(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", snap.Name)
	assert.True(t, snap.IsDir)
	assert.Nil(t, snap.Contents)
	require.Len(t, snap.Children, 3)

	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"README","isDir":false,"contents":"","children":null`)
	assert.Contains(t, string(data), `"name":"empty","isDir":true,"contents":null,"children":[]`)

	back, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
}

func TestSQLStore_RoundTrip(t *testing.T) {
	ws := newSandbox(t)
	store := newSQLStore(t, ws)
	ctx := context.Background()

	populate(t, ws, "add $t0 $t0 1")
	want := contents(t, ws)

	require.NoError(t, store.Save(ctx, ws.Root(), "demo"))
	require.Contains(t, store.Projects(), "demo")
	assert.Equal(t, "/", store.Projects()["demo"].RootPath)

	require.NoError(t, store.Close(ctx))
	assert.Equal(t, 0, ws.Root().Len())
	entries, err := ws.Backend().ReadDir(ctx, fs.PathRequest{Path: "/"})
	require.NoError(t, err)
	assert.Empty(t, entries)

	root, err := store.Get(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, root)
	ws.SetRoot(root)
	require.NoError(t, ws.Sync(ctx))

	assert.Equal(t, want, contents(t, ws))
}

func TestSQLStore_Overwrite(t *testing.T) {
	ws := newSandbox(t)
	store := newSQLStore(t, ws)
	ctx := context.Background()

	populate(t, ws, "first")
	require.NoError(t, store.Save(ctx, ws.Root(), "demo"))

	require.NoError(t, store.Close(ctx))
	populate(t, ws, "second")
	require.NoError(t, store.Save(ctx, ws.Root(), "demo"))
	assert.Len(t, store.Projects(), 1)

	require.NoError(t, store.Close(ctx))
	root, err := store.Get(ctx, "demo")
	require.NoError(t, err)
	ws.SetRoot(root)
	require.NoError(t, ws.Sync(ctx))

	assert.Equal(t, "second", contents(t, ws)["/src/main.ez"])
}

func TestSQLStore_MissingAndDelete(t *testing.T) {
	ws := newSandbox(t)
	store := newSQLStore(t, ws)
	ctx := context.Background()

	root, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, root)

	require.NoError(t, store.Save(ctx, ws.Root(), "demo"))
	require.NoError(t, store.Delete(ctx, "demo"))
	assert.Empty(t, store.Projects())
	assert.ErrorIs(t, store.Delete(ctx, "demo"), fs.ErrNotFound)

	root, err = store.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Nil(t, root)

	assert.ErrorIs(t, store.Save(ctx, ws.Root(), "a/b"), fs.ErrInvalidName)
}

func TestSQLStore_InitIsIdempotent(t *testing.T) {
	ws := newSandbox(t)
	store := newSQLStore(t, ws)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ws.Root(), "demo"))
	require.NoError(t, store.Init(ctx))
	assert.Contains(t, store.Projects(), "demo")

	var n int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestHostStore(t *testing.T) {
	dir := t.TempDir()
	backend := fs.NewLocalFS("")
	dataDir := filepath.ToSlash(filepath.Join(dir, "data"))
	ctx := context.Background()

	store := NewHostStore(backend, dataDir, nil)
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }
	require.NoError(t, store.Init(ctx))
	assert.Empty(t, store.Projects())

	projRoot := tree.NewRoot(filepath.ToSlash(filepath.Join(dir, "proj")))
	require.NoError(t, store.Save(ctx, projRoot, "demo"))

	data, err := os.ReadFile(filepath.Join(dir, "data", IndexFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"demo":{"lastModified":1700000000000,"rootPath":"`+projRoot.Path()+`"}}`, string(data))

	reloaded := NewHostStore(backend, dataDir, nil)
	require.NoError(t, reloaded.Init(ctx))
	assert.Equal(t, Entry{LastModified: 1700000000000, RootPath: projRoot.Path()}, reloaded.Projects()["demo"])

	root, err := reloaded.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, projRoot.Path(), root.Path())
	require.NoError(t, reloaded.Close(ctx))

	missing, err := reloaded.Get(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, reloaded.Delete(ctx, "demo"))
	assert.Empty(t, reloaded.Projects())
}

func TestExport(t *testing.T) {
	ws := newSandbox(t)
	populate(t, ws, "body")

	var buf bytes.Buffer
	require.NoError(t, Export(context.Background(), ws, ws.Root(), &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{
		"README":          "",
		"empty/":          "",
		"src/":            "",
		"src/lib/":        "",
		"src/lib/util.ez": "util",
		"src/main.ez":     "body",
	}, files)
}
