package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CageChen/ezworkspace/internal/config"
	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/session"
	"github.com/CageChen/ezworkspace/internal/transport"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// hostServer serves a LocalFS rooted at a temp dir on /api/host.
func hostServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	srv := httptest.NewServer(NewRouter(RouterOptions{Host: fs.NewLocalFS(dir)}))
	t.Cleanup(srv.Close)
	return srv, dir
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// exerciseHost runs the same calls against a host backend over any transport.
func exerciseHost(t *testing.T, host fs.Backend, dir string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, host.CreateDir(ctx, fs.PathRequest{Path: "/docs"}))
	n, err := host.WriteFile(ctx, fs.WriteFileRequest{Path: "/docs/a.md", Contents: "hello"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	data, err := os.ReadFile(filepath.Join(dir, "docs", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	got, err := host.ReadToString(ctx, fs.PathRequest{Path: "/docs/a.md"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	entries, err := host.ReadDir(ctx, fs.PathRequest{Path: "/docs"})
	require.NoError(t, err)
	assert.Equal(t, []fs.DirEntry{{Name: "a.md", IsDir: false}}, entries)

	n, err = host.CopyFile(ctx, fs.CopyFileRequest{From: "/docs/a.md", To: "/docs/b.md"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
	require.NoError(t, host.Rename(ctx, fs.RenameRequest{From: "/docs/b.md", To: "/c.md"}))

	// Error classes survive the trip
	_, err = host.ReadToString(ctx, fs.PathRequest{Path: "/missing"})
	assert.ErrorIs(t, err, fs.ErrNotFound)
	err = host.RemoveDir(ctx, fs.PathRequest{Path: "/docs"})
	assert.ErrorIs(t, err, fs.ErrNonEmptyDirectory)
	err = host.CreateFile(ctx, fs.PathRequest{Path: "/c.md"})
	assert.ErrorIs(t, err, fs.ErrAlreadyExists)

	require.NoError(t, host.RemoveDirRecursive(ctx, fs.PathRequest{Path: "/docs"}))
	require.NoError(t, host.RemoveFile(ctx, fs.PathRequest{Path: "/c.md"}))
	entries, err = host.ReadDir(ctx, fs.PathRequest{Path: "/"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHost_HTTP(t *testing.T) {
	srv, dir := hostServer(t)
	exerciseHost(t, fs.NewHostFS(transport.NewHTTPInvoker(srv.URL)), dir)
}

func TestHost_WebSocket(t *testing.T) {
	srv, dir := hostServer(t)
	inv, err := transport.DialWS(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/host/ws")
	require.NoError(t, err)
	t.Cleanup(func() { _ = inv.Close() })

	exerciseHost(t, fs.NewHostFS(inv), dir)
}

func TestHost_UnknownOp(t *testing.T) {
	r := NewRouter(RouterOptions{Host: fs.NewLocalFS(t.TempDir())})
	w := do(t, r, http.MethodPost, "/api/host/format_disk", fs.PathRequest{Path: "/"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/host/read_to_string", fs.PathRequest{Path: "/nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp transport.Response
	decodeBody(t, w, &resp)
	assert.Equal(t, "not_found", resp.Code)
}

func TestSession_OverHost(t *testing.T) {
	srv, dir := hostServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "proj", "src"), 0o755))

	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendHost
	cfg.Host.URL = srv.URL
	cfg.Host.Root = "/proj"
	cfg.Host.DataDir = "/.ezworkspace"
	ctx := context.Background()

	sess, err := session.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer sess.Close()

	ws := sess.Workspace()
	assert.Equal(t, fs.KindHost, ws.Backend().Kind())
	_, ok := ws.GetItem("/proj/src")
	require.True(t, ok)

	f, err := ws.CreateFile(ctx, ws.Root(), "src/main.ez")
	require.NoError(t, err)
	_, err = ws.WriteFile(ctx, f, "body")
	require.NoError(t, err)
	require.NoError(t, sess.SaveProject(ctx, "proj"))

	index, err := os.ReadFile(filepath.Join(dir, ".ezworkspace", "projects.json"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `"rootPath":"/proj"`)

	// Closing a host project never touches its files
	require.NoError(t, sess.CloseProject(ctx))
	require.NoError(t, sess.OpenProject(ctx, "proj"))
	data, err := os.ReadFile(filepath.Join(dir, "proj", "src", "main.ez"))
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestSession_OverHostTrailingSlashRoot(t *testing.T) {
	srv, dir := hostServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "proj", "src"), 0o755))

	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendHost
	cfg.Host.URL = srv.URL
	cfg.Host.Root = "/proj/"
	cfg.Host.DataDir = "/.ezworkspace"
	require.NoError(t, cfg.Validate())
	ctx := context.Background()

	sess, err := session.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer sess.Close()

	ws := sess.Workspace()
	assert.Equal(t, "/proj", ws.Root().Path())
	src, ok := ws.GetItem("/proj/src")
	require.True(t, ok)
	assert.Equal(t, "/proj/src", src.Path())

	f, err := ws.CreateFile(ctx, ws.Root(), "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/proj/b.txt", f.Path())
	_, err = os.Stat(filepath.Join(dir, "proj", "b.txt"))
	require.NoError(t, err)
}

func newSandboxRouter(t *testing.T) http.Handler {
	t.Helper()
	sess, err := session.Open(context.Background(), config.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return NewRouter(RouterOptions{Session: sess})
}

func TestWorkspaceAPI(t *testing.T) {
	r := newSandboxRouter(t)

	w := do(t, r, http.MethodPost, "/api/entries", CreateEntryRequest{Path: "/src/lib", Type: EntryDir, Parents: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/files/src/main.ez", gin.H{"contents": "add $t0 $t0 1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/files/src/main.ez", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var file FileResponse
	decodeBody(t, w, &file)
	assert.Equal(t, FileResponse{Path: "/src/main.ez", Contents: "add $t0 $t0 1"}, file)

	w = do(t, r, http.MethodGet, "/api/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var root TreeNode
	decodeBody(t, w, &root)
	assert.Equal(t, "directory", root.Type)
	assert.NotZero(t, root.Hash)
	require.Len(t, root.Children, 1)
	src := root.Children[0]
	require.Len(t, src.Children, 2)
	assert.Equal(t, "lib", src.Children[0].Name)
	assert.Equal(t, "main.ez", src.Children[1].Name)

	w = do(t, r, http.MethodPost, "/api/entries", CreateEntryRequest{Path: "/nope/a.ez", Type: EntryFile})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = do(t, r, http.MethodPost, "/api/entries", CreateEntryRequest{Path: "/src/main.ez", Type: EntryFile})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, r, http.MethodPost, "/api/entries", CreateEntryRequest{Path: "/src/main.ez", Type: "link"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/copy", MoveRequest{From: "/src/main.ez", To: "/src/lib/copy.ez"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, r, http.MethodPost, "/api/rename", MoveRequest{From: "/src/lib/copy.ez", To: "/moved.ez"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, r, http.MethodGet, "/api/files/moved.ez", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &file)
	assert.Equal(t, "add $t0 $t0 1", file.Contents)

	w = do(t, r, http.MethodDelete, "/api/entries/src", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, r, http.MethodDelete, "/api/entries/src?recursive=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/files/src/main.ez", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/tree/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &root)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "moved.ez", root.Children[0].Name)
}

func TestProjectAPI(t *testing.T) {
	r := newSandboxRouter(t)

	w := do(t, r, http.MethodPut, "/api/files/main.ez", gin.H{"contents": "v1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, r, http.MethodPost, "/api/projects/demo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Projects []ProjectInfo `json:"projects"`
		Current  string        `json:"current"`
	}
	decodeBody(t, w, &list)
	require.Len(t, list.Projects, 1)
	assert.Equal(t, "demo", list.Projects[0].Name)
	assert.Equal(t, "/", list.Projects[0].RootPath)
	assert.Equal(t, "demo", list.Current)

	w = do(t, r, http.MethodGet, "/api/projects/demo/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "main.ez", zr.File[0].Name)

	w = do(t, r, http.MethodPost, "/api/projects/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/files/main.ez", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/projects/demo/open", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, r, http.MethodGet, "/api/files/main.ez", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/projects/missing/open", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, "/api/projects/demo", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fs.ErrNotFound, http.StatusNotFound},
		{&fs.PathError{Op: "x", Path: "/a", Err: fs.ErrAlreadyExists}, http.StatusConflict},
		{fs.ErrNonEmptyDirectory, http.StatusConflict},
		{fs.ErrTypeMismatch, http.StatusConflict},
		{fs.ErrInvalidName, http.StatusBadRequest},
		{fs.ErrParentMissing, http.StatusUnprocessableEntity},
		{transport.ErrUnknownOp, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
