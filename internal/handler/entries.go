package handler

import (
	"net/http"
	"strings"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/gin-gonic/gin"
)

// Entry kinds accepted by CreateEntry
const (
	EntryFile = "file"
	EntryDir  = "directory"
)

// CreateEntryRequest creates a file or directory at an absolute path
type CreateEntryRequest struct {
	Path    string `json:"path" binding:"required"`
	Type    string `json:"type" binding:"required"`
	Parents bool   `json:"parents"`
}

// MoveRequest names a source and a destination path
type MoveRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// CreateEntry creates a file, a directory, or a directory with its parents
func (h *WorkspaceHandler) CreateEntry(c *gin.Context) {
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "path and type are required")
		return
	}

	ctx := c.Request.Context()
	ws := h.ws()
	path := fs.JoinPath(fs.Root, req.Path)

	var (
		item tree.Item
		err  error
	)
	switch {
	case req.Type == EntryDir && req.Parents:
		root := ws.Root()
		rel, ok := strings.CutPrefix(path, root.Path())
		if !ok || (root.Path() != fs.Root && rel != "" && !strings.HasPrefix(rel, "/")) {
			respondError(c, &fs.PathError{Op: fs.OpCreateDirWithParents, Path: path, Err: fs.ErrParentMissing})
			return
		}
		item, err = ws.CreateDirWithParents(ctx, root, strings.TrimPrefix(rel, "/"))
	case req.Type == EntryDir, req.Type == EntryFile:
		parent, perr := h.parentDir(ctx, path)
		if perr != nil {
			respondError(c, perr)
			return
		}
		if req.Type == EntryDir {
			item, err = ws.CreateDir(ctx, parent, fs.Filename(path))
		} else {
			item, err = ws.CreateFile(ctx, parent, fs.Filename(path))
		}
	default:
		badRequest(c, "type must be file or directory")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.changed("create", item.Path())
	c.JSON(http.StatusCreated, buildTree(item))
}

// DeleteEntry removes a file or directory. Non-empty directories need
// ?recursive=true.
func (h *WorkspaceHandler) DeleteEntry(c *gin.Context) {
	ctx := c.Request.Context()
	ws := h.ws()

	item, err := ws.Resolve(ctx, c.Param("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	path := item.Path()

	switch v := item.(type) {
	case *tree.File:
		err = ws.RemoveFile(ctx, v)
	case *tree.Dir:
		if c.Query("recursive") == "true" {
			err = ws.RemoveDirRecursive(ctx, v)
		} else {
			err = ws.RemoveDir(ctx, v)
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.changed("remove", path)
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// Rename moves a file or directory
func (h *WorkspaceHandler) Rename(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "from and to are required")
		return
	}

	ctx := c.Request.Context()
	ws := h.ws()
	item, err := ws.Resolve(ctx, req.From)
	if err != nil {
		respondError(c, err)
		return
	}
	to := fs.JoinPath(fs.Root, req.To)
	// Bring the destination directory into the tree
	if _, err := h.parentDir(ctx, to); err != nil {
		respondError(c, err)
		return
	}

	from := item.Path()
	if err := ws.Rename(ctx, item, to); err != nil {
		respondError(c, err)
		return
	}

	h.changed(fs.OpRename, item.Path())
	c.JSON(http.StatusOK, gin.H{
		"from": from,
		"to":   item.Path(),
	})
}

// Copy copies a file, overwriting the destination
func (h *WorkspaceHandler) Copy(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "from and to are required")
		return
	}

	ctx := c.Request.Context()
	ws := h.ws()
	item, err := ws.Resolve(ctx, req.From)
	if err != nil {
		respondError(c, err)
		return
	}
	src, ok := item.(*tree.File)
	if !ok {
		respondError(c, &fs.PathError{Op: fs.OpCopy, Path: item.Path(), Err: fs.ErrTypeMismatch})
		return
	}
	to := fs.JoinPath(fs.Root, req.To)
	parent, err := h.parentDir(ctx, to)
	if err != nil {
		respondError(c, err)
		return
	}

	dst, n, err := ws.CopyFile(ctx, src, parent, fs.Filename(to))
	if err != nil {
		respondError(c, err)
		return
	}

	h.changed(fs.OpCopy, dst.Path())
	c.JSON(http.StatusOK, gin.H{
		"path":  dst.Path(),
		"bytes": n,
	})
}
