// Package handler provides HTTP handlers for the ezworkspace REST API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/gin-gonic/gin"
)

// FileResponse represents the response for a file request
type FileResponse struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// GetFile returns the contents of a file
func (h *WorkspaceHandler) GetFile(c *gin.Context) {
	ctx := c.Request.Context()
	ws := h.ws()

	item, err := ws.Resolve(ctx, c.Param("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	file, ok := item.(*tree.File)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "path is a directory",
		})
		return
	}

	contents, err := ws.ReadToString(ctx, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FileResponse{Path: file.Path(), Contents: contents})
}

// PutFile replaces the contents of a file, creating it when missing
func (h *WorkspaceHandler) PutFile(c *gin.Context) {
	var req struct {
		Contents string `json:"contents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	ws := h.ws()
	path := fs.JoinPath(fs.Root, c.Param("path"))

	var file *tree.File
	item, err := ws.Resolve(ctx, path)
	switch {
	case err == nil:
		f, ok := item.(*tree.File)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "path is a directory",
			})
			return
		}
		file = f
	case errors.Is(err, fs.ErrNotFound):
		parent, err := h.parentDir(ctx, path)
		if err != nil {
			respondError(c, err)
			return
		}
		if file, err = ws.CreateFile(ctx, parent, fs.Filename(path)); err != nil {
			respondError(c, err)
			return
		}
	default:
		respondError(c, err)
		return
	}

	n, err := ws.WriteFile(ctx, file, req.Contents)
	if err != nil {
		respondError(c, err)
		return
	}
	h.changed(fs.OpWriteFile, file.Path())
	c.JSON(http.StatusOK, gin.H{
		"path":  file.Path(),
		"bytes": n,
	})
}

// parentDir resolves the directory that would contain path. A missing
// parent is reported as fs.ErrParentMissing.
func (h *WorkspaceHandler) parentDir(ctx context.Context, path string) (*tree.Dir, error) {
	dirPath := fs.DirectoryName(path)
	item, err := h.ws().Resolve(ctx, dirPath)
	if errors.Is(err, fs.ErrNotFound) {
		return nil, &fs.PathError{Op: "resolve", Path: path, Err: fs.ErrParentMissing}
	}
	if err != nil {
		return nil, err
	}
	dir, ok := item.(*tree.Dir)
	if !ok {
		return nil, &fs.PathError{Op: "resolve", Path: dirPath, Err: fs.ErrTypeMismatch}
	}
	return dir, nil
}
