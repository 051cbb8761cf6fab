package handler

import (
	"net/http"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/session"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TreeNode represents a file or directory in the tree
type TreeNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Path     string      `json:"path"`
	Hash     uint64      `json:"hash,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// WorkspaceHandler handles tree, file and entry API requests against the
// session's workspace
type WorkspaceHandler struct {
	sess   *session.Session
	events *WSHandler
	logger *zap.Logger
}

// NewWorkspaceHandler creates a new workspace handler. events may be nil.
func NewWorkspaceHandler(sess *session.Session, events *WSHandler, logger *zap.Logger) *WorkspaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceHandler{sess: sess, events: events, logger: logger}
}

func (h *WorkspaceHandler) ws() *workspace.Workspace {
	return h.sess.Workspace()
}

// changed notifies clients that op modified path
func (h *WorkspaceHandler) changed(op, path string) {
	if h.events == nil {
		return
	}
	h.events.OnTreeChange(op, path, h.ws().Root().ModifiedHash())
}

// GetTree returns the tree below ?path=, or the whole tree
func (h *WorkspaceHandler) GetTree(c *gin.Context) {
	ws := h.ws()
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusOK, buildTree(ws.Root()))
		return
	}

	item, err := ws.Resolve(c.Request.Context(), path)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTree(item))
}

// RefreshTree re-reads a directory from the backend
func (h *WorkspaceHandler) RefreshTree(c *gin.Context) {
	var req struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	ctx := c.Request.Context()
	ws := h.ws()
	if req.Path == "" {
		if err := ws.Sync(ctx); err != nil {
			respondError(c, err)
			return
		}
		h.changed("refresh", ws.Root().Path())
		c.JSON(http.StatusOK, buildTree(ws.Root()))
		return
	}

	item, err := ws.Resolve(ctx, req.Path)
	if err != nil {
		respondError(c, err)
		return
	}
	dir, ok := item.(*tree.Dir)
	if !ok {
		respondError(c, &fs.PathError{Op: fs.OpReadDir, Path: item.Path(), Err: fs.ErrTypeMismatch})
		return
	}
	if req.Recursive {
		err = ws.ReadDir(ctx, dir)
	} else {
		_, err = ws.List(ctx, dir)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.changed("refresh", dir.Path())
	c.JSON(http.StatusOK, buildTree(dir))
}

func buildTree(item tree.Item) *TreeNode {
	node := &TreeNode{
		Name: item.Name(),
		Type: "file",
		Path: item.Path(),
	}
	dir, ok := item.(*tree.Dir)
	if !ok {
		return node
	}

	node.Type = "directory"
	node.Hash = dir.ModifiedHash()
	for _, child := range dir.SortedChildren() {
		node.Children = append(node.Children, buildTree(child))
	}
	return node
}
