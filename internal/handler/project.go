package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/CageChen/ezworkspace/internal/project"
	"github.com/CageChen/ezworkspace/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProjectInfo is one saved project in a listing
type ProjectInfo struct {
	Name string `json:"name"`
	project.Entry
}

// ProjectHandler handles project persistence API requests
type ProjectHandler struct {
	sess   *session.Session
	events *WSHandler
	logger *zap.Logger
}

// NewProjectHandler creates a new project handler. events may be nil.
func NewProjectHandler(sess *session.Session, events *WSHandler, logger *zap.Logger) *ProjectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectHandler{sess: sess, events: events, logger: logger}
}

// ListProjects returns saved projects ordered by name
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	index := h.sess.Projects()
	projects := make([]ProjectInfo, 0, len(index))
	for name, entry := range index {
		projects = append(projects, ProjectInfo{Name: name, Entry: entry})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"current":  h.sess.Current(),
	})
}

// SaveProject saves the current tree under :name
func (h *ProjectHandler) SaveProject(c *gin.Context) {
	name := c.Param("name")
	if err := h.sess.SaveProject(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("project saved", zap.String("name", name))
	c.JSON(http.StatusOK, gin.H{"current": name})
}

// OpenProject replaces the workspace with the saved project :name
func (h *ProjectHandler) OpenProject(c *gin.Context) {
	name := c.Param("name")
	if err := h.sess.OpenProject(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	h.notify("open")
	c.JSON(http.StatusOK, buildTree(h.sess.Workspace().Root()))
}

// CloseProject clears the workspace
func (h *ProjectHandler) CloseProject(c *gin.Context) {
	if err := h.sess.CloseProject(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.notify("close")
	c.JSON(http.StatusOK, gin.H{"current": ""})
}

// DeleteProject removes the saved project :name
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	name := c.Param("name")
	if err := h.sess.DeleteProject(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// ExportProject returns the current tree as :name.zip
func (h *ProjectHandler) ExportProject(c *gin.Context) {
	name := c.Param("name")
	var buf bytes.Buffer
	if err := h.sess.ExportProject(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (h *ProjectHandler) notify(op string) {
	if h.events == nil {
		return
	}
	root := h.sess.Workspace().Root()
	h.events.OnTreeChange(op, root.Path(), root.ModifiedHash())
}
