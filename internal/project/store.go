// Package project saves and restores whole workspaces under a project name.
//
// Two stores exist. HostStore keeps only an index of project roots on the
// host filesystem; opening a project re-points the workspace at its root.
// SQLStore keeps a full snapshot of every file, for sandboxed workspaces
// that have no addressable path outside the session.
package project

import (
	"context"
	"fmt"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
)

// Entry is the index record of one saved project.
type Entry struct {
	LastModified int64  `json:"lastModified"` // unix milliseconds
	RootPath     string `json:"rootPath"`
}

// Store persists projects.
type Store interface {
	// Init loads the project index.
	Init(ctx context.Context) error
	// Save stores root under name, replacing any project with that name.
	Save(ctx context.Context, root *tree.Dir, name string) error
	// Close clears the active workspace before another project is opened.
	Close(ctx context.Context) error
	// Get restores the named project and returns its new root, or nil when
	// no such project exists.
	Get(ctx context.Context, name string) (*tree.Dir, error)
	// Delete removes the named project from the store.
	Delete(ctx context.Context, name string) error
	// Projects returns a copy of the index.
	Projects() map[string]Entry
}

func validName(name string) error {
	if !fs.IsValidName(name) {
		return fmt.Errorf("project %q: %w", name, fs.ErrInvalidName)
	}
	return nil
}

func copyIndex(index map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(index))
	for k, v := range index {
		out[k] = v
	}
	return out
}
