package project

import (
	"context"
	"fmt"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"github.com/bytedance/sonic"
)

// Snapshot is the recursive durable form of a directory tree. Contents is
// set only for files and Children only for directories.
type Snapshot struct {
	Name     string     `json:"name"`
	IsDir    bool       `json:"isDir"`
	Contents *string    `json:"contents"`
	Children []Snapshot `json:"children"`
}

// Serialize snapshots dir, reading every file through ws. The snapshot root
// is named nameOverride when it is non-empty.
func Serialize(ctx context.Context, ws *workspace.Workspace, dir *tree.Dir, nameOverride string) (*Snapshot, error) {
	name := dir.Name()
	if nameOverride != "" {
		name = nameOverride
	}
	snap := &Snapshot{Name: name, IsDir: true, Children: make([]Snapshot, 0, dir.Len())}

	for _, item := range dir.SortedChildren() {
		switch v := item.(type) {
		case *tree.Dir:
			child, err := Serialize(ctx, ws, v, "")
			if err != nil {
				return nil, err
			}
			snap.Children = append(snap.Children, *child)
		case *tree.File:
			contents, err := ws.ReadToString(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("serialize %s: %w", v.Path(), err)
			}
			snap.Children = append(snap.Children, Snapshot{Name: v.Name(), Contents: &contents})
		}
	}
	return snap, nil
}

// Deserialize recreates snap at targetPath directly through backend. For a
// directory snapshot targetPath is the directory itself and children are
// created below it. The tree is not touched.
func Deserialize(ctx context.Context, backend fs.Backend, snap *Snapshot, targetPath string) error {
	if !snap.IsDir {
		contents := ""
		if snap.Contents != nil {
			contents = *snap.Contents
		}
		if _, err := backend.WriteFile(ctx, fs.WriteFileRequest{Path: targetPath, Contents: contents}); err != nil {
			return fmt.Errorf("deserialize %s: %w", targetPath, err)
		}
		return nil
	}

	if targetPath != fs.Root {
		if err := backend.CreateDirWithParents(ctx, fs.PathRequest{Path: targetPath}); err != nil {
			return fmt.Errorf("deserialize %s: %w", targetPath, err)
		}
	}
	for i := range snap.Children {
		child := &snap.Children[i]
		if !fs.IsValidName(child.Name) {
			return fmt.Errorf("deserialize %s: %w: %q", targetPath, fs.ErrInvalidName, child.Name)
		}
		if err := Deserialize(ctx, backend, child, fs.JoinPath(targetPath, child.Name)); err != nil {
			return err
		}
	}
	return nil
}

// MarshalSnapshot encodes snap as JSON.
func MarshalSnapshot(snap *Snapshot) ([]byte, error) {
	return sonic.Marshal(snap)
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
