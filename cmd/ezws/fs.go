package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/spf13/cobra"
)

var (
	mkdirParents bool
	rmRecursive  bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the directory tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		dir, err := resolveDir(cmd.Context(), path)
		if err != nil {
			return err
		}
		if err := ws().ReadDir(cmd.Context(), dir); err != nil {
			return err
		}
		printf(cmd, "%s\n", dir.Path())
		printTree(cmd, dir, "")
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := absPath(args[0])
		if mkdirParents {
			root := ws().Root()
			rel := strings.TrimPrefix(strings.TrimPrefix(path, root.Path()), "/")
			_, err := ws().CreateDirWithParents(ctx, root, rel)
			return err
		}
		parent, err := parentDir(ctx, path)
		if err != nil {
			return err
		}
		_, err = ws().CreateDir(ctx, parent, fs.Filename(path))
		return err
	},
}

var touchCmd = &cobra.Command{
	Use:   "touch <path>",
	Short: "Create an empty file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := absPath(args[0])
		parent, err := parentDir(ctx, path)
		if err != nil {
			return err
		}
		_, err = ws().CreateFile(ctx, parent, fs.Filename(path))
		return err
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path> [contents]",
	Short: "Replace a file's contents, reading stdin when no contents are given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var contents string
		if len(args) == 2 {
			contents = args[1]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			contents = string(data)
		}

		path := absPath(args[0])
		file, err := resolveFile(ctx, path)
		if errors.Is(err, fs.ErrNotFound) {
			parent, perr := parentDir(ctx, path)
			if perr != nil {
				return perr
			}
			file, err = ws().CreateFile(ctx, parent, fs.Filename(path))
		}
		if err != nil {
			return err
		}
		n, err := ws().WriteFile(ctx, file, contents)
		if err != nil {
			return err
		}
		printf(cmd, "wrote %d bytes to %s\n", n, file.Path())
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFile(cmd.Context(), absPath(args[0]))
		if err != nil {
			return err
		}
		contents, err := ws().ReadToString(cmd.Context(), file)
		if err != nil {
			return err
		}
		printf(cmd, "%s", contents)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		item, err := ws().Resolve(ctx, absPath(args[0]))
		if err != nil {
			return err
		}
		switch v := item.(type) {
		case *tree.File:
			return ws().RemoveFile(ctx, v)
		case *tree.Dir:
			if rmRecursive {
				return ws().RemoveDirRecursive(ctx, v)
			}
			return ws().RemoveDir(ctx, v)
		}
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Move or rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		item, err := ws().Resolve(ctx, absPath(args[0]))
		if err != nil {
			return err
		}
		to := absPath(args[1])
		if _, err := parentDir(ctx, to); err != nil {
			return err
		}
		return ws().Rename(ctx, item, to)
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <from> <to>",
	Short: "Copy a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src, err := resolveFile(ctx, absPath(args[0]))
		if err != nil {
			return err
		}
		to := absPath(args[1])
		parent, err := parentDir(ctx, to)
		if err != nil {
			return err
		}
		_, n, err := ws().CopyFile(ctx, src, parent, fs.Filename(to))
		if err != nil {
			return err
		}
		printf(cmd, "copied %d bytes\n", n)
		return nil
	},
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "Create missing parent directories")
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "Remove directories and their contents")

	rootCmd.AddCommand(treeCmd, mkdirCmd, touchCmd, writeCmd, catCmd, rmCmd, mvCmd, cpCmd)
}

// absPath resolves a relative path against the workspace root.
func absPath(p string) string {
	if strings.HasPrefix(p, "/") {
		return fs.JoinPath(p)
	}
	return fs.JoinItemPath(ws().Root(), p)
}

func resolveDir(ctx context.Context, path string) (*tree.Dir, error) {
	item, err := ws().Resolve(ctx, absPath(path))
	if err != nil {
		return nil, err
	}
	dir, ok := item.(*tree.Dir)
	if !ok {
		return nil, &fs.PathError{Op: "resolve", Path: item.Path(), Err: fs.ErrTypeMismatch}
	}
	return dir, nil
}

func resolveFile(ctx context.Context, path string) (*tree.File, error) {
	item, err := ws().Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	file, ok := item.(*tree.File)
	if !ok {
		return nil, &fs.PathError{Op: "resolve", Path: item.Path(), Err: fs.ErrTypeMismatch}
	}
	return file, nil
}

func parentDir(ctx context.Context, path string) (*tree.Dir, error) {
	dir, err := resolveDir(ctx, fs.DirectoryName(path))
	if errors.Is(err, fs.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", path, fs.ErrParentMissing)
	}
	return dir, err
}

func printTree(cmd *cobra.Command, dir *tree.Dir, indent string) {
	children := dir.SortedChildren()
	for i, child := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		name := child.Name()
		if child.IsDir() {
			name += "/"
		}
		printf(cmd, "%s%s%s\n", indent, branch, name)
		if sub, ok := child.(*tree.Dir); ok {
			printTree(cmd, sub, indent+next)
		}
	}
}
