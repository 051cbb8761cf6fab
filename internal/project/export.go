package project

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"github.com/klauspost/compress/zip"
)

// Export refreshes dir from the backend and writes it to w as a zip archive.
// Entry names are relative to dir.
func Export(ctx context.Context, ws *workspace.Workspace, dir *tree.Dir, w io.Writer) error {
	if err := ws.ReadDir(ctx, dir); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	zw := zip.NewWriter(w)
	prefix := dir.Path()
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	err := tree.Walk(dir, func(item tree.Item) error {
		name := strings.TrimPrefix(item.Path(), prefix)
		if item.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}
		contents, err := ws.ReadToString(ctx, item.(*tree.File))
		if err != nil {
			return err
		}
		fw, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = io.WriteString(fw, contents)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("export %s: %w", dir.Path(), err)
	}
	return zw.Close()
}
