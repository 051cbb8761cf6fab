// Package workspace binds a tree to a storage backend. Every operation takes
// tree nodes, calls the backend with the matching absolute paths, and mutates
// the tree only after the backend call succeeded.
//
// Operations that touch the same directory are serialized: each holds a lock
// on the directory it mutates (both parents for Rename) for the duration of
// the backend call and the tree update.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/tree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultReadDirFanout = 8

// Workspace is the tree of one session together with the backend it mirrors.
type Workspace struct {
	backend fs.Backend
	logger  *zap.Logger
	locks   *dirLocks
	fanout  int

	mu   sync.RWMutex
	root *tree.Dir
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger used for mutation traces.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithReadDirFanout bounds how many sibling directories ReadDir lists at once.
func WithReadDirFanout(n int) Option {
	return func(w *Workspace) {
		if n > 0 {
			w.fanout = n
		}
	}
}

// New creates a workspace over backend rooted at root.
func New(backend fs.Backend, root *tree.Dir, opts ...Option) *Workspace {
	w := &Workspace{
		backend: backend,
		logger:  zap.NewNop(),
		locks:   newDirLocks(),
		fanout:  defaultReadDirFanout,
		root:    root,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Backend returns the backend the workspace mirrors.
func (w *Workspace) Backend() fs.Backend { return w.backend }

// Root returns the current root directory.
func (w *Workspace) Root() *tree.Dir {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// SetRoot replaces the tree wholesale. The previous tree is discarded.
func (w *Workspace) SetRoot(root *tree.Dir) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.root = root
}

// GetItem resolves an absolute backend path in the current tree.
func (w *Workspace) GetItem(path string) (tree.Item, bool) {
	root := w.Root()
	rel, ok := relativeTo(root.Path(), fs.JoinPath(fs.Root, path))
	if !ok {
		return nil, false
	}
	return tree.Lookup(root, rel)
}

// Resolve finds the item at an absolute backend path, listing directories
// on the way whose children are not in the tree yet.
func (w *Workspace) Resolve(ctx context.Context, path string) (tree.Item, error) {
	abs := fs.JoinPath(fs.Root, path)
	root := w.Root()
	rel, ok := relativeTo(root.Path(), abs)
	if !ok {
		return nil, &fs.PathError{Op: "resolve", Path: abs, Err: fs.ErrNotFound}
	}

	var cur tree.Item = root
	for _, part := range fs.Parts(rel) {
		dir, ok := cur.(*tree.Dir)
		if !ok {
			return nil, &fs.PathError{Op: "resolve", Path: abs, Err: fs.ErrTypeMismatch}
		}
		child, ok := dir.GetChild(part)
		if !ok {
			if _, err := w.List(ctx, dir); err != nil {
				return nil, err
			}
			if child, ok = dir.GetChild(part); !ok {
				return nil, &fs.PathError{Op: "resolve", Path: abs, Err: fs.ErrNotFound}
			}
		}
		cur = child
	}
	return cur, nil
}

// Sync populates the tree from the backend. Sandboxed workspaces are read
// recursively. Host workspaces only list the root level, deeper directories
// are populated on demand with List or ReadDir.
func (w *Workspace) Sync(ctx context.Context) error {
	return w.sync(ctx, w.Root())
}

// Replace populates root from the backend and makes it the workspace root.
// On error the current root is kept.
func (w *Workspace) Replace(ctx context.Context, root *tree.Dir) error {
	if err := w.sync(ctx, root); err != nil {
		return err
	}
	w.SetRoot(root)
	return nil
}

func (w *Workspace) sync(ctx context.Context, root *tree.Dir) error {
	if w.backend.Kind() == fs.KindHost {
		_, err := w.lockedList(ctx, root)
		return err
	}
	return w.readDir(ctx, root)
}

// attached reports an error unless item is reachable from the workspace
// root. Detached nodes no longer name a backend path.
func (w *Workspace) attached(op string, item tree.Item) error {
	root := w.Root()
	var top tree.Item = item
	for p := item.Parent(); p != nil; p = p.Parent() {
		top = p
	}
	if d, ok := top.(*tree.Dir); ok && d == root {
		return nil
	}
	return &fs.PathError{Op: op, Path: item.Path(), Err: fmt.Errorf("%w: not in the workspace tree", fs.ErrNotFound)}
}

// CreateFile creates a file at relPath below parent and attaches it to its
// immediate parent directory in the tree.
func (w *Workspace) CreateFile(ctx context.Context, parent *tree.Dir, relPath string) (*tree.File, error) {
	dir, name, abs, err := w.target(fs.OpCreateFile, parent, relPath)
	if err != nil {
		return nil, err
	}
	unlock := w.locks.lock(dir)
	defer unlock()

	if err := w.backend.CreateFile(ctx, fs.PathRequest{Path: abs}); err != nil {
		return nil, err
	}
	f := tree.NewFile(name, dir)
	w.logger.Debug("created file", zap.String("path", abs))
	return f, nil
}

// CreateDir creates a single directory at relPath below parent.
func (w *Workspace) CreateDir(ctx context.Context, parent *tree.Dir, relPath string) (*tree.Dir, error) {
	dir, name, abs, err := w.target(fs.OpCreateDir, parent, relPath)
	if err != nil {
		return nil, err
	}
	unlock := w.locks.lock(dir)
	defer unlock()

	return w.createDir(ctx, dir, name, abs)
}

func (w *Workspace) createDir(ctx context.Context, dir *tree.Dir, name, abs string) (*tree.Dir, error) {
	if err := w.backend.CreateDir(ctx, fs.PathRequest{Path: abs}); err != nil {
		return nil, err
	}
	d := tree.NewDir(name, dir)
	w.logger.Debug("created directory", zap.String("path", abs))
	return d, nil
}

// CreateDirWithParents walks relPath segment by segment, descending into
// existing directories and creating missing ones. A segment that exists as a
// file fails with fs.ErrTypeMismatch. Directories created before a failure
// are kept in both the backend and the tree.
func (w *Workspace) CreateDirWithParents(ctx context.Context, parent *tree.Dir, relPath string) (*tree.Dir, error) {
	if err := w.attached(fs.OpCreateDirWithParents, parent); err != nil {
		return nil, err
	}
	expected := fs.JoinItemPath(parent, relPath)
	root := treeRoot(parent)
	rel, ok := relativeTo(root.Path(), expected)
	if !ok {
		return nil, &fs.PathError{Op: fs.OpCreateDirWithParents, Path: expected, Err: fs.ErrParentMissing}
	}

	cur := root
	for _, part := range fs.Parts(rel) {
		next, err := w.descend(ctx, cur, part)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	if got := cur.Path(); got != expected {
		return nil, fmt.Errorf("create_dir_with_parents: resolved %s, expected %s", got, expected)
	}
	return cur, nil
}

// descend returns the child directory name of dir, creating it if needed.
func (w *Workspace) descend(ctx context.Context, dir *tree.Dir, name string) (*tree.Dir, error) {
	unlock := w.locks.lock(dir)
	defer unlock()

	abs := fs.JoinItemPath(dir, name)
	for attempt := 0; ; attempt++ {
		if child, ok := dir.GetChild(name); ok {
			d, isDir := child.(*tree.Dir)
			if !isDir {
				return nil, &fs.PathError{Op: fs.OpCreateDirWithParents, Path: abs, Err: fs.ErrTypeMismatch}
			}
			return d, nil
		}

		d, err := w.createDir(ctx, dir, name, abs)
		if err == nil || attempt > 0 || !errors.Is(err, fs.ErrAlreadyExists) {
			return d, err
		}
		// The entry exists on the backend but the directory was never listed.
		if _, err := w.list(ctx, dir); err != nil {
			return nil, err
		}
	}
}

// ReadDir replaces the children of dir with the backend listing and repeats
// for every subdirectory. Entries missing from the listing are dropped.
func (w *Workspace) ReadDir(ctx context.Context, dir *tree.Dir) error {
	if err := w.attached(fs.OpReadDir, dir); err != nil {
		return err
	}
	return w.readDir(ctx, dir)
}

func (w *Workspace) readDir(ctx context.Context, dir *tree.Dir) error {
	items, err := w.lockedList(ctx, dir)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.fanout)
	for _, item := range items {
		sub, ok := item.(*tree.Dir)
		if !ok {
			continue
		}
		g.Go(func() error {
			return w.readDir(ctx, sub)
		})
	}
	return g.Wait()
}

// List replaces the children of dir with one level of the backend listing
// and returns them in name order.
func (w *Workspace) List(ctx context.Context, dir *tree.Dir) ([]tree.Item, error) {
	if err := w.attached(fs.OpReadDir, dir); err != nil {
		return nil, err
	}
	return w.lockedList(ctx, dir)
}

func (w *Workspace) lockedList(ctx context.Context, dir *tree.Dir) ([]tree.Item, error) {
	unlock := w.locks.lock(dir)
	defer unlock()
	return w.list(ctx, dir)
}

func (w *Workspace) list(ctx context.Context, dir *tree.Dir) ([]tree.Item, error) {
	entries, err := w.backend.ReadDir(ctx, fs.PathRequest{Path: dir.Path()})
	if err != nil {
		return nil, err
	}

	existing := dir.Children()
	items := make([]tree.Item, 0, len(entries))
	for _, e := range entries {
		if prev, ok := existing[e.Name]; ok && prev.IsDir() == e.IsDir {
			items = append(items, prev)
			continue
		}
		if e.IsDir {
			items = append(items, tree.NewDir(e.Name, nil))
		} else {
			items = append(items, tree.NewFile(e.Name, nil))
		}
	}
	dir.SetChildren(items)
	return dir.SortedChildren(), nil
}

// ReadToString returns the contents of file.
func (w *Workspace) ReadToString(ctx context.Context, file *tree.File) (string, error) {
	if err := w.attached(fs.OpReadToString, file); err != nil {
		return "", err
	}
	return w.backend.ReadToString(ctx, fs.PathRequest{Path: file.Path()})
}

// WriteFile replaces the contents of file.
func (w *Workspace) WriteFile(ctx context.Context, file *tree.File, contents string) (uint64, error) {
	if err := w.attached(fs.OpWriteFile, file); err != nil {
		return 0, err
	}
	unlock := w.locks.lock(file.Parent())
	defer unlock()

	n, err := w.backend.WriteFile(ctx, fs.WriteFileRequest{Path: file.Path(), Contents: contents})
	if err != nil {
		return 0, err
	}
	w.logger.Debug("wrote file", zap.String("path", file.Path()), zap.Uint64("bytes", n))
	return n, nil
}

// CopyFile copies from into toParent under toName, or under the source name
// when toName is empty. An existing file with that name is overwritten.
func (w *Workspace) CopyFile(ctx context.Context, from *tree.File, toParent *tree.Dir, toName string) (*tree.File, uint64, error) {
	if toName == "" {
		toName = from.Name()
	}
	for _, item := range []tree.Item{from, toParent} {
		if err := w.attached(fs.OpCopy, item); err != nil {
			return nil, 0, err
		}
	}
	to := fs.JoinItemPath(toParent, toName)
	if !fs.IsValidName(toName) {
		return nil, 0, &fs.PathError{Op: fs.OpCopy, Path: to, Err: fs.ErrInvalidName}
	}
	unlock := w.locks.lock(toParent)
	defer unlock()

	n, err := w.backend.CopyFile(ctx, fs.CopyFileRequest{From: from.Path(), To: to})
	if err != nil {
		return nil, 0, err
	}
	if existing, ok := toParent.GetChild(toName); ok {
		if f, ok := existing.(*tree.File); ok {
			return f, n, nil
		}
	}
	f := tree.NewFile(toName, toParent)
	w.logger.Debug("copied file", zap.String("from", from.Path()), zap.String("to", to))
	return f, n, nil
}

// RemoveFile deletes file and detaches it from the tree.
func (w *Workspace) RemoveFile(ctx context.Context, file *tree.File) error {
	return w.remove(ctx, file, fs.OpRemoveFile, w.backend.RemoveFile)
}

// RemoveDir deletes the empty directory dir.
func (w *Workspace) RemoveDir(ctx context.Context, dir *tree.Dir) error {
	return w.remove(ctx, dir, fs.OpRemoveDir, w.backend.RemoveDir)
}

// RemoveDirRecursive deletes dir with everything below it.
func (w *Workspace) RemoveDirRecursive(ctx context.Context, dir *tree.Dir) error {
	return w.remove(ctx, dir, fs.OpRemoveDirRecursive, w.backend.RemoveDirRecursive)
}

func (w *Workspace) remove(ctx context.Context, item tree.Item, op string, call func(context.Context, fs.PathRequest) error) error {
	if d, ok := item.(*tree.Dir); ok && d == w.Root() {
		return &fs.PathError{Op: op, Path: item.Path(), Err: fmt.Errorf("%w: cannot remove the workspace root", fs.ErrInvalidName)}
	}
	if err := w.attached(op, item); err != nil {
		return err
	}
	parent := item.Parent()
	unlock := w.locks.lock(parent)
	defer unlock()

	path := item.Path()
	if err := call(ctx, fs.PathRequest{Path: path}); err != nil {
		return err
	}
	parent.RemoveItem(item)
	w.logger.Debug("removed", zap.String("op", op), zap.String("path", path))
	return nil
}

// Rename moves item to newPath. A relative newPath is resolved against the
// item's parent. The destination's parent must already be in the tree.
func (w *Workspace) Rename(ctx context.Context, item tree.Item, newPath string) error {
	if d, ok := item.(*tree.Dir); ok && d == w.Root() {
		return &fs.PathError{Op: fs.OpRename, Path: item.Path(), Err: fmt.Errorf("%w: cannot rename the workspace root", fs.ErrInvalidName)}
	}
	if err := w.attached(fs.OpRename, item); err != nil {
		return err
	}
	parent := item.Parent()
	var to string
	if strings.HasPrefix(newPath, "/") {
		to = fs.JoinPath(newPath)
	} else {
		to = fs.JoinItemPath(parent, newPath)
	}

	name := fs.Filename(to)
	if !fs.IsValidName(name) {
		return &fs.PathError{Op: fs.OpRename, Path: to, Err: fs.ErrInvalidName}
	}
	dest, ok := w.dirAt(treeRoot(parent), fs.DirectoryName(to))
	if !ok {
		return &fs.PathError{Op: fs.OpRename, Path: to, Err: fs.ErrParentMissing}
	}

	unlock := w.locks.lock(parent, dest)
	defer unlock()

	from := item.Path()
	if err := w.backend.Rename(ctx, fs.RenameRequest{From: from, To: to}); err != nil {
		return err
	}
	if err := tree.Move(item, dest, name); err != nil {
		return err
	}
	w.logger.Debug("renamed", zap.String("from", from), zap.String("to", to))
	return nil
}

// target resolves the immediate parent directory node, the entry name and
// the absolute path of a new entry at relPath below parent.
func (w *Workspace) target(op string, parent *tree.Dir, relPath string) (*tree.Dir, string, string, error) {
	if err := w.attached(op, parent); err != nil {
		return nil, "", "", err
	}
	abs := fs.JoinItemPath(parent, relPath)
	name := fs.Filename(abs)
	if !fs.IsValidName(name) {
		return nil, "", "", &fs.PathError{Op: op, Path: abs, Err: fs.ErrInvalidName}
	}
	dir, ok := w.dirAt(treeRoot(parent), fs.DirectoryName(abs))
	if !ok {
		return nil, "", "", &fs.PathError{Op: op, Path: abs, Err: fs.ErrParentMissing}
	}
	return dir, name, abs, nil
}

// dirAt finds the directory at an absolute path inside the tree rooted at root.
func (w *Workspace) dirAt(root *tree.Dir, path string) (*tree.Dir, bool) {
	rel, ok := relativeTo(root.Path(), path)
	if !ok {
		return nil, false
	}
	item, ok := tree.Lookup(root, rel)
	if !ok {
		return nil, false
	}
	d, ok := item.(*tree.Dir)
	return d, ok
}

func treeRoot(d *tree.Dir) *tree.Dir {
	for d.Parent() != nil {
		d = d.Parent()
	}
	return d
}

// relativeTo strips base from path. It reports false when path is not base
// or below it.
func relativeTo(base, path string) (string, bool) {
	switch {
	case base == fs.Root:
		return path, strings.HasPrefix(path, fs.Root)
	case path == base:
		return "", true
	case strings.HasPrefix(path, base+"/"):
		return path[len(base)+1:], true
	}
	return "", false
}
