// Package tree is the in-memory mirror of a workspace: files and directories
// linked by parent back-references, with a per-directory change counter.
//
// A directory's ModifiedHash increases on every structural change to it and
// to every directory below it, so consumers can detect that a subtree changed
// by comparing tokens.
package tree

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/CageChen/ezworkspace/internal/fs"
)

// ErrCycle is returned when a directory would be moved below itself.
var ErrCycle = errors.New("move would create a cycle")

// Item is a file or directory node.
type Item interface {
	Name() string
	IsDir() bool
	// Parent returns the directory holding the item, or nil for a root.
	Parent() *Dir
	// Path is the absolute path a backend accepts to address the item.
	Path() string

	base() *node
}

type node struct {
	mu     sync.RWMutex
	name   string
	parent *Dir
}

func (n *node) base() *node { return n }

// Name returns the entry name.
func (n *node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// Parent returns the directory holding the node, or nil for a root.
func (n *node) Parent() *Dir {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

func (n *node) set(name string, parent *Dir) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.name = name
	n.parent = parent
}

func (n *node) setParent(parent *Dir) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parent = parent
}

// path derives the path from the parent chain. A root's path is its name. A
// root named "/" is not doubled into its children's paths.
func (n *node) path() string {
	name, parent := n.Name(), n.Parent()
	if parent == nil {
		return name
	}
	pp := parent.Path()
	if pp == fs.Root {
		return fs.Root + name
	}
	return pp + "/" + name
}

// File is a leaf node.
type File struct {
	node
}

// NewFile creates a file node. It is attached to parent when parent is non-nil.
func NewFile(name string, parent *Dir) *File {
	f := &File{node: node{name: name}}
	if parent != nil {
		parent.AddChild(f)
	}
	return f
}

func (f *File) IsDir() bool { return false }
func (f *File) Path() string { return f.path() }

// Dir is a directory node.
type Dir struct {
	node

	childMu  sync.RWMutex
	children map[string]Item
	hash     atomic.Uint64
}

// NewRoot creates a detached directory whose path is its name.
func NewRoot(name string) *Dir {
	return &Dir{node: node{name: name}, children: make(map[string]Item)}
}

// NewDir creates a directory node. It is attached to parent when parent is
// non-nil.
func NewDir(name string, parent *Dir) *Dir {
	d := NewRoot(name)
	if parent != nil {
		parent.AddChild(d)
	}
	return d
}

func (d *Dir) IsDir() bool { return true }
func (d *Dir) Path() string { return d.path() }

// ModifiedHash returns the change token of the directory.
func (d *Dir) ModifiedHash() uint64 {
	return d.hash.Load()
}

// bump increments the change token of d and every ancestor.
func (d *Dir) bump() {
	for cur := d; cur != nil; cur = cur.Parent() {
		cur.hash.Add(1)
	}
}

// AddChild inserts item under its name, replacing any entry with the same
// name. An item still attached elsewhere is detached from its old parent.
func (d *Dir) AddChild(item Item) {
	if old := item.Parent(); old != nil && old != d {
		old.RemoveItem(item)
	}

	d.childMu.Lock()
	name := item.Name()
	if prev, ok := d.children[name]; ok && prev != item {
		prev.base().setParent(nil)
	}
	d.children[name] = item
	item.base().setParent(d)
	d.childMu.Unlock()

	d.bump()
}

// RemoveChild detaches the child with the given name. It reports whether a
// child was removed.
func (d *Dir) RemoveChild(name string) bool {
	d.childMu.Lock()
	item, ok := d.children[name]
	if ok {
		delete(d.children, name)
		item.base().setParent(nil)
	}
	d.childMu.Unlock()

	if ok {
		d.bump()
	}
	return ok
}

// RemoveItem detaches item if it is the child currently held under its name.
func (d *Dir) RemoveItem(item Item) bool {
	d.childMu.Lock()
	name := item.Name()
	cur, ok := d.children[name]
	ok = ok && cur == item
	if ok {
		delete(d.children, name)
		item.base().setParent(nil)
	}
	d.childMu.Unlock()

	if ok {
		d.bump()
	}
	return ok
}

// GetChild returns the child with the given name.
func (d *Dir) GetChild(name string) (Item, bool) {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	item, ok := d.children[name]
	return item, ok
}

// Children returns a copy of the child map.
func (d *Dir) Children() map[string]Item {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	out := make(map[string]Item, len(d.children))
	for k, v := range d.children {
		out[k] = v
	}
	return out
}

// SortedChildren returns the children ordered by name.
func (d *Dir) SortedChildren() []Item {
	d.childMu.RLock()
	items := make([]Item, 0, len(d.children))
	for _, item := range d.children {
		items = append(items, item)
	}
	d.childMu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })
	return items
}

// Len returns the number of children.
func (d *Dir) Len() int {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	return len(d.children)
}

// SetChildren replaces the whole child map. Children no longer present are
// detached. The change token is bumped once.
func (d *Dir) SetChildren(items []Item) {
	next := make(map[string]Item, len(items))
	for _, item := range items {
		if old := item.Parent(); old != nil && old != d {
			old.RemoveItem(item)
		}
		next[item.Name()] = item
	}

	d.childMu.Lock()
	for name, item := range d.children {
		if next[name] != item {
			item.base().setParent(nil)
		}
	}
	for _, item := range next {
		item.base().setParent(d)
	}
	d.children = next
	d.childMu.Unlock()

	d.bump()
}

// Move detaches item, renames it to newName and attaches it to newParent. A
// rename within the same directory counts as a single change.
func Move(item Item, newParent *Dir, newName string) error {
	if !fs.IsValidName(newName) {
		return fmt.Errorf("move %s: %w: %q", item.Path(), fs.ErrInvalidName, newName)
	}
	if dir, ok := item.(*Dir); ok {
		for cur := newParent; cur != nil; cur = cur.Parent() {
			if cur == dir {
				return fmt.Errorf("move %s: %w", item.Path(), ErrCycle)
			}
		}
	}

	old := item.Parent()
	if old == newParent && old != nil {
		old.childMu.Lock()
		if prev, ok := old.children[newName]; ok && prev != item {
			prev.base().setParent(nil)
		}
		delete(old.children, item.Name())
		item.base().set(newName, old)
		old.children[newName] = item
		old.childMu.Unlock()
		old.bump()
		return nil
	}

	if old != nil {
		old.RemoveItem(item)
	}
	item.base().set(newName, nil)
	newParent.AddChild(item)
	return nil
}

// Lookup resolves a "/"-separated path relative to dir. "." and ".." are
// resolved lexically; ".." never climbs above dir.
func Lookup(dir *Dir, rel string) (Item, bool) {
	var cur Item = dir
	for _, part := range fs.Parts(fs.JoinPath("/", rel)) {
		d, ok := cur.(*Dir)
		if !ok {
			return nil, false
		}
		if cur, ok = d.GetChild(part); !ok {
			return nil, false
		}
	}
	return cur, true
}

// Walk visits every node below dir depth-first in name order. Returning an
// error from fn stops the walk.
func Walk(dir *Dir, fn func(Item) error) error {
	for _, item := range dir.SortedChildren() {
		if err := fn(item); err != nil {
			return err
		}
		if sub, ok := item.(*Dir); ok {
			if err := Walk(sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns every file below dir in walk order.
func Files(dir *Dir) []*File {
	var files []*File
	_ = Walk(dir, func(item Item) error {
		if f, ok := item.(*File); ok {
			files = append(files, f)
		}
		return nil
	})
	return files
}
