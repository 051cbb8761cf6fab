package fs

import (
	"context"
)

// Invoker calls a named operation in the host process. args is encoded as the
// operation's arguments and the reply is decoded into result, which may be nil
// for operations without a result.
type Invoker interface {
	Invoke(ctx context.Context, op string, args, result any) error
}

// HostFS forwards every operation verbatim to the host process. It keeps no
// state of its own.
type HostFS struct {
	invoker Invoker
}

// NewHostFS creates a HostFS calling through invoker.
func NewHostFS(invoker Invoker) *HostFS {
	return &HostFS{invoker: invoker}
}

// Kind reports KindHost.
func (h *HostFS) Kind() Kind { return KindHost }

func (h *HostFS) CopyFile(ctx context.Context, req CopyFileRequest) (uint64, error) {
	var n uint64
	err := h.invoker.Invoke(ctx, OpCopy, req, &n)
	return n, err
}

func (h *HostFS) CreateDir(ctx context.Context, req PathRequest) error {
	return h.invoker.Invoke(ctx, OpCreateDir, req, nil)
}

func (h *HostFS) CreateDirWithParents(ctx context.Context, req PathRequest) error {
	return h.invoker.Invoke(ctx, OpCreateDirWithParents, req, nil)
}

func (h *HostFS) CreateFile(ctx context.Context, req PathRequest) error {
	return h.invoker.Invoke(ctx, OpCreateFile, req, nil)
}

func (h *HostFS) ReadDir(ctx context.Context, req PathRequest) ([]DirEntry, error) {
	var entries []DirEntry
	if err := h.invoker.Invoke(ctx, OpReadDir, req, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (h *HostFS) ReadToString(ctx context.Context, req PathRequest) (string, error) {
	var s string
	err := h.invoker.Invoke(ctx, OpReadToString, req, &s)
	return s, err
}

func (h *HostFS) RemoveDir(ctx context.Context, req PathRequest) error {
	return h.invoker.Invoke(ctx, OpRemoveDir, req, nil)
}

func (h *HostFS) RemoveDirRecursive(ctx context.Context, req PathRequest) error {
	return h.invoker.Invoke(ctx, OpRemoveDirRecursive, req, nil)
}

func (h *HostFS) RemoveFile(ctx context.Context, req PathRequest) error {
	return h.invoker.Invoke(ctx, OpRemoveFile, req, nil)
}

func (h *HostFS) Rename(ctx context.Context, req RenameRequest) error {
	return h.invoker.Invoke(ctx, OpRename, req, nil)
}

func (h *HostFS) WriteFile(ctx context.Context, req WriteFileRequest) (uint64, error) {
	var n uint64
	err := h.invoker.Invoke(ctx, OpWriteFile, req, &n)
	return n, err
}
