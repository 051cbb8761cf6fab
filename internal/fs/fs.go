// Package fs provides the storage backends a workspace tree is mirrored onto:
// a host-delegated backend, a sandboxed handle-based backend, and the native
// filesystem implementation served by the host process.
package fs

import "context"

// Kind identifies the storage technology behind a Backend.
type Kind string

// Backend kinds.
const (
	KindHost    Kind = "host"
	KindSandbox Kind = "sandbox"
	KindLocal   Kind = "local"
)

// DirEntry represents a single directory entry.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
}

// PathRequest addresses a single entry.
type PathRequest struct {
	Path string `json:"path"`
}

// CopyFileRequest copies the file at From to To.
type CopyFileRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RenameRequest moves the entry at From to To.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteFileRequest replaces the contents of the file at Path, creating it if needed.
type WriteFileRequest struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// Backend abstracts raw path-based storage operations so a workspace can sit
// on top of either the host filesystem or sandboxed storage. All paths are
// absolute, "/"-separated.
type Backend interface {
	CopyFile(ctx context.Context, req CopyFileRequest) (uint64, error)
	CreateDir(ctx context.Context, req PathRequest) error
	CreateDirWithParents(ctx context.Context, req PathRequest) error
	CreateFile(ctx context.Context, req PathRequest) error
	ReadDir(ctx context.Context, req PathRequest) ([]DirEntry, error)
	ReadToString(ctx context.Context, req PathRequest) (string, error)
	// RemoveDir fails with ErrNonEmptyDirectory if the directory has entries.
	RemoveDir(ctx context.Context, req PathRequest) error
	RemoveDirRecursive(ctx context.Context, req PathRequest) error
	RemoveFile(ctx context.Context, req PathRequest) error
	Rename(ctx context.Context, req RenameRequest) error
	WriteFile(ctx context.Context, req WriteFileRequest) (uint64, error)

	Kind() Kind
}

// Host operation names, shared by HostFS and the host process dispatcher.
const (
	OpCopy                 = "copy"
	OpCreateDir            = "create_dir"
	OpCreateDirWithParents = "create_dir_with_parents"
	OpCreateFile           = "create_file"
	OpReadDir              = "read_dir"
	OpReadToString         = "read_to_string"
	OpRemoveDir            = "remove_dir"
	OpRemoveDirRecursive   = "remove_dir_recursive"
	OpRemoveFile           = "remove_file"
	OpRename               = "rename"
	OpWriteFile            = "write_file"
)

// Ops lists every host operation name.
var Ops = []string{
	OpCopy,
	OpCreateDir,
	OpCreateDirWithParents,
	OpCreateFile,
	OpReadDir,
	OpReadToString,
	OpRemoveDir,
	OpRemoveDirRecursive,
	OpRemoveFile,
	OpRename,
	OpWriteFile,
}
