package fs

import (
	"context"
	"time"

	"github.com/CageChen/ezworkspace/internal/metrics"
	"go.uber.org/zap"
)

// Instrumented wraps a Backend, recording every operation in Prometheus and
// logging failures.
type Instrumented struct {
	next   Backend
	kind   string
	logger *zap.Logger
}

// Instrument wraps b. A nil logger disables logging.
func Instrument(b Backend, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		next:   b,
		kind:   string(b.Kind()),
		logger: logger.With(zap.String("backend", string(b.Kind()))),
	}
}

// Unwrap returns the wrapped backend.
func (i *Instrumented) Unwrap() Backend { return i.next }

func (i *Instrumented) Kind() Kind { return i.next.Kind() }

func (i *Instrumented) observe(op, path string, start time.Time, err error) {
	metrics.RecordBackendOp(i.kind, op, time.Since(start), err)
	if err != nil {
		i.logger.Debug("backend operation failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func (i *Instrumented) CopyFile(ctx context.Context, req CopyFileRequest) (uint64, error) {
	start := time.Now()
	n, err := i.next.CopyFile(ctx, req)
	i.observe(OpCopy, req.From, start, err)
	if err == nil {
		metrics.RecordBytesWritten(i.kind, n)
	}
	return n, err
}

func (i *Instrumented) CreateDir(ctx context.Context, req PathRequest) error {
	start := time.Now()
	err := i.next.CreateDir(ctx, req)
	i.observe(OpCreateDir, req.Path, start, err)
	return err
}

func (i *Instrumented) CreateDirWithParents(ctx context.Context, req PathRequest) error {
	start := time.Now()
	err := i.next.CreateDirWithParents(ctx, req)
	i.observe(OpCreateDirWithParents, req.Path, start, err)
	return err
}

func (i *Instrumented) CreateFile(ctx context.Context, req PathRequest) error {
	start := time.Now()
	err := i.next.CreateFile(ctx, req)
	i.observe(OpCreateFile, req.Path, start, err)
	return err
}

func (i *Instrumented) ReadDir(ctx context.Context, req PathRequest) ([]DirEntry, error) {
	start := time.Now()
	entries, err := i.next.ReadDir(ctx, req)
	i.observe(OpReadDir, req.Path, start, err)
	return entries, err
}

func (i *Instrumented) ReadToString(ctx context.Context, req PathRequest) (string, error) {
	start := time.Now()
	s, err := i.next.ReadToString(ctx, req)
	i.observe(OpReadToString, req.Path, start, err)
	return s, err
}

func (i *Instrumented) RemoveDir(ctx context.Context, req PathRequest) error {
	start := time.Now()
	err := i.next.RemoveDir(ctx, req)
	i.observe(OpRemoveDir, req.Path, start, err)
	return err
}

func (i *Instrumented) RemoveDirRecursive(ctx context.Context, req PathRequest) error {
	start := time.Now()
	err := i.next.RemoveDirRecursive(ctx, req)
	i.observe(OpRemoveDirRecursive, req.Path, start, err)
	return err
}

func (i *Instrumented) RemoveFile(ctx context.Context, req PathRequest) error {
	start := time.Now()
	err := i.next.RemoveFile(ctx, req)
	i.observe(OpRemoveFile, req.Path, start, err)
	return err
}

func (i *Instrumented) Rename(ctx context.Context, req RenameRequest) error {
	start := time.Now()
	err := i.next.Rename(ctx, req)
	i.observe(OpRename, req.From, start, err)
	return err
}

func (i *Instrumented) WriteFile(ctx context.Context, req WriteFileRequest) (uint64, error) {
	start := time.Now()
	n, err := i.next.WriteFile(ctx, req)
	i.observe(OpWriteFile, req.Path, start, err)
	if err == nil {
		metrics.RecordBytesWritten(i.kind, n)
	}
	return n, err
}
