package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// ErrUnknownOp is returned for an operation name the host does not serve.
var ErrUnknownOp = errors.New("unknown operation")

// Dispatcher decodes host calls into typed requests and runs them against a
// backend, normally the host's LocalFS.
type Dispatcher struct {
	backend fs.Backend
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher serving backend.
func NewDispatcher(backend fs.Backend, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{backend: backend, logger: logger}
}

// Dispatch runs op with the JSON-encoded args and returns the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, op string, args []byte) *Response {
	result, err := d.call(ctx, op, args)
	if err != nil {
		d.logger.Debug("host operation failed", zap.String("op", op), zap.Error(err))
		return ErrorResponse(err)
	}
	raw, err := Encode(result)
	if err != nil {
		return ErrorResponse(fmt.Errorf("encode %s result: %w", op, err))
	}
	return &Response{Result: raw}
}

func (d *Dispatcher) call(ctx context.Context, op string, args []byte) (any, error) {
	switch op {
	case fs.OpCopy:
		var req fs.CopyFileRequest
		if err := decode(op, args, &req); err != nil {
			return nil, err
		}
		return d.backend.CopyFile(ctx, req)
	case fs.OpCreateDir:
		return nil, d.withPath(op, args, func(req fs.PathRequest) error { return d.backend.CreateDir(ctx, req) })
	case fs.OpCreateDirWithParents:
		return nil, d.withPath(op, args, func(req fs.PathRequest) error { return d.backend.CreateDirWithParents(ctx, req) })
	case fs.OpCreateFile:
		return nil, d.withPath(op, args, func(req fs.PathRequest) error { return d.backend.CreateFile(ctx, req) })
	case fs.OpReadDir:
		var req fs.PathRequest
		if err := decode(op, args, &req); err != nil {
			return nil, err
		}
		return d.backend.ReadDir(ctx, req)
	case fs.OpReadToString:
		var req fs.PathRequest
		if err := decode(op, args, &req); err != nil {
			return nil, err
		}
		return d.backend.ReadToString(ctx, req)
	case fs.OpRemoveDir:
		return nil, d.withPath(op, args, func(req fs.PathRequest) error { return d.backend.RemoveDir(ctx, req) })
	case fs.OpRemoveDirRecursive:
		return nil, d.withPath(op, args, func(req fs.PathRequest) error { return d.backend.RemoveDirRecursive(ctx, req) })
	case fs.OpRemoveFile:
		return nil, d.withPath(op, args, func(req fs.PathRequest) error { return d.backend.RemoveFile(ctx, req) })
	case fs.OpRename:
		var req fs.RenameRequest
		if err := decode(op, args, &req); err != nil {
			return nil, err
		}
		return nil, d.backend.Rename(ctx, req)
	case fs.OpWriteFile:
		var req fs.WriteFileRequest
		if err := decode(op, args, &req); err != nil {
			return nil, err
		}
		return d.backend.WriteFile(ctx, req)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
}

func (d *Dispatcher) withPath(op string, args []byte, fn func(fs.PathRequest) error) error {
	var req fs.PathRequest
	if err := decode(op, args, &req); err != nil {
		return err
	}
	return fn(req)
}

func decode(op string, args []byte, v any) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: missing arguments", op)
	}
	if err := sonic.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%s: decode arguments: %w", op, err)
	}
	return nil
}
