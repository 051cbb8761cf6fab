package project

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/metrics"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// IndexFile is the name of the project index kept in the data directory.
const IndexFile = "projects.json"

// HostStore keeps a {name: Entry} index in a JSON file written through the
// host backend. Project contents stay where they are on the host.
type HostStore struct {
	backend fs.Backend
	dataDir string
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	index map[string]Entry
}

// NewHostStore creates a HostStore writing its index below dataDir.
func NewHostStore(backend fs.Backend, dataDir string, logger *zap.Logger) *HostStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostStore{
		backend: backend,
		dataDir: dataDir,
		logger:  logger,
		now:     time.Now,
		index:   make(map[string]Entry),
	}
}

func (s *HostStore) indexPath() string {
	return fs.JoinPath(s.dataDir, IndexFile)
}

// Init loads the index. A missing index file is an empty index.
func (s *HostStore) Init(ctx context.Context) error {
	if err := s.backend.CreateDirWithParents(ctx, fs.PathRequest{Path: s.dataDir}); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := s.backend.ReadToString(ctx, fs.PathRequest{Path: s.indexPath()})
	if errors.Is(err, fs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read project index: %w", err)
	}

	index := make(map[string]Entry)
	if data != "" {
		if err := sonic.UnmarshalString(data, &index); err != nil {
			return fmt.Errorf("decode project index: %w", err)
		}
	}
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// Save records root's path under name.
func (s *HostStore) Save(ctx context.Context, root *tree.Dir, name string) (err error) {
	defer func(start time.Time) { metrics.RecordProjectOp("host", "save", time.Since(start), err) }(time.Now())
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyIndex(s.index)
	next[name] = Entry{LastModified: s.now().UnixMilli(), RootPath: root.Path()}
	if err := s.write(ctx, next); err != nil {
		return err
	}
	s.index = next
	s.logger.Info("saved project", zap.String("name", name), zap.String("root", root.Path()))
	return nil
}

// Close does nothing; host files are never deleted on close.
func (s *HostStore) Close(context.Context) error { return nil }

// Get returns a new root at the saved root path.
func (s *HostStore) Get(_ context.Context, name string) (*tree.Dir, error) {
	s.mu.RLock()
	entry, ok := s.index[name]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return tree.NewRoot(fs.JoinPath(fs.Root, entry.RootPath)), nil
}

// Delete drops name from the index.
func (s *HostStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; !ok {
		return fmt.Errorf("project %q: %w", name, fs.ErrNotFound)
	}
	next := copyIndex(s.index)
	delete(next, name)
	if err := s.write(ctx, next); err != nil {
		return err
	}
	s.index = next
	return nil
}

// Projects returns a copy of the index.
func (s *HostStore) Projects() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIndex(s.index)
}

func (s *HostStore) write(ctx context.Context, index map[string]Entry) error {
	data, err := sonic.MarshalString(index)
	if err != nil {
		return fmt.Errorf("encode project index: %w", err)
	}
	if _, err := s.backend.WriteFile(ctx, fs.WriteFileRequest{Path: s.indexPath(), Contents: data}); err != nil {
		return fmt.Errorf("write project index: %w", err)
	}
	return nil
}
