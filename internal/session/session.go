// Package session assembles one workspace session from configuration: the
// backend, the root, and the project store that matches the backend.
package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/CageChen/ezworkspace/internal/config"
	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/project"
	"github.com/CageChen/ezworkspace/internal/transport"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"go.uber.org/zap"
)

// Session owns the workspace and project store of one backend.
type Session struct {
	ws     *workspace.Workspace
	store  project.Store
	logger *zap.Logger

	// mu serializes project switches against each other.
	mu      sync.Mutex
	current string
	closers []io.Closer
}

// Open builds a session from cfg and syncs its tree.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{logger: logger}

	backend, rootName, err := s.backend(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.ws = workspace.New(fs.Instrument(backend, logger), tree.NewRoot(rootName),
		workspace.WithLogger(logger.Named("workspace")))

	if err := s.openStore(cfg); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.store.Init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init project store: %w", err)
	}
	if err := s.ws.Sync(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("sync workspace: %w", err)
	}

	logger.Info("workspace session opened",
		zap.String("backend", string(backend.Kind())),
		zap.String("root", rootName),
		zap.Int("projects", len(s.store.Projects())),
	)
	return s, nil
}

// New assembles a session from already constructed parts. The tree is not
// synced.
func New(ws *workspace.Workspace, store project.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{ws: ws, store: store, logger: logger}
}

func (s *Session) backend(ctx context.Context, cfg *config.Config) (fs.Backend, string, error) {
	switch cfg.Backend {
	case config.BackendHost:
		root := fs.JoinPath(fs.Root, cfg.Host.Root)
		switch cfg.Host.Transport {
		case config.TransportWS:
			inv, err := transport.DialWS(ctx, wsURL(cfg.Host.URL))
			if err != nil {
				return nil, "", err
			}
			s.closers = append(s.closers, inv)
			return fs.NewHostFS(inv), root, nil
		default:
			return fs.NewHostFS(transport.NewHTTPInvoker(cfg.Host.URL)), root, nil
		}

	case config.BackendSandbox, "":
		var handle fs.DirectoryHandle
		if cfg.Sandbox.Storage == config.StorageDisk {
			h, err := fs.NewDiskStorage(cfg.Sandbox.Dir)
			if err != nil {
				return nil, "", err
			}
			handle = h
		} else {
			handle = fs.NewMemoryStorage()
		}
		return fs.NewSandboxFS(handle), fs.Root, nil
	}
	return nil, "", fmt.Errorf("unknown backend %q", cfg.Backend)
}

func (s *Session) openStore(cfg *config.Config) error {
	if s.ws.Backend().Kind() == fs.KindHost {
		s.store = project.NewHostStore(s.ws.Backend(), cfg.Host.DataDir, s.logger.Named("projects"))
		return nil
	}
	db, err := project.OpenDB(cfg.Sandbox.DBDriver, cfg.Sandbox.DBDSN)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, db)
	s.store = project.NewSQLStore(db, s.ws, s.logger.Named("projects"))
	return nil
}

// wsURL turns an http(s) base URL into the host WebSocket endpoint.
func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/host/ws"
}

// Workspace returns the session's workspace.
func (s *Session) Workspace() *workspace.Workspace { return s.ws }

// Current returns the name of the open project, or "".
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Projects returns the saved project index.
func (s *Session) Projects() map[string]project.Entry {
	return s.store.Projects()
}

// SaveProject saves the current tree under name.
func (s *Session) SaveProject(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(ctx, s.ws.Root(), name); err != nil {
		return err
	}
	s.current = name
	return nil
}

// OpenProject closes the current project, restores name and replaces the
// workspace root with the restored tree.
func (s *Session) OpenProject(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Projects()[name]; !ok {
		return fmt.Errorf("project %q: %w", name, fs.ErrNotFound)
	}
	if err := s.store.Close(ctx); err != nil {
		return err
	}
	root, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("project %q: %w", name, fs.ErrNotFound)
	}
	if err := s.ws.Replace(ctx, root); err != nil {
		return fmt.Errorf("sync project %q: %w", name, err)
	}
	s.current = name
	s.logger.Info("opened project", zap.String("name", name), zap.String("root", root.Path()))
	return nil
}

// CloseProject clears the active workspace.
func (s *Session) CloseProject(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Close(ctx); err != nil {
		return err
	}
	s.current = ""
	return nil
}

// DeleteProject removes a saved project.
func (s *Session) DeleteProject(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	if s.current == name {
		s.current = ""
	}
	return nil
}

// ExportProject writes the current tree to w as a zip archive.
func (s *Session) ExportProject(ctx context.Context, w io.Writer) error {
	return project.Export(ctx, s.ws, s.ws.Root(), w)
}

// Close releases connections held by the session.
func (s *Session) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
