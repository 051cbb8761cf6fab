package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/metrics"
	"github.com/CageChen/ezworkspace/internal/tree"
	"github.com/CageChen/ezworkspace/internal/workspace"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"
)

// Supported database drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		name          TEXT PRIMARY KEY,
		last_modified BIGINT NOT NULL,
		root_path     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`,
}

// OpenDB opens a database for the SQL store. An empty DuckDB dsn is an
// in-memory database.
func OpenDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverDuckDB, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// SQLStore persists full project snapshots in a SQL database. The snapshot
// and its index entry are written in one transaction.
type SQLStore struct {
	db     *sql.DB
	ws     *workspace.Workspace
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	index map[string]Entry
}

// NewSQLStore creates a store over db for the sandboxed workspace ws.
func NewSQLStore(db *sql.DB, ws *workspace.Workspace, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:     db,
		ws:     ws,
		logger: logger,
		now:    time.Now,
		index:  make(map[string]Entry),
	}
}

// withTx runs fn inside a transaction that is committed when fn returns nil
// and rolled back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// Init creates the schema on first use and loads the index.
func (s *SQLStore) Init(ctx context.Context) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
			return fmt.Errorf("create schema_version: %w", err)
		}
		var version sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version.Valid && version.Int64 >= schemaVersion {
			return nil
		}
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		s.logger.Info("initialized project schema", zap.Int("version", schemaVersion))
		return nil
	})
	if err != nil {
		return err
	}
	return s.load(ctx)
}

func (s *SQLStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, last_modified, root_path FROM projects`)
	if err != nil {
		return fmt.Errorf("load project index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]Entry)
	for rows.Next() {
		var name string
		var e Entry
		if err := rows.Scan(&name, &e.LastModified, &e.RootPath); err != nil {
			return fmt.Errorf("scan project: %w", err)
		}
		index[name] = e
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load project index: %w", err)
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// Save snapshots root and stores it under name, replacing any previous
// project with that name.
func (s *SQLStore) Save(ctx context.Context, root *tree.Dir, name string) (err error) {
	defer func(start time.Time) { metrics.RecordProjectOp("sql", "save", time.Since(start), err) }(time.Now())
	if err := validName(name); err != nil {
		return err
	}

	snap, err := Serialize(ctx, s.ws, root, name)
	if err != nil {
		return err
	}
	data, err := MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	entry := Entry{LastModified: s.now().UnixMilli(), RootPath: root.Path()}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (name, data) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET data = excluded.data`,
			name, string(data)); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (name, last_modified, root_path) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO UPDATE SET last_modified = excluded.last_modified, root_path = excluded.root_path`,
			name, entry.LastModified, entry.RootPath); err != nil {
			return fmt.Errorf("write project index: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save project %q: %w", name, err)
	}

	s.mu.Lock()
	s.index[name] = entry
	s.mu.Unlock()
	s.logger.Info("saved project", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// Close removes every entry below the workspace root.
func (s *SQLStore) Close(ctx context.Context) error {
	root := s.ws.Root()
	items, err := s.ws.List(ctx, root)
	if err != nil {
		return fmt.Errorf("close project: %w", err)
	}
	for _, item := range items {
		switch v := item.(type) {
		case *tree.Dir:
			err = s.ws.RemoveDirRecursive(ctx, v)
		case *tree.File:
			err = s.ws.RemoveFile(ctx, v)
		}
		if err != nil {
			return fmt.Errorf("close project: %w", err)
		}
	}
	return nil
}

// Get restores the named snapshot into the workspace backend and returns a
// fresh root for it. The workspace should have been closed first.
func (s *SQLStore) Get(ctx context.Context, name string) (root *tree.Dir, err error) {
	defer func(start time.Time) { metrics.RecordProjectOp("sql", "open", time.Since(start), err) }(time.Now())

	var data string
	err = s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load project %q: %w", name, err)
	}

	snap, err := UnmarshalSnapshot([]byte(data))
	if err != nil {
		return nil, err
	}
	if err := Deserialize(ctx, s.ws.Backend(), snap, fs.Root); err != nil {
		return nil, err
	}
	return tree.NewRoot(fs.Root), nil
}

// Delete removes the project and its snapshot.
func (s *SQLStore) Delete(ctx context.Context, name string) error {
	var removed int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = $1`, name); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE name = $1`, name)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete project %q: %w", name, err)
	}
	if removed == 0 {
		return fmt.Errorf("project %q: %w", name, fs.ErrNotFound)
	}

	s.mu.Lock()
	delete(s.index, name)
	s.mu.Unlock()
	return nil
}

// Projects returns a copy of the index.
func (s *SQLStore) Projects() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIndex(s.index)
}
