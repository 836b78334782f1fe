package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/tiledash/internal/backup"
	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/persist"
	"github.com/starford/tiledash/internal/sqlstore"
	"github.com/starford/tiledash/internal/storage"
	"github.com/starford/tiledash/internal/tilestore"
)

// Components is a loaded dashboard with everything it depends on.
type Components struct {
	Store   *tilestore.Store
	DB      *sqlstore.DB
	History *backup.History
	Service *dashboard.Service

	// FS and Local are set only for the local storage driver.
	FS    *storage.FS
	Local *persist.Local
}

// Open builds and loads the dashboard described by cfg. events may be nil.
// Callers must Close the result.
func Open(ctx context.Context, cfg *Config, events dashboard.Publisher, logger *slog.Logger) (*Components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init sqlite: %w", err)
	}

	c := &Components{DB: db}

	var adapter persist.Adapter
	switch cfg.Storage.Driver {
	case DriverSQLite:
		adapter = db
	case DriverMemory:
		adapter = persist.NewMemory()
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Storage.Path)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.FS = fs
		c.Local = persist.NewLocal(fs)
		adapter = c.Local
	}

	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	c.History = backup.NewHistory(backup.NewDiskv(cfg.Backup.Path), cfg.Backup.Max)

	c.Store = tilestore.New(adapter,
		tilestore.WithDebounce(cfg.Persist.Debounce),
		tilestore.WithLogger(logger))
	if err := c.Store.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	c.Service = dashboard.NewService(c.Store, db, c.History, events, logger)
	return c, nil
}

// Close writes pending changes and releases the database.
func (c *Components) Close(ctx context.Context) error {
	return errors.Join(c.Store.Flush(ctx), c.DB.Close())
}
