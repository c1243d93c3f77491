package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/xwines/xwines/internal/store"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open connects to the configured backend and returns the handle together
// with the dialect queries against it must use.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, store.Dialect, error) {
	if cfg.DSN == "" {
		return nil, store.Dialect{}, fmt.Errorf("store dsn is required")
	}
	dialect, err := store.DialectFor(cfg.Driver)
	if err != nil {
		return nil, store.Dialect{}, err
	}

	db, err := sql.Open(dialect.Driver, cfg.DSN)
	if err != nil {
		return nil, store.Dialect{}, fmt.Errorf("open %s store: %w", dialect.Name, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, store.Dialect{}, fmt.Errorf("ping %s store: %w", dialect.Name, err)
	}

	return db, dialect, nil
}
