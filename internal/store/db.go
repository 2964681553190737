package store

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is the durable Store backend.
type DB struct {
	*sqlx.DB
	dialect Dialect
}

// OpenSQLite opens the SQLite database at path with WAL mode and a busy timeout.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY under concurrent sends.
	db.SetMaxOpenConns(1)
	return connect(ctx, db, DialectSQLite)
}

// OpenPostgres opens a PostgreSQL database through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return connect(ctx, db, DialectPostgres)
}

func connect(ctx context.Context, db *sqlx.DB, d Dialect) (*DB, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, dialect: d}, nil
}

// Dialect reports the backend this database speaks.
func (db *DB) Dialect() Dialect {
	return db.dialect
}
