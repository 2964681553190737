package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mode names the backend a Store is running on.
type Mode string

const (
	ModeSQLite   Mode = "sqlite"
	ModePostgres Mode = "postgres"
	ModeMemory   Mode = "memory"
)

const connectTimeout = 10 * time.Second

// Options selects and locates the durable backend.
type Options struct {
	Driver string // sqlite, postgres or memory
	DSN    string // file path for sqlite, connection URL for postgres
}

// Backend describes the outcome of Open.
type Backend struct {
	Mode Mode
	// Fallback is set when the configured durable backend could not be
	// reached and the in-memory backend replaced it.
	Fallback bool
	Err      error
}

// Open builds the configured Store. A durable backend that fails to open or
// migrate is replaced by the in-memory backend for the rest of the process
// lifetime; callers never see the failure, only Backend.Fallback.
func Open(ctx context.Context, opts Options, log *zap.Logger) (Store, Backend) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" || driver == "memory" {
		if driver == "" && opts.DSN != "" {
			driver = "sqlite"
		} else {
			log.Info("message store ready", zap.String("mode", string(ModeMemory)))
			return NewMemory(), Backend{Mode: ModeMemory}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := openDurable(ctx, driver, opts.DSN)
	if err == nil {
		var res *MigrateResult
		res, err = db.Migrate()
		if err == nil {
			mode := Mode(db.Dialect())
			log.Info("message store ready",
				zap.String("mode", string(mode)),
				zap.Uint("schema_version", res.Version),
				zap.Bool("migrated", res.Changed),
			)
			return db, Backend{Mode: mode}
		}
		_ = db.Close()
	}

	log.Warn("durable message store unavailable, falling back to memory",
		zap.String("driver", driver),
		zap.Error(err),
	)
	return NewMemory(), Backend{Mode: ModeMemory, Fallback: true, Err: err}
}

func openDurable(ctx context.Context, driver, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store driver %q: empty dsn", driver)
	}
	switch driver {
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, dsn)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
