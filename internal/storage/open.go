package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	logx "cronus/pkg/logx"
)

const defaultKeep = 10000

// Store is the history API used by the daemon and `cronus history`.
type Store interface {
	// AppendRun assigns an ID when e.ID is zero.
	AppendRun(ctx context.Context, e RunEntry) error
	// RecentRuns returns up to limit entries, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Keep <= 0 {
		cfg.Keep = defaultKeep
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func withID(e RunEntry) RunEntry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return e
}
