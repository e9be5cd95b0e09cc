package store

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Store is the audit/error persistence API used by the gate and broadcast.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	AppendError(ctx context.Context, e ErrorEntry) error
	RecentErrors(ctx context.Context, limit int) ([]ErrorEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "none":
		return nil, nil
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
