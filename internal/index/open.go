package index

import (
	"context"
	"errors"
	"strings"

	logx "lembra/pkg/logx"
)

// Index is the persistence API used by the scheduler and the reconciler.
//
// Semantics:
//   - Get returns nil for an unknown reminder id, never an error.
//   - Put replaces the whole entry list for the id; an empty list is
//     equivalent to Remove, so no id ever maps to an empty list.
//   - Remove is idempotent.
//   - All returns a point-in-time copy safe to mutate.
//   - GetMeta/PutMeta is a small string KV area for typed settings.
type Index interface {
	Get(ctx context.Context, reminderID string) ([]Entry, error)
	Put(ctx context.Context, reminderID string, entries []Entry) error
	Remove(ctx context.Context, reminderID string) error
	All(ctx context.Context) (map[string][]Entry, error)
	GetMeta(ctx context.Context, key string) (value string, ok bool, err error)
	PutMeta(ctx context.Context, key, value string) error
	Close() error
}

// Open initializes the configured backend. The index is not optional: the
// scheduler cannot restore or reconcile triggers without it, so an empty
// driver is an error rather than a disabled store.
func Open(cfg Config, log logx.Logger) (Index, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "":
		return nil, errors.New("index driver is required")
	default:
		return nil, errors.New("unknown index driver: " + driver)
	}
}
