package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "gamenewsbot/pkg/logx"
)

// Store is the persistence API used by the dedup store and the promo limiter.
type Store interface {
	// PostedSince reports whether link has a record with DispatchedAt
	// strictly after since.
	PostedSince(ctx context.Context, link string, since time.Time) (bool, error)
	AppendPosted(ctx context.Context, rec PostedRecord) error
	// PrunePosted deletes records dispatched before cutoff and returns how
	// many were removed.
	PrunePosted(ctx context.Context, cutoff time.Time) (int64, error)

	LoadPromoState(ctx context.Context) (lastSent time.Time, ok bool, err error)
	SavePromoState(ctx context.Context, lastSent time.Time) error

	Ping(ctx context.Context) error
	Close() error
}

// Open initializes the configured store. An empty driver means sqlite.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	case "file":
		return openFile(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
