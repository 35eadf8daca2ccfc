package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "gamenewsbot/pkg/logx"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name:        "sqlite",
	postedSince: `SELECT 1 FROM posted_links WHERE link = ? AND dispatched_at > ? LIMIT 1`,
	insert:      `INSERT INTO posted_links(link, dispatched_at) VALUES(?, ?)`,
	prune:       `DELETE FROM posted_links WHERE dispatched_at < ?`,
	loadPromo:   `SELECT last_sent FROM promo_state WHERE id = 1`,
	savePromo: `INSERT INTO promo_state(id, last_sent) VALUES(1, ?)
		ON CONFLICT(id) DO UPDATE SET last_sent = excluded.last_sent`,
	encodeTime: func(t time.Time) any { return t.UnixMilli() },
	decodeTime: func(v any) (time.Time, error) {
		switch x := v.(type) {
		case int64:
			return time.UnixMilli(x), nil
		case float64:
			return time.UnixMilli(int64(x)), nil
		default:
			return time.Time{}, fmt.Errorf("unexpected time column type %T", v)
		}
	},
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path), logx.Duration("busy_timeout", busy))
	return &sqlStore{db: db, d: sqliteDialect, log: log}, nil
}
