package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "gamenewsbot/pkg/logx"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:        "postgres",
	postedSince: `SELECT 1 FROM posted_links WHERE link = $1 AND dispatched_at > $2 LIMIT 1`,
	insert:      `INSERT INTO posted_links(link, dispatched_at) VALUES($1, $2)`,
	prune:       `DELETE FROM posted_links WHERE dispatched_at < $1`,
	loadPromo:   `SELECT last_sent FROM promo_state WHERE id = 1`,
	savePromo: `INSERT INTO promo_state(id, last_sent) VALUES(1, $1)
		ON CONFLICT(id) DO UPDATE SET last_sent = EXCLUDED.last_sent`,
	encodeTime: func(t time.Time) any { return t.UTC() },
	decodeTime: func(v any) (time.Time, error) {
		t, ok := v.(time.Time)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected time column type %T", v)
		}
		return t, nil
	},
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if err := migratePostgres(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	log.Debug("postgres store opened")
	return &sqlStore{db: db, d: postgresDialect, log: log}, nil
}
