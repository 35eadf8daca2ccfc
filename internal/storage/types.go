package storage

import (
	"errors"
	"time"
)

var (
	ErrClosed    = errors.New("storage closed")
	ErrEmptyLink = errors.New("storage: empty link")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL reachable at DSN
//   - "file": journal + snapshot files using Path as prefix
//   - "memory": nothing survives a restart
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// PostedRecord is one successful dispatch of a feed link. Records are
// append-only.
type PostedRecord struct {
	Link         string    `json:"link"`
	DispatchedAt time.Time `json:"dispatched_at"`
}
