// Package storage persists dispatch history and promo cooldown state.
//
// Drivers:
//   - sqlite (default): modernc.org/sqlite, WAL, golang-migrate schema
//   - postgres: lib/pq, golang-migrate schema
//   - file: JSONL journal + compacted snapshot, no database needed
//   - memory: process-local, for tests and dry runs
package storage
