package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	logx "gamenewsbot/pkg/logx"
)

// dialect carries the driver-specific SQL and time encoding.
type dialect struct {
	name string

	postedSince string
	insert      string
	prune       string
	loadPromo   string
	savePromo   string

	encodeTime func(t time.Time) any
	decodeTime func(v any) (time.Time, error)
}

// sqlStore implements Store on database/sql.
type sqlStore struct {
	db     *sql.DB
	d      dialect
	log    logx.Logger
	closed atomic.Bool
}

func (s *sqlStore) PostedSince(ctx context.Context, link string, since time.Time) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return false, ErrEmptyLink
	}
	var one int
	err := s.db.QueryRowContext(ctx, s.d.postedSince, link, s.d.encodeTime(since)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: query posted link: %w", s.d.name, err)
	}
	return true, nil
}

func (s *sqlStore) AppendPosted(ctx context.Context, rec PostedRecord) error {
	if s.closed.Load() {
		return ErrClosed
	}
	link := strings.TrimSpace(rec.Link)
	if link == "" {
		return ErrEmptyLink
	}
	at := rec.DispatchedAt
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, s.d.insert, link, s.d.encodeTime(at)); err != nil {
		return fmt.Errorf("%s: insert posted link: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) PrunePosted(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, s.d.prune, s.d.encodeTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("%s: prune posted links: %w", s.d.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *sqlStore) LoadPromoState(ctx context.Context) (time.Time, bool, error) {
	if s.closed.Load() {
		return time.Time{}, false, ErrClosed
	}
	var raw any
	err := s.db.QueryRowContext(ctx, s.d.loadPromo).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: load promo state: %w", s.d.name, err)
	}
	t, err := s.d.decodeTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: decode promo state: %w", s.d.name, err)
	}
	return t, true, nil
}

func (s *sqlStore) SavePromoState(ctx context.Context, lastSent time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, s.d.savePromo, s.d.encodeTime(lastSent)); err != nil {
		return fmt.Errorf("%s: save promo state: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
