package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Store. It is exported so tests in other
// packages can inspect what was recorded.
type Memory struct {
	mu       sync.Mutex
	records  []PostedRecord
	promo    time.Time
	hasPromo bool
	closed   bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) PostedSince(ctx context.Context, link string, since time.Time) (bool, error) {
	_ = ctx
	link = strings.TrimSpace(link)
	if link == "" {
		return false, ErrEmptyLink
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	for _, r := range m.records {
		if r.Link == link && r.DispatchedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) AppendPosted(ctx context.Context, rec PostedRecord) error {
	_ = ctx
	rec.Link = strings.TrimSpace(rec.Link)
	if rec.Link == "" {
		return ErrEmptyLink
	}
	if rec.DispatchedAt.IsZero() {
		rec.DispatchedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) PrunePosted(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.DispatchedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

func (m *Memory) LoadPromoState(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return time.Time{}, false, ErrClosed
	}
	return m.promo, m.hasPromo, nil
}

func (m *Memory) SavePromoState(ctx context.Context, lastSent time.Time) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.promo = lastSent
	m.hasPromo = true
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Records returns a copy of every stored record in insertion order.
func (m *Memory) Records() []PostedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PostedRecord, len(m.records))
	copy(out, m.records)
	return out
}
