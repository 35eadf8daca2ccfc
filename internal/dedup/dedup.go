// Package dedup answers "was this link dispatched recently?" and guards a
// link while it is being dispatched.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gamenewsbot/internal/storage"
	logx "gamenewsbot/pkg/logx"
)

// DefaultWindow is the reference dedup window.
const DefaultWindow = 35 * time.Minute

var (
	ErrRecentlyPosted = errors.New("dedup: link posted within window")
	ErrInFlight       = errors.New("dedup: link dispatch in progress")
	ErrEmptyLink      = errors.New("dedup: empty link")
)

// Backend is the subset of storage.Store the dedup store needs.
type Backend interface {
	PostedSince(ctx context.Context, link string, since time.Time) (bool, error)
	AppendPosted(ctx context.Context, rec storage.PostedRecord) error
}

// Store owns every PostedRecord. Checks for a link and the claim that
// follows them happen under one lock, so two cycles can never both decide
// that the same link is new.
type Store struct {
	backend Backend
	window  time.Duration
	log     logx.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(backend Backend, window time.Duration, log logx.Logger) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		backend:  backend,
		window:   window,
		log:      log,
		inflight: map[string]struct{}{},
	}
}

func (s *Store) Window() time.Duration { return s.window }

// WasRecentlyPosted reports whether link has a record dispatched after
// asOf minus the window.
func (s *Store) WasRecentlyPosted(ctx context.Context, link string, asOf time.Time) (bool, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return false, ErrEmptyLink
	}
	ok, err := s.backend.PostedSince(ctx, link, asOf.Add(-s.window))
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return ok, nil
}

// RecordPosted appends a record for a successful dispatch.
func (s *Store) RecordPosted(ctx context.Context, link string, at time.Time) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return ErrEmptyLink
	}
	if err := s.backend.AppendPosted(ctx, storage.PostedRecord{Link: link, DispatchedAt: at}); err != nil {
		return fmt.Errorf("dedup record: %w", err)
	}
	return nil
}

// Acquire checks link and claims it for dispatch. It returns
// ErrRecentlyPosted or ErrInFlight when the link must be skipped; any other
// error means the history could not be queried.
//
// The caller must end the claim with Commit or Release.
func (s *Store) Acquire(ctx context.Context, link string, asOf time.Time) (*Claim, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, ErrEmptyLink
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[link]; busy {
		return nil, ErrInFlight
	}
	recent, err := s.WasRecentlyPosted(ctx, link, asOf)
	if err != nil {
		return nil, err
	}
	if recent {
		return nil, ErrRecentlyPosted
	}
	s.inflight[link] = struct{}{}
	return &Claim{store: s, link: link}, nil
}

// InFlight returns how many links are currently claimed.
func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Store) release(link string) {
	s.mu.Lock()
	delete(s.inflight, link)
	s.mu.Unlock()
}

// Claim marks a link as being dispatched.
type Claim struct {
	store *Store
	link  string
	once  sync.Once
}

func (c *Claim) Link() string { return c.link }

// Commit records the dispatch at the given time and releases the claim.
func (c *Claim) Commit(ctx context.Context, at time.Time) error {
	defer c.Release()
	return c.store.RecordPosted(ctx, c.link, at)
}

// Release drops the claim without recording anything. It is safe to call
// more than once.
func (c *Claim) Release() {
	c.once.Do(func() { c.store.release(c.link) })
}
