package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gamenewsbot/internal/storage"
	logx "gamenewsbot/pkg/logx"
)

func TestWindowScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := storage.NewMemory()
	s := New(mem, 35*time.Minute, logx.Nop())
	T := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	const link = "https://x/1"

	if err := s.RecordPosted(ctx, link, T); err != nil {
		t.Fatalf("record: %v", err)
	}

	cases := []struct {
		name string
		asOf time.Time
		want bool
	}{
		{"reappears after 20m", T.Add(20 * time.Minute), true},
		{"just inside window", T.Add(35*time.Minute - time.Second), true},
		{"window boundary", T.Add(35 * time.Minute), false},
		{"reappears after 40m", T.Add(40 * time.Minute), false},
	}
	for _, tc := range cases {
		got, err := s.WasRecentlyPosted(ctx, link, tc.asOf)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: WasRecentlyPosted = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAcquireCommitAndRelease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := storage.NewMemory()
	s := New(mem, 35*time.Minute, logx.Nop())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	c, err := s.Acquire(ctx, "https://x/1", now)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := s.Acquire(ctx, "https://x/1", now); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second acquire err = %v, want ErrInFlight", err)
	}

	c.Release()
	c.Release()
	if len(mem.Records()) != 0 {
		t.Fatalf("release must not record")
	}

	c, err = s.Acquire(ctx, "https://x/1", now)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := c.Commit(ctx, now); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.InFlight() != 0 {
		t.Fatalf("commit must release the claim")
	}
	if _, err := s.Acquire(ctx, "https://x/1", now.Add(20*time.Minute)); !errors.Is(err, ErrRecentlyPosted) {
		t.Fatalf("acquire within window err = %v, want ErrRecentlyPosted", err)
	}
	if _, err := s.Acquire(ctx, "https://x/1", now.Add(40*time.Minute)); err != nil {
		t.Fatalf("acquire after window: %v", err)
	}
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(storage.NewMemory(), 0, logx.Nop())
	now := time.Now()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Acquire(ctx, "https://x/race", now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1", wins.Load())
	}
}

type failingBackend struct{}

func (failingBackend) PostedSince(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("disk on fire")
}

func (failingBackend) AppendPosted(context.Context, storage.PostedRecord) error {
	return errors.New("disk on fire")
}

func TestBackendErrorsSurface(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(failingBackend{}, time.Minute, logx.Nop())

	_, err := s.Acquire(ctx, "https://x/1", time.Now())
	if err == nil || errors.Is(err, ErrRecentlyPosted) || errors.Is(err, ErrInFlight) {
		t.Fatalf("acquire err = %v, want backend failure", err)
	}
	if s.InFlight() != 0 {
		t.Fatalf("failed acquire must not leave a claim")
	}
	if err := s.RecordPosted(ctx, "https://x/1", time.Now()); err == nil {
		t.Fatalf("record should fail")
	}
	if _, err := s.Acquire(ctx, " ", time.Now()); !errors.Is(err, ErrEmptyLink) {
		t.Fatalf("empty link err = %v", err)
	}
}
