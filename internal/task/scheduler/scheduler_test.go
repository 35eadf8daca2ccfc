package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gamenewsbot/internal/task/engine"
	logx "gamenewsbot/pkg/logx"
)

func newTestScheduler(t *testing.T) (*Service, *engine.Service) {
	t.Helper()
	eng := engine.New(engine.Config{Workers: 2, QueueSize: 8}, logx.Nop())
	eng.Start(context.Background())
	s := New(Config{}, eng, logx.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
		eng.Stop(ctx)
	})
	return s, eng
}

func TestAddIntervalValidation(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nil, logx.Nop())
	noop := func(context.Context) error { return nil }
	cases := []struct {
		name  string
		every time.Duration
		job   func(context.Context) error
	}{
		{"", time.Minute, noop},
		{"news", 0, noop},
		{"news", time.Minute, nil},
	}
	for _, tc := range cases {
		if err := s.AddInterval(tc.name, tc.every, 0, tc.job); err == nil {
			t.Fatalf("AddInterval(%q, %v) accepted invalid input", tc.name, tc.every)
		}
	}
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	err := s.AddInterval("news", time.Hour, time.Minute, func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	s.Start(context.Background())

	if err := s.RunNow("news"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	<-started
	if err := s.RunNow("news"); !errors.Is(err, engine.ErrOverlapSkip) {
		t.Fatalf("second RunNow err = %v, want ErrOverlapSkip", err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || !snap.Schedules[0].Running || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap.Schedules)
	}
	close(release)

	if err := s.RunNow("missing"); !errors.Is(err, ErrUnknownSchedule) {
		t.Fatalf("RunNow(missing) err = %v", err)
	}
}

func TestPanickingJobDoesNotStopOtherSchedules(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	var panics, ticks atomic.Int32
	_ = s.AddInterval("promo", time.Second, 0, func(context.Context) error {
		panics.Add(1)
		panic("promo exploded")
	})
	_ = s.AddInterval("news", time.Second, 0, func(context.Context) error {
		ticks.Add(1)
		return nil
	})
	s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for ticks.Load() < 2 || panics.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("ticks=%d panics=%d, want both >= 2", ticks.Load(), panics.Load())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestRemoveAndReplace(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nil, logx.Nop())
	noop := func(context.Context) error { return nil }
	_ = s.AddInterval("prune", time.Hour, 0, noop)
	_ = s.AddInterval("prune", 2*time.Hour, 0, noop)
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Every != 2*time.Hour {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if !s.Remove("prune") || s.Remove("prune") {
		t.Fatalf("Remove should report true once")
	}
	if err := s.RunNow("prune"); !errors.Is(err, ErrUnknownSchedule) {
		t.Fatalf("RunNow after remove err = %v", err)
	}
}

func TestStartupSpreadDelaysFirstRunOnly(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sched, spread := intervalSchedule(time.Hour, 30*time.Second, now, "news")
	if spread < 0 || spread >= 30*time.Second {
		t.Fatalf("spread = %v", spread)
	}
	first := sched.Next(now)
	if want := now.Add(time.Hour + spread); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	// cron.Every triggers on whole seconds after the first run.
	if second := sched.Next(first); second.Sub(first.Truncate(time.Second)) != time.Hour {
		t.Fatalf("second trigger %v is not one interval after %v", second, first)
	}

	if _, spread := intervalSchedule(time.Hour, 0, now, "news"); spread != 0 {
		t.Fatalf("disabled spread = %v", spread)
	}
}

func TestTriggeredRunsCarryTickTime(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	type seen struct {
		tick time.Time
		ok   bool
		at   time.Time
	}
	runs := make(chan seen, 4)
	_ = s.AddInterval("promo", time.Second, 0, func(ctx context.Context) error {
		tick, ok := TickTime(ctx)
		select {
		case runs <- seen{tick: tick, ok: ok, at: time.Now()}:
		default:
		}
		return nil
	})
	if err := s.RunNow("promo"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	s.Start(context.Background())

	var manual, triggered int
	var got seen
	deadline := time.After(5 * time.Second)
	for manual == 0 || triggered == 0 {
		select {
		case r := <-runs:
			if r.ok {
				triggered++
				got = r
			} else {
				manual++
			}
		case <-deadline:
			t.Fatalf("manual=%d triggered=%d, want one of each", manual, triggered)
		}
	}
	// @every triggers land on whole seconds; the run itself starts later.
	if got.tick.Nanosecond() != 0 || got.tick.After(got.at) {
		t.Fatalf("tick = %v, run started at %v", got.tick, got.at)
	}
}
