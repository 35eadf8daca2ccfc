package promo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gamenewsbot/internal/dispatch"
	"gamenewsbot/internal/storage"
	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
)

type fakeSender struct {
	posts []dispatch.Post
	fail  bool
}

func (f *fakeSender) Send(ctx context.Context, dest kit.Target, p dispatch.Post) dispatch.Result {
	if f.fail {
		return dispatch.Result{Reason: dispatch.ReasonTransport, Err: errors.New("network down")}
	}
	f.posts = append(f.posts, p)
	return dispatch.Result{OK: true, MessageID: len(f.posts)}
}

func TestLimiterPeriod(t *testing.T) {
	t.Parallel()

	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(72*time.Hour, last)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"2d23h later", last.Add(71 * time.Hour), false},
		{"exactly one period", last.Add(72 * time.Hour), true},
		{"3d1h later", last.Add(73 * time.Hour), true},
	}
	for _, tc := range cases {
		if got := l.IsDue(tc.at); got != tc.want {
			t.Fatalf("%s: IsDue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRestoreLimiterFreshStoreIsDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := storage.NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	l, err := RestoreLimiter(ctx, 72*time.Hour, mem, now, logx.Nop())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !l.IsDue(now) {
		t.Fatalf("fresh limiter should be eligible")
	}
	saved, ok, _ := mem.LoadPromoState(ctx)
	if !ok || !saved.Equal(now.Add(-72*time.Hour)) {
		t.Fatalf("initial state = %v ok=%v", saved, ok)
	}

	if err := l.MarkSent(ctx, now); err != nil {
		t.Fatalf("mark: %v", err)
	}
	l2, err := RestoreLimiter(ctx, 72*time.Hour, mem, now.Add(time.Hour), logx.Nop())
	if err != nil {
		t.Fatalf("restore again: %v", err)
	}
	if l2.IsDue(now.Add(time.Hour)) {
		t.Fatalf("restored limiter should be cooling")
	}
	if !l2.LastSent().Equal(now) {
		t.Fatalf("LastSent = %v", l2.LastSent())
	}
}

func TestJobSpacing(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := start
	l := NewLimiter(72*time.Hour, start.Add(-72*time.Hour))
	s := &fakeSender{}
	j := NewJob(l, s, kit.Target("@c"), Payload{Caption: "<b>AD</b>", ImageURL: "https://x/i.jpg", ButtonText: "go", ButtonURL: "https://t.me/x"},
		logx.Nop(), WithClock(func() time.Time { return now }))

	var sentAt []time.Time
	for h := 0; h <= 24*9; h += 12 {
		now = start.Add(time.Duration(h) * time.Hour)
		out, err := j.Run(context.Background())
		if err != nil {
			t.Fatalf("run at +%dh: %v", h, err)
		}
		if out == OutcomeSent {
			sentAt = append(sentAt, now)
		}
	}
	if len(sentAt) != 4 {
		t.Fatalf("sent %d promos, want 4: %v", len(sentAt), sentAt)
	}
	for i := 1; i < len(sentAt); i++ {
		if gap := sentAt[i].Sub(sentAt[i-1]); gap < 72*time.Hour {
			t.Fatalf("promos %d and %d only %s apart", i-1, i, gap)
		}
	}
	p := s.posts[0]
	if len(p.Buttons) != 1 || p.Buttons[0].URL != "https://t.me/x" || p.ImageURL == "" {
		t.Fatalf("post = %+v", p)
	}
}

func TestJobFailureKeepsEligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-100 * time.Hour)
	l := NewLimiter(72*time.Hour, last)
	s := &fakeSender{fail: true}
	j := NewJob(l, s, kit.Target("@c"), Payload{Caption: "AD"}, logx.Nop(), WithClock(func() time.Time { return now }))

	out, err := j.Run(context.Background())
	if out != OutcomeFailed || err == nil {
		t.Fatalf("run = %v, %v; want failed", out, err)
	}
	if !l.LastSent().Equal(last) {
		t.Fatalf("failure moved lastSent to %v", l.LastSent())
	}
	if !l.IsDue(now) {
		t.Fatalf("limiter should stay eligible after failure")
	}

	s.fail = false
	if out, _ := j.Run(context.Background()); out != OutcomeSent {
		t.Fatalf("retry outcome = %v", out)
	}
}

func TestSanitizeCaption(t *testing.T) {
	t.Parallel()

	got := SanitizeCaption("<b>AD</b><script>x</script><div>y</div>")
	if got != "<b>AD</b>y" {
		t.Fatalf("SanitizeCaption = %q", got)
	}
	if got := SanitizeCaption(`<a href="https://t.me/x">go</a>`); !strings.Contains(got, `href="https://t.me/x"`) {
		t.Fatalf("link dropped: %q", got)
	}
}

func TestTicksOnePeriodApartStayDue(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	period := 72 * time.Hour
	l := NewLimiter(period, start.Add(-period))
	sender := &fakeSender{}

	// Each run starts a little after its trigger, by a varying amount.
	delays := []time.Duration{5 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond, 2 * time.Millisecond}
	var clock time.Time
	j := NewJob(l, sender, "@chan", Payload{Caption: "ad"}, logx.Nop(), WithClock(func() time.Time { return clock }))

	for i, d := range delays {
		tick := start.Add(time.Duration(i) * period)
		clock = tick.Add(d)
		out, err := j.RunAt(context.Background(), tick)
		if err != nil || out != OutcomeSent {
			t.Fatalf("tick %d: outcome=%s err=%v, want sent", i, out, err)
		}
	}
	if len(sender.posts) != len(delays) {
		t.Fatalf("sent %d promos over %d ticks", len(sender.posts), len(delays))
	}

	// The wall clock alone loses a tick when the next delay is shorter.
	wall := NewLimiter(period, start.Add(-period))
	wj := NewJob(wall, &fakeSender{}, "@chan", Payload{Caption: "ad"}, logx.Nop(), WithClock(func() time.Time { return clock }))
	clock = start.Add(delays[0])
	_, _ = wj.Run(context.Background())
	clock = start.Add(period + delays[1])
	if out, _ := wj.Run(context.Background()); out != OutcomeCooling {
		t.Fatalf("wall clock run = %s, want cooling", out)
	}
}
