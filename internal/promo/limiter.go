// Package promo paces the recurring promotional post.
package promo

import (
	"context"
	"fmt"
	"sync"
	"time"

	logx "gamenewsbot/pkg/logx"
)

// DefaultPeriod is the minimum spacing between two promo posts.
const DefaultPeriod = 72 * time.Hour

// StateStore persists the last successful promo dispatch.
type StateStore interface {
	LoadPromoState(ctx context.Context) (time.Time, bool, error)
	SavePromoState(ctx context.Context, lastSent time.Time) error
}

// Limiter is Eligible once period has elapsed since the last successful
// send, and Cooling otherwise. Only MarkSent moves lastSent.
type Limiter struct {
	period time.Duration
	state  StateStore

	mu       sync.Mutex
	lastSent time.Time
}

// NewLimiter returns an in-memory limiter starting from initial.
func NewLimiter(period time.Duration, initial time.Time) *Limiter {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Limiter{period: period, lastSent: initial}
}

// RestoreLimiter loads lastSent from state. A fresh store starts the
// limiter one period in the past, so the first tick is eligible; that
// value is written back right away.
func RestoreLimiter(ctx context.Context, period time.Duration, state StateStore, now time.Time, log logx.Logger) (*Limiter, error) {
	l := NewLimiter(period, time.Time{})
	l.state = state
	if log.IsZero() {
		log = logx.Nop()
	}

	last, ok, err := state.LoadPromoState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load promo state: %w", err)
	}
	if ok {
		l.lastSent = last
		log.Debug("promo state restored", logx.Time("last_sent", last), logx.Time("next_due", l.NextDue()))
		return l, nil
	}

	l.lastSent = now.Add(-l.period)
	if err := state.SavePromoState(ctx, l.lastSent); err != nil {
		log.Warn("promo state init not persisted", logx.Err(err))
	}
	return l, nil
}

func (l *Limiter) Period() time.Duration { return l.period }

// IsDue reports whether at least one period has elapsed since lastSent.
func (l *Limiter) IsDue(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Sub(l.lastSent) >= l.period
}

// MarkSent records a successful dispatch. The in-memory value is updated
// even if persisting it fails; the error is returned for logging.
func (l *Limiter) MarkSent(ctx context.Context, at time.Time) error {
	l.mu.Lock()
	l.lastSent = at
	st := l.state
	l.mu.Unlock()
	if st == nil {
		return nil
	}
	if err := st.SavePromoState(ctx, at); err != nil {
		return fmt.Errorf("save promo state: %w", err)
	}
	return nil
}

func (l *Limiter) LastSent() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSent
}

func (l *Limiter) NextDue() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSent.Add(l.period)
}
