package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"gamenewsbot/internal/task/engine"
	logx "gamenewsbot/pkg/logx"
)

var ErrUnknownSchedule = errors.New("unknown schedule")

// AddInterval registers job to run every interval. Registering a name again
// replaces the previous definition. Runs of one schedule never overlap: a
// trigger that fires while the previous run is queued or executing is
// skipped.
func (s *Service) AddInterval(name string, every, timeout time.Duration, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("schedule name required")
	}
	if every <= 0 {
		return fmt.Errorf("schedule %q: interval must be > 0", name)
	}
	if job == nil {
		return fmt.Errorf("schedule %q: job is nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{
		name:    name,
		every:   every,
		timeout: timeout,
		job:     job,
		state:   &engine.RunState{},
	})
	if s.c != nil {
		s.addCronLocked(&s.defs[len(s.defs)-1])
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.Duration("every", every), logx.Duration("timeout", timeout))
	return nil
}

// RunNow enqueues one run of a registered schedule outside its trigger. It
// shares the schedule's overlap state, so it returns engine.ErrOverlapSkip
// while a run is in flight.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	var def *scheduleDef
	for i := range s.defs {
		if s.defs[i].name == name {
			d := s.defs[i]
			def = &d
			break
		}
	}
	s.mu.Unlock()
	if def == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return s.enqueue(*def, time.Time{})
}

// Remove unregisters a schedule. It reports whether one existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	n := 0
	removed := false
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) {
	def := *d
	c := s.c
	var id atomic.Int64
	job := cron.FuncJob(func() {
		// cron moves Prev to the fired trigger before it serves the next
		// Entry lookup, so this is the scheduled time, not the wake-up.
		tick := c.Entry(cron.EntryID(id.Load())).Prev
		if err := s.enqueue(def, tick); err != nil {
			s.reportEnqueueError(def.name, err)
		}
	})

	now := time.Now().In(s.loc)
	sched, spread := intervalSchedule(d.every, s.cfg.StartupSpread, now, d.name)
	d.spread = spread
	d.entryID = c.Schedule(sched, job)
	id.Store(int64(d.entryID))

	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("schedule armed", logx.String("name", d.name), logx.String("next", sched.Next(now).Format("2006-01-02 15:04:05")), logx.Duration("spread", spread))
	}
}

func (s *Service) enqueue(d scheduleDef, tick time.Time) error {
	if s.engine == nil {
		return engine.ErrStopped
	}
	run := d.job
	if !tick.IsZero() {
		run = func(ctx context.Context) error { return d.job(withTick(ctx, tick)) }
	}
	return s.engine.Enqueue(engine.Task{
		Name:    d.name,
		Timeout: d.timeout,
		Run:     run,
		Overlap: engine.OverlapSkipIfRunning,
		State:   d.state,
	})
}
