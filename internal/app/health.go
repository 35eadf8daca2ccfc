package app

import (
	"errors"
	"time"

	rtsup "gamenewsbot/internal/runtime/supervisor"
	"gamenewsbot/internal/task/scheduler"
)

var (
	errNotStarted = errors.New("app not started")
	errStopping   = errors.New("app stopping")
	errNoWorkers  = errors.New("task engine has no running workers")
)

// Status is the operator view served on /healthz.
type Status struct {
	Scheduler   scheduler.Snapshot `json:"scheduler"`
	Supervisor  rtsup.Snapshot     `json:"supervisor"`
	DedupWindow time.Duration      `json:"dedup_window"`
	InFlight    int                `json:"in_flight_links"`
	PromoLast   *time.Time         `json:"promo_last_sent,omitempty"`
	PromoNext   *time.Time         `json:"promo_next_due,omitempty"`
}

func (a *App) Status() Status {
	st := Status{
		Scheduler:   a.sched.Snapshot(),
		DedupWindow: a.dedup.Window(),
		InFlight:    a.dedup.InFlight(),
	}
	if a.sup != nil {
		st.Supervisor = a.sup.Snapshot()
	}
	if a.limit != nil {
		last, next := a.limit.LastSent(), a.limit.NextDue()
		st.PromoLast, st.PromoNext = &last, &next
	}
	return st
}

// live fails once the app is shutting down or the engine lost its workers.
func (a *App) live() error {
	if a.sup == nil {
		return errNotStarted
	}
	if a.sup.Context().Err() != nil {
		return errStopping
	}
	if sup := a.engine.Supervisor(); sup == nil || sup.Snapshot().Active == 0 {
		return errNoWorkers
	}
	return nil
}
