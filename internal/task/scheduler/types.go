package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gamenewsbot/internal/task/engine"
	logx "gamenewsbot/pkg/logx"
)

type Config struct {
	// Timezone is an IANA name used for trigger times in logs and
	// snapshots. Empty means time.Local.
	Timezone string

	// StartupSpread caps the random delay added to the first trigger of
	// every interval schedule. 0 disables it.
	StartupSpread time.Duration
}

type scheduleDef struct {
	name    string
	every   time.Duration
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	spread  time.Duration
	state   *engine.RunState
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	engine *engine.Service

	c    *cron.Cron
	defs []scheduleDef

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time
}

type ScheduleInfo struct {
	Name    string        `json:"name"`
	Every   time.Duration `json:"every"`
	Timeout time.Duration `json:"timeout"`
	Spread  time.Duration `json:"startup_spread"`
	Running bool          `json:"running"`
	Next    time.Time     `json:"next"`
	Prev    time.Time     `json:"prev"`
}

type Snapshot struct {
	Started   bool            `json:"started"`
	Timezone  string          `json:"timezone"`
	Schedules []ScheduleInfo  `json:"schedules"`
	Engine    engine.Snapshot `json:"engine"`
}
