// Package scheduler turns interval definitions into robfig/cron triggers.
//
// The scheduler never runs jobs itself. Each trigger enqueues a task into
// the task engine, which owns workers, timeouts and panic recovery.
package scheduler
