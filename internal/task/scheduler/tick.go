package scheduler

import (
	"context"
	"time"
)

type tickKey struct{}

// TickTime returns the scheduled time of the trigger that started the run
// behind ctx. Runs started with RunNow carry none.
func TickTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(tickKey{}).(time.Time)
	return t, ok && !t.IsZero()
}

func withTick(ctx context.Context, tick time.Time) context.Context {
	if tick.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, tickKey{}, tick)
}
