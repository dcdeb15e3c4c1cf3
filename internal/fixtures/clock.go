package fixtures

import (
	"context"
	"time"

	"github.com/tilinna/clock"
)

// MockEpoch is the time mock clocks start at.
var MockEpoch = time.Unix(1, 0)

// NewMockClock attaches a mock clock starting at MockEpoch to ctx. Components read it with
// clock.FromContext.
func NewMockClock(ctx context.Context) (context.Context, *clock.Mock) {
	clck := clock.NewMock(MockEpoch)
	return clock.Context(ctx, clck), clck
}

// NextStep advances clck to its next timer or ticker. Timers are usually created by another
// goroutine, so it polls until one exists. It returns false if ctx is done first.
func NextStep(ctx context.Context, clck *clock.Mock) bool {
	for ctx.Err() == nil {
		if _, d := clck.AddNext(); d != 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
