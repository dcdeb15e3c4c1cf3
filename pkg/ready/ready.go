// Package ready lets a component announce that it has finished starting up, without the
// component knowing who, if anyone, is waiting.
package ready

import (
	"context"
	"sync"
)

type signal struct {
	once sync.Once
	ch   chan struct{}
}

type contextKey struct{}

// WithSignal returns a copy of ctx carrying a readiness signal, and a channel which is closed
// the first time SignalReady is called with the context or one derived from it.
func WithSignal(ctx context.Context) (context.Context, <-chan struct{}) {
	s := &signal{ch: make(chan struct{})}
	return context.WithValue(ctx, contextKey{}, s), s.ch
}

// SignalReady closes the channel of the signal attached to ctx, if any. Calls after the first do nothing.
func SignalReady(ctx context.Context) {
	if s, ok := ctx.Value(contextKey{}).(*signal); ok {
		s.once.Do(func() {
			close(s.ch)
		})
	}
}
