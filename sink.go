package statsdcore

import (
	"context"
)

// Sink consumes decoded measurements. Accept is fire-and-forget, the sink owns
// aggregation, export cadence and backend fan-out.
type Sink interface {
	Accept(ctx context.Context, m Measurement)
}

// Rejecter is implemented by sinks that want to be told about payloads which
// failed to parse.
type Rejecter interface {
	Reject(ctx context.Context, err error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(context.Context, Measurement)

func (f SinkFunc) Accept(ctx context.Context, m Measurement) {
	f(ctx, m)
}

// MultiSink fans each measurement out to every sink in order.
type MultiSink []Sink

func (ms MultiSink) Accept(ctx context.Context, m Measurement) {
	for _, s := range ms {
		s.Accept(ctx, m)
	}
}

// Reject forwards err to every sink that implements Rejecter.
func (ms MultiSink) Reject(ctx context.Context, err error) {
	for _, s := range ms {
		if r, ok := s.(Rejecter); ok {
			r.Reject(ctx, err)
		}
	}
}

// Runnable is a long running function intended to be launched in a goroutine.
type Runnable func(context.Context)

// Runner exposes a Runnable through an interface
type Runner interface {
	Run(context.Context)
}

// MaybeAppendRunnable appends maybeRunner.Run when maybeRunner implements Runner.
func MaybeAppendRunnable(runnables []Runnable, maybeRunner interface{}) []Runnable {
	if r, ok := maybeRunner.(Runner); ok {
		runnables = append(runnables, r.Run)
	}
	return runnables
}
