package stats

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/atlassian/statsdcore"
)

// Statser is the interface for sending internal metrics.
type Statser interface {
	Gauge(name string, value float64)
	Count(name string, amount float64)
	Increment(name string)
}

// NewStatserFromName creates the statser of the given type. Names are prefixed with namespace
// where the statser supports it.
func NewStatserFromName(statserType, namespace string, logger logrus.FieldLogger) (Statser, error) {
	switch statserType {
	case statsdcore.StatserLogging:
		return NewLoggingStatser(namespace, logger), nil
	case statsdcore.StatserPrometheus:
		return NewPrometheusStatser(namespace), nil
	case statsdcore.StatserNull:
		return NewNullStatser(), nil
	}
	return nil, fmt.Errorf("unknown statser type %q", statserType)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying statser. Components started with the context
// report through it.
func NewContext(ctx context.Context, statser Statser) context.Context {
	return context.WithValue(ctx, contextKey{}, statser)
}

// FromContext returns the Statser attached by NewContext, or a NullStatser.
func FromContext(ctx context.Context) Statser {
	if statser, ok := ctx.Value(contextKey{}).(Statser); ok && statser != nil {
		return statser
	}
	return NewNullStatser()
}
