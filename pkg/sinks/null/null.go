package null

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/statsdcore"
)

// SinkName is the name of this sink.
const SinkName = "null"

// client represents a discarding sink.
type client struct{}

// NewClientFromViper constructs a discarding sink, the configuration is ignored.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (statsdcore.Sink, error) {
	return NewClient(), nil
}

// NewClient constructs a client object.
func NewClient() statsdcore.Sink {
	return client{}
}

// Accept discards the measurement.
func (client) Accept(ctx context.Context, m statsdcore.Measurement) {}
