package sinks

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/pkg/sinks/console"
	"github.com/atlassian/statsdcore/pkg/sinks/null"
	"github.com/atlassian/statsdcore/pkg/sinks/repeater"
)

// Factory creates a sink from its configuration section.
type Factory func(v *viper.Viper, logger logrus.FieldLogger) (statsdcore.Sink, error)

// All known sinks.
var sinks = map[string]Factory{
	console.SinkName:  console.NewClientFromViper,
	null.SinkName:     null.NewClientFromViper,
	repeater.SinkName: repeater.NewClientFromViper,
}

// GetSink creates an instance of the named sink, or nil if
// the name is not known. The error return is only used if the named sink
// was known but failed to initialize.
func GetSink(name string, v *viper.Viper, logger logrus.FieldLogger) (statsdcore.Sink, error) {
	f, found := sinks[name]
	if !found {
		return nil, nil
	}
	return f(v, logger)
}

// InitSink creates an instance of the named sink.
func InitSink(name string, v *viper.Viper, logger logrus.FieldLogger) (statsdcore.Sink, error) {
	if name == "" {
		return nil, fmt.Errorf("empty sink name")
	}

	sink, err := GetSink(name, v, logger.WithField("sink", name))
	if err != nil {
		return nil, fmt.Errorf("could not init sink %q: %v", name, err)
	}
	if sink == nil {
		return nil, fmt.Errorf("unknown sink %q", name)
	}
	logger.Infof("Initialised sink %q", name)

	return sink, nil
}
