package stats

import (
	"github.com/sirupsen/logrus"
)

// LoggingStatser is a Statser which writes each metric as an Info log entry
// carrying the metric name, kind and value as fields.
type LoggingStatser struct {
	prefix string
	logger logrus.FieldLogger
}

// NewLoggingStatser creates a Statser logging to logger. Names are prefixed with namespace
// and a dot unless namespace is empty.
func NewLoggingStatser(namespace string, logger logrus.FieldLogger) Statser {
	prefix := ""
	if namespace != "" {
		prefix = namespace + "."
	}
	return &LoggingStatser{
		prefix: prefix,
		logger: logger,
	}
}

func (ls *LoggingStatser) Gauge(name string, value float64) {
	ls.emit("gauge", name, "value", value)
}

func (ls *LoggingStatser) Count(name string, amount float64) {
	ls.emit("count", name, "amount", amount)
}

func (ls *LoggingStatser) Increment(name string) {
	ls.emit("increment", name, "amount", float64(1))
}

func (ls *LoggingStatser) emit(kind, name, valueField string, value float64) {
	ls.logger.WithFields(logrus.Fields{
		"name":     ls.prefix + name,
		valueField: value,
	}).Info(kind)
}
