package fixtures

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
)

// tbWriter sends each log entry to tb.Log, so output only shows for failing or verbose tests.
type tbWriter struct {
	tb testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// NewTestLogger returns a Debug level logger writing through tb. Options are applied before the output is set.
func NewTestLogger(tb testing.TB, opts ...func(*logrus.Logger)) logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
	for _, opt := range opts {
		opt(l)
	}
	l.SetOutput(tbWriter{tb: tb})
	return l
}
