package statsdcore

import (
	"strconv"
	"strings"
	"time"
)

// MetricKind is an enumeration of all the metric types a line can carry.
type MetricKind byte

const (
	_ = iota
	// COUNTER is statsd counter type
	COUNTER MetricKind = iota
	// TIMER is statsd timer type
	TIMER
	// GAUGE is statsd gauge type
	GAUGE
	// SET is statsd set type
	SET
	// HISTOGRAM is statsd histogram type. Histogram values are decoded as timers.
	HISTOGRAM
)

// String returns the wire type tag of the kind.
func (k MetricKind) String() string {
	switch k {
	case COUNTER:
		return "c"
	case TIMER:
		return "ms"
	case GAUGE:
		return "g"
	case SET:
		return "s"
	case HISTOGRAM:
		return "h"
	}
	return "unknown"
}

// ParseKind converts a wire type tag into a MetricKind.
func ParseKind(tag string) (MetricKind, bool) {
	switch tag {
	case "c":
		return COUNTER, true
	case "ms":
		return TIMER, true
	case "g":
		return GAUGE, true
	case "s":
		return SET, true
	case "h":
		return HISTOGRAM, true
	}
	return 0, false
}

// Measurement is one decoded metric sample. The set of implementations is closed:
// Counter, Timer, GaugeAbs, GaugeDelta, Set, Delete and Batch.
//
// String returns the canonical wire form of the measurement.
type Measurement interface {
	Kind() MetricKind
	String() string
	isMeasurement()
}

// Counter increments a counter by Value, sampled at Rate.
type Counter struct {
	Name  string
	Value int64
	Rate  float64
}

// Timer records a duration. The wire value is in milliseconds.
type Timer struct {
	Name     string
	Duration time.Duration
	Rate     float64
}

// GaugeAbs sets a gauge to an absolute value.
type GaugeAbs struct {
	Name  string
	Value int64
}

// GaugeDelta adjusts a gauge by a signed delta.
type GaugeDelta struct {
	Name  string
	Value int64
}

// Set records a value in a cardinality set.
type Set struct {
	Name  string
	Value int64
}

// Delete requests removal of the named metric of the given kind.
type Delete struct {
	Type MetricKind
	Name string
}

// Batch is an ordered sequence of measurements decoded from a single payload.
// A payload with exactly one line is never wrapped in a Batch.
type Batch []Measurement

func (Counter) Kind() MetricKind    { return COUNTER }
func (Timer) Kind() MetricKind      { return TIMER }
func (GaugeAbs) Kind() MetricKind   { return GAUGE }
func (GaugeDelta) Kind() MetricKind { return GAUGE }
func (Set) Kind() MetricKind        { return SET }
func (d Delete) Kind() MetricKind   { return d.Type }

// Kind of a Batch is zero, a batch is not a metric of its own.
func (Batch) Kind() MetricKind { return 0 }

func (Counter) isMeasurement()    {}
func (Timer) isMeasurement()      {}
func (GaugeAbs) isMeasurement()   {}
func (GaugeDelta) isMeasurement() {}
func (Set) isMeasurement()        {}
func (Delete) isMeasurement()     {}
func (Batch) isMeasurement()      {}

func (c Counter) String() string {
	return line(c.Name, strconv.FormatInt(c.Value, 10), COUNTER, c.Rate)
}

func (t Timer) String() string {
	return line(t.Name, strconv.FormatInt(t.Duration.Milliseconds(), 10), TIMER, t.Rate)
}

func (g GaugeAbs) String() string {
	return line(g.Name, strconv.FormatInt(g.Value, 10), GAUGE, 1)
}

func (g GaugeDelta) String() string {
	v := strconv.FormatInt(g.Value, 10)
	if g.Value >= 0 {
		v = "+" + v
	}
	return line(g.Name, v, GAUGE, 1)
}

func (s Set) String() string {
	return line(s.Name, strconv.FormatInt(s.Value, 10), SET, 1)
}

func (d Delete) String() string {
	return line(d.Name, "delete", d.Type, 1)
}

func (b Batch) String() string {
	var sb strings.Builder
	for i, m := range b {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.String())
	}
	return sb.String()
}

// Len returns the number of measurements the value represents once flattened.
func Len(m Measurement) int {
	if b, ok := m.(Batch); ok {
		return len(b)
	}
	if m == nil {
		return 0
	}
	return 1
}

// Each calls f for every measurement in m, unwrapping a Batch.
func Each(m Measurement, f func(Measurement)) {
	switch v := m.(type) {
	case nil:
	case Batch:
		for _, mm := range v {
			f(mm)
		}
	default:
		f(v)
	}
}

func line(name, value string, kind MetricKind, rate float64) string {
	var sb strings.Builder
	sb.Grow(len(name) + len(value) + 12)
	sb.WriteString(name)
	sb.WriteByte(':')
	sb.WriteString(value)
	sb.WriteByte('|')
	sb.WriteString(kind.String())
	if rate != 1 && rate != 0 {
		sb.WriteString("|@")
		sb.WriteString(strconv.FormatFloat(rate, 'g', -1, 64))
	}
	return sb.String()
}
