package main

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/atlassian/statsdcore"
)

type metricData struct {
	count           uint64 // atomic
	nameFormat      string
	nameCardinality uint
	valueLimit      uint
}

type metricGenerator struct {
	rnd         *rand.Rand
	gaugeDeltas bool

	counters metricData
	gauges   metricData
	sets     metricData
	timers   metricData
}

func (md *metricData) genName(r *rand.Rand) string {
	atomic.AddUint64(&md.count, ^uint64(0))
	return fmt.Sprintf(md.nameFormat, r.Intn(int(md.nameCardinality)))
}

// intn is rand.Intn which tolerates a limit of zero.
func intn(r *rand.Rand, limit uint) int64 {
	if limit == 0 {
		return 0
	}
	return int64(r.Intn(int(limit)))
}

func (mg *metricGenerator) nextCounter() statsdcore.Measurement {
	return statsdcore.Counter{
		Name:  mg.counters.genName(mg.rnd),
		Value: 1 + intn(mg.rnd, mg.counters.valueLimit),
		Rate:  1,
	}
}

func (mg *metricGenerator) nextGauge() statsdcore.Measurement {
	name := mg.gauges.genName(mg.rnd)
	value := intn(mg.rnd, mg.gauges.valueLimit)
	if mg.gaugeDeltas {
		if mg.rnd.Intn(2) == 0 {
			value = -value
		}
		return statsdcore.GaugeDelta{Name: name, Value: value}
	}
	return statsdcore.GaugeAbs{Name: name, Value: value}
}

func (mg *metricGenerator) nextSet() statsdcore.Measurement {
	return statsdcore.Set{
		Name:  mg.sets.genName(mg.rnd),
		Value: intn(mg.rnd, mg.sets.valueLimit),
	}
}

func (mg *metricGenerator) nextTimer() statsdcore.Measurement {
	return statsdcore.Timer{
		Name:     mg.timers.genName(mg.rnd),
		Duration: time.Duration(intn(mg.rnd, mg.timers.valueLimit)) * time.Millisecond,
		Rate:     1,
	}
}

func newMetricData(kind string, opts commandOptions, k kindOptions) metricData {
	return metricData{
		count:           k.Count / uint64(opts.Workers),
		nameFormat:      opts.MetricPrefix + kind + opts.MetricSuffix,
		nameCardinality: k.Cardinality,
		valueLimit:      k.ValueLimit,
	}
}

// newGenerator creates the generator of one worker, which sends its share of every count.
func newGenerator(opts commandOptions, rnd *rand.Rand) *metricGenerator {
	return &metricGenerator{
		rnd:         rnd,
		gaugeDeltas: opts.GaugeDeltas,
		counters:    newMetricData("counter", opts, opts.Counters),
		gauges:      newMetricData("gauge", opts, opts.Gauges),
		sets:        newMetricData("set", opts, opts.Sets),
		timers:      newMetricData("timer", opts, opts.Timers),
	}
}

// remaining returns the number of metrics of each kind still to be sent. Safe for concurrent use.
func (mg *metricGenerator) remaining() (counters, gauges, sets, timers uint64) {
	return atomic.LoadUint64(&mg.counters.count),
		atomic.LoadUint64(&mg.gauges.count),
		atomic.LoadUint64(&mg.sets.count),
		atomic.LoadUint64(&mg.timers.count)
}

func (mg *metricGenerator) next(sb *strings.Builder) bool {
	// We can safely read these non-atomically, because this goroutine is the only one that writes to them.
	total := mg.counters.count + mg.gauges.count + mg.sets.count + mg.timers.count
	if total == 0 {
		return false
	}

	var m statsdcore.Measurement
	n := uint64(mg.rnd.Int63n(int64(total)))
	if n < mg.counters.count {
		m = mg.nextCounter()
	} else if n < mg.counters.count+mg.gauges.count {
		m = mg.nextGauge()
	} else if n < mg.counters.count+mg.gauges.count+mg.sets.count {
		m = mg.nextSet()
	} else {
		m = mg.nextTimer()
	}
	sb.WriteString(m.String())
	sb.WriteByte('\n')
	return true
}
