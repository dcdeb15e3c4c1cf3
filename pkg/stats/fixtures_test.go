package stats

import (
	"sync/atomic"
)

type countingStatser struct {
	gauges   uint64
	counters uint64
}

func (cs *countingStatser) Gauge(name string, value float64) {
	atomic.AddUint64(&cs.gauges, 1)
}

func (cs *countingStatser) Count(name string, amount float64) {
	atomic.AddUint64(&cs.counters, 1)
}

func (cs *countingStatser) Increment(name string) {
	atomic.AddUint64(&cs.counters, 1)
}
