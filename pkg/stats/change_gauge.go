package stats

import (
	"sync/atomic"
)

// repeatCount is how many times to send the gauge once it changes.
const repeatCount = 22

// ChangeGauge sends a gauge for a rare event, repeatedly after each change so that a
// lossy statser still sees it. It suits bad payloads and decode errors, not values which
// change on every packet.
//
// Inc and Load may be called concurrently. SendIfChanged must only be called from one goroutine.
type ChangeGauge struct {
	Cur uint64 // atomic

	prev    uint64
	pending uint64 // number of times to re-send
}

// Inc adds one to the current value.
func (cg *ChangeGauge) Inc() {
	atomic.AddUint64(&cg.Cur, 1)
}

// Load returns the current value.
func (cg *ChangeGauge) Load() uint64 {
	return atomic.LoadUint64(&cg.Cur)
}

// SendIfChanged sends the current value as metricName if it changed within the last repeatCount calls.
func (cg *ChangeGauge) SendIfChanged(statser Statser, metricName string) {
	v := cg.Load()
	if v != cg.prev {
		cg.prev = v
		cg.pending = repeatCount
	}
	if cg.pending == 0 {
		return
	}
	cg.pending--
	statser.Gauge(metricName, float64(v))
}
