package stats

import (
	"context"
	"time"

	"github.com/tilinna/clock"
)

// ChannelStatsWatcher reports metrics about channel usage to a Statser
type ChannelStatsWatcher struct {
	client   Statser
	prefix   string
	capacity int
	lenFunc  func() int
	interval time.Duration
}

// NewChannelStatsWatcher creates a new ChannelStatsWatcher. Gauges are named channel.<channelName>.*.
func NewChannelStatsWatcher(client Statser, channelName string, capacity int, lenFunc func() int, interval time.Duration) *ChannelStatsWatcher {
	return &ChannelStatsWatcher{
		client:   client,
		prefix:   "channel." + channelName + ".",
		capacity: capacity,
		lenFunc:  lenFunc,
		interval: interval,
	}
}

// Run emits the gauges every interval until the supplied context is done.
func (csw *ChannelStatsWatcher) Run(ctx context.Context) {
	ticker := clock.NewTicker(ctx, csw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			csw.emit()
		}
	}
}

func (csw *ChannelStatsWatcher) emit() {
	capacity := float64(csw.capacity)
	queued := float64(csw.lenFunc())
	percentUsed := 0.0
	if capacity > 0 {
		percentUsed = 100.0 * (queued / capacity)
	}

	csw.client.Gauge(csw.prefix+"capacity", capacity)
	csw.client.Gauge(csw.prefix+"queued", queued)
	csw.client.Gauge(csw.prefix+"pct_used", percentUsed)
}
