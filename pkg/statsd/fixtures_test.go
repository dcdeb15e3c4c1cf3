package statsd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// capturingStatser records the last gauge and the sum of counts per name.
type capturingStatser struct {
	mu     sync.Mutex
	gauges map[string]float64
	counts map[string]float64
}

func newCapturingStatser() *capturingStatser {
	return &capturingStatser{
		gauges: map[string]float64{},
		counts: map[string]float64{},
	}
}

func (cs *capturingStatser) Gauge(name string, value float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.gauges[name] = value
}

func (cs *capturingStatser) Count(name string, amount float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.counts[name] += amount
}

func (cs *capturingStatser) Increment(name string) {
	cs.Count(name, 1)
}

func (cs *capturingStatser) count(name string) float64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.counts[name]
}

func (cs *capturingStatser) gauge(name string) (float64, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	v, ok := cs.gauges[name]
	return v, ok
}

// queuedSource is a DatagramSource over a preloaded queue.
type queuedSource struct {
	queue chan *Datagram
	ready chan struct{}
}

func newQueuedSource(msgs ...string) *queuedSource {
	qs := &queuedSource{
		queue: make(chan *Datagram, len(msgs)),
		ready: make(chan struct{}, 1),
	}
	for _, m := range msgs {
		qs.queue <- &Datagram{Msg: []byte(m)}
	}
	if len(msgs) > 0 {
		qs.ready <- struct{}{}
	}
	return qs
}

func (qs *queuedSource) Ready() <-chan struct{} {
	return qs.ready
}

func (qs *queuedSource) TryRecv() (*Datagram, bool) {
	select {
	case dg := <-qs.queue:
		if len(qs.queue) > 0 {
			select {
			case qs.ready <- struct{}{}:
			default:
			}
		}
		return dg, true
	default:
		return nil, false
	}
}

// recvDatagram waits for the next datagram from src.
func recvDatagram(t *testing.T, ctx context.Context, src DatagramSource) *Datagram {
	for {
		if dg, ok := src.TryRecv(); ok {
			return dg
		}
		select {
		case <-ctx.Done():
			require.FailNow(t, "timed out waiting for datagram")
		case <-src.Ready():
		}
	}
}
