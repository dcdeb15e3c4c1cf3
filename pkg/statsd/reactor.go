package statsd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"
	"golang.org/x/time/rate"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/pkg/cancel"
	"github.com/atlassian/statsdcore/pkg/healthcheck"
	"github.com/atlassian/statsdcore/pkg/lexer"
	"github.com/atlassian/statsdcore/pkg/ready"
	"github.com/atlassian/statsdcore/pkg/stats"
)

// maxDrain bounds the datagrams handled per socket readiness event so that the
// other sources are polled in between.
const maxDrain = 64

// Reactor is the single consumer of the datagram queue, the control channel and the
// cancellation token. It decodes datagrams and hands the measurements to the sink.
type Reactor struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	lastPacket           int64 // When last packet was received. Unix timestamp in nsec.
	packetsReceived      uint64
	bytesReceived        uint64
	measurementsReceived uint64
	badPayloads          stats.ChangeGauge
	decodeErrors         stats.ChangeGauge
	truncated            stats.ChangeGauge
	controlMessages      uint64
	running              int32

	logger         logrus.FieldLogger
	source         DatagramSource
	control        *Control
	token          *cancel.Token
	sink           statsdcore.Sink
	rejecter       statsdcore.Rejecter // nil if sink does not reject
	pollTimeout    time.Duration
	badLineLimiter *rate.Limiter
	lexer          lexer.Lexer
}

// NewReactor creates a Reactor. badLinesPerSecond limits how often bad payloads are logged.
func NewReactor(logger logrus.FieldLogger, source DatagramSource, control *Control, token *cancel.Token, sink statsdcore.Sink, pollTimeout time.Duration, badLinesPerSecond rate.Limit) *Reactor {
	r := &Reactor{
		logger:         logger,
		source:         source,
		control:        control,
		token:          token,
		sink:           sink,
		pollTimeout:    pollTimeout,
		badLineLimiter: rate.NewLimiter(badLinesPerSecond, 1),
	}
	if rj, ok := sink.(statsdcore.Rejecter); ok {
		r.rejecter = rj
	}
	return r
}

// GetStats returns current Reactor stats. Safe for concurrent use.
func (r *Reactor) GetStats() statsdcore.ReceiverStats {
	return statsdcore.ReceiverStats{
		LastPacket:           time.Unix(0, atomic.LoadInt64(&r.lastPacket)),
		PacketsReceived:      atomic.LoadUint64(&r.packetsReceived),
		BytesReceived:        atomic.LoadUint64(&r.bytesReceived),
		MeasurementsReceived: atomic.LoadUint64(&r.measurementsReceived),
		BadPayloads:          r.badPayloads.Load(),
		DecodeErrors:         r.decodeErrors.Load(),
		TruncatedDatagrams:   r.truncated.Load(),
		ControlMessages:      atomic.LoadUint64(&r.controlMessages),
	}
}

// Run polls the sources and handles them until the token is triggered or ctx is done,
// returning nil. A socket error stops the loop and is returned as a *SocketError.
func (r *Reactor) Run(ctx context.Context) error {
	poller := NewPoller()
	for _, s := range []struct {
		id    SourceID
		ready <-chan struct{}
	}{
		{SourceSocket, r.source.Ready()},
		{SourceControl, r.control.Ready()},
		{SourceCancel, r.token.Done()},
	} {
		if err := poller.Register(s.id, s.ready); err != nil {
			return err
		}
	}
	atomic.StoreInt32(&r.running, 1)
	defer atomic.StoreInt32(&r.running, 0)
	ready.SignalReady(ctx)
	return r.loop(ctx, poller)
}

// HealthChecks reports whether the reactor loop is running.
func (r *Reactor) HealthChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) {
			if atomic.LoadInt32(&r.running) == 0 {
				return "reactor not running", healthcheck.Unhealthy
			}
			return "reactor running", healthcheck.Healthy
		},
	}
}

func (r *Reactor) loop(ctx context.Context, poller *Poller) error {
	for {
		ready, err := poller.Poll(ctx, r.pollTimeout)
		if err != nil {
			r.logger.WithError(err).Debug("Reactor context done")
			return nil
		}
		if len(ready) == 0 && r.token.IsTriggered() {
			return nil
		}
		for _, id := range ready {
			switch id {
			case SourceSocket:
				if err := r.handleSocket(ctx); err != nil {
					return err
				}
			case SourceControl:
				r.handleControl()
			case SourceCancel:
				r.logger.Info("Cancellation requested, stopping reactor")
				return nil
			default:
				return fmt.Errorf("%w: %v", ErrUnknownSource, id)
			}
		}
	}
}

func (r *Reactor) handleSocket(ctx context.Context) error {
	for i := 0; i < maxDrain; i++ {
		dg, ok := r.source.TryRecv()
		if !ok {
			return nil
		}
		err := r.handleDatagram(ctx, dg)
		dg.Done()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Reactor) handleDatagram(ctx context.Context, dg *Datagram) error {
	if dg.Err != nil {
		return &SocketError{Err: dg.Err}
	}
	// TODO consider updating counter for every N-th iteration to reduce contention
	atomic.AddUint64(&r.packetsReceived, 1)
	atomic.AddUint64(&r.bytesReceived, uint64(len(dg.Msg)))
	atomic.StoreInt64(&r.lastPacket, clock.FromContext(ctx).Now().UnixNano())

	if dg.Truncated {
		r.truncated.Inc()
		if r.badLineLimiter.Allow() {
			r.logger.WithField("addr", addrString(dg.Addr)).Warn("Dropping datagram which filled the receive buffer")
		}
		return nil
	}
	if !utf8.Valid(dg.Msg) {
		err := &DecodeError{Addr: dg.Addr, Size: len(dg.Msg)}
		r.decodeErrors.Inc()
		if r.badLineLimiter.Allow() {
			r.logger.WithError(err).Warn("Dropping datagram")
		}
		r.reject(ctx, err)
		return nil
	}
	// the string conversion copies, measurements do not reference the pooled buffer
	m, err := r.lexer.Parse(string(dg.Msg))
	if err != nil {
		r.badPayloads.Inc()
		if r.badLineLimiter.Allow() {
			r.logger.WithError(err).WithField("addr", addrString(dg.Addr)).Info("Error parsing datagram")
		}
		r.reject(ctx, err)
		return nil
	}
	atomic.AddUint64(&r.measurementsReceived, uint64(statsdcore.Len(m)))
	r.sink.Accept(ctx, m)
	return nil
}

func (r *Reactor) reject(ctx context.Context, err error) {
	if r.rejecter != nil {
		r.rejecter.Reject(ctx, err)
	}
}

func (r *Reactor) handleControl() {
	msg, ok := r.control.TryRecv()
	if !ok {
		return
	}
	atomic.AddUint64(&r.controlMessages, 1)
	r.logger.WithField("message", msg).Info("Control message received")
}

// RunMetrics reports the counters to the statser from ctx every interval until ctx is done.
func (r *Reactor) RunMetrics(ctx context.Context, interval time.Duration) {
	statser := stats.FromContext(ctx)
	ticker := clock.NewTicker(ctx, interval)
	defer ticker.Stop()

	var prev statsdcore.ReceiverStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev = r.reportMetrics(statser, prev)
		}
	}
}

func (r *Reactor) reportMetrics(statser stats.Statser, prev statsdcore.ReceiverStats) statsdcore.ReceiverStats {
	cur := r.GetStats()
	statser.Count("receiver.packets_received", float64(cur.PacketsReceived-prev.PacketsReceived))
	statser.Count("receiver.bytes_received", float64(cur.BytesReceived-prev.BytesReceived))
	statser.Count("receiver.measurements_received", float64(cur.MeasurementsReceived-prev.MeasurementsReceived))
	statser.Count("reactor.control_messages", float64(cur.ControlMessages-prev.ControlMessages))
	r.badPayloads.SendIfChanged(statser, "receiver.bad_payloads")
	r.decodeErrors.SendIfChanged(statser, "receiver.decode_errors")
	r.truncated.SendIfChanged(statser, "receiver.truncated_datagrams")
	return cur
}
