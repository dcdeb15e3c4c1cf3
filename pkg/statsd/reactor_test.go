package statsd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"
	"golang.org/x/time/rate"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/internal/fixtures"
	"github.com/atlassian/statsdcore/pkg/cancel"
	"github.com/atlassian/statsdcore/pkg/fakesocket"
	"github.com/atlassian/statsdcore/pkg/healthcheck"
	"github.com/atlassian/statsdcore/pkg/lexer"
	"github.com/atlassian/statsdcore/pkg/ready"
	"github.com/atlassian/statsdcore/pkg/stats"
)

type reactorHarness struct {
	reactor *Reactor
	sink    *fixtures.CapturingSink
	control *Control
	source  *cancel.Source
	conn    *fakesocket.FakePacketConn
	wg      wait.Group
	result  chan error
}

// startReactor runs a reactor over a scripted socket. The reactor has signalled readiness when it returns.
func startReactor(t *testing.T, ctx context.Context, bufferSize int, reads ...fakesocket.Read) *reactorHarness {
	logger := fixtures.NewTestLogger(t)
	h := &reactorHarness{
		sink:    fixtures.NewCapturingSink(),
		control: NewControl(4),
		conn:    fakesocket.NewScriptedPacketConn(reads...),
		result:  make(chan error, 1),
	}
	var token *cancel.Token
	h.source, token = cancel.NewSource()
	dr := NewDatagramReader(logger, h.conn, bufferSize, 1, 100)
	h.reactor = NewReactor(logger, dr, h.control, token, h.sink, 0, rate.Inf)

	h.wg.StartWithContext(ctx, dr.Run)
	ctxRun, started := ready.WithSignal(ctx)
	h.wg.Start(func() {
		h.result <- h.reactor.Run(ctxRun)
	})
	select {
	case <-started:
	case <-ctx.Done():
		require.FailNow(t, "reactor did not start")
	}
	return h
}

func (h *reactorHarness) stop(t *testing.T) error {
	h.source.Trigger()
	var err error
	select {
	case err = <-h.result:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "reactor did not stop")
	}
	_ = h.conn.Close()
	h.wg.Wait()
	return err
}

func datagrams(msgs ...string) []fakesocket.Read {
	reads := make([]fakesocket.Read, 0, len(msgs))
	for _, m := range msgs {
		reads = append(reads, fakesocket.Read{Data: []byte(m)})
	}
	return reads
}

func TestReactorDeliversInOrder(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()

	h := startReactor(t, ctx, 1024, datagrams("a:1|c", "b:2|g\nc:3|s\n", "d:4|ms|@0.5", "e:delete|h")...)
	require.True(t, h.sink.WaitFor(ctx, 4))
	require.NoError(t, h.stop(t))

	assert.Equal(t, []statsdcore.Measurement{
		statsdcore.Counter{Name: "a", Value: 1, Rate: 1},
		statsdcore.Batch{
			statsdcore.GaugeAbs{Name: "b", Value: 2},
			statsdcore.Set{Name: "c", Value: 3},
		},
		statsdcore.Timer{Name: "d", Duration: 4 * time.Millisecond, Rate: 0.5},
		statsdcore.Delete{Type: statsdcore.HISTOGRAM, Name: "e"},
	}, h.sink.Accepted())
	assert.Empty(t, h.sink.Rejected())

	s := h.reactor.GetStats()
	assert.EqualValues(t, 4, s.PacketsReceived)
	assert.EqualValues(t, 5, s.MeasurementsReceived)
	assert.EqualValues(t, len("a:1|c")+len("b:2|g\nc:3|s\n")+len("d:4|ms|@0.5")+len("e:delete|h"), s.BytesReceived)
}

func TestReactorContinuesAfterBadDatagrams(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()

	h := startReactor(t, ctx, 1024, datagrams("a:\xff\xfe|c", "a:1|c\nb:1|x", "ok:1|c")...)
	require.True(t, h.sink.WaitFor(ctx, 3))
	require.NoError(t, h.stop(t))

	assert.Equal(t, []statsdcore.Measurement{statsdcore.Counter{Name: "ok", Value: 1, Rate: 1}}, h.sink.Accepted())
	rejected := h.sink.Rejected()
	require.Len(t, rejected, 2)
	var de *DecodeError
	require.True(t, errors.As(rejected[0], &de))
	assert.Equal(t, fakesocket.FakeAddr, de.Addr)
	assert.Equal(t, 6, de.Size)
	assert.True(t, errors.Is(rejected[1], lexer.ErrUnknownType))

	s := h.reactor.GetStats()
	assert.EqualValues(t, 3, s.PacketsReceived)
	assert.EqualValues(t, 1, s.DecodeErrors)
	assert.EqualValues(t, 1, s.BadPayloads)
	assert.EqualValues(t, 1, s.MeasurementsReceived)
}

func TestReactorDropsTruncatedDatagrams(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()

	h := startReactor(t, ctx, 8, datagrams("long.name:1|c", "a:1|c")...)
	require.True(t, h.sink.WaitFor(ctx, 1))
	require.NoError(t, h.stop(t))

	assert.Equal(t, []statsdcore.Measurement{statsdcore.Counter{Name: "a", Value: 1, Rate: 1}}, h.sink.Accepted())
	assert.Empty(t, h.sink.Rejected())
	assert.EqualValues(t, 1, h.reactor.GetStats().TruncatedDatagrams)
}

func TestReactorReturnsSocketError(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()

	boom := errors.New("boom")
	h := startReactor(t, ctx, 1024, fakesocket.Read{Data: []byte("a:1|c")}, fakesocket.Read{Err: boom})
	var err error
	select {
	case err = <-h.result:
	case <-ctx.Done():
		require.FailNow(t, "reactor did not stop")
	}
	_ = h.conn.Close()
	h.wg.Wait()

	var se *SocketError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, boom))
	assert.Len(t, h.sink.Accepted(), 1)
}

func TestReactorStopsOnTrigger(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()

	h := startReactor(t, ctx, 1024)
	status, _ := checkStatus(h.reactor.HealthChecks())
	assert.Equal(t, healthcheck.Healthy, status)

	assert.NoError(t, h.stop(t))
	status, _ = checkStatus(h.reactor.HealthChecks())
	assert.Equal(t, healthcheck.Unhealthy, status)
}

func TestReactorStopsOnContextDone(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := context.WithCancel(context.Background())

	h := startReactor(t, ctx, 1024)
	cancelFunc()
	select {
	case err := <-h.result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "reactor did not stop")
	}
	_ = h.conn.Close()
	h.wg.Wait()
}

func TestReactorConsumesControlMessages(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()

	h := startReactor(t, ctx, 1024)
	require.NoError(t, h.control.Send(ctx, "first"))
	require.NoError(t, h.control.Send(ctx, "second"))
	assert.Eventually(t, func() bool {
		return h.reactor.GetStats().ControlMessages == 2
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, h.stop(t))
	_, ok := h.control.TryRecv()
	assert.False(t, ok)
}

func TestReactorBoundsSocketDrain(t *testing.T) {
	t.Parallel()
	msgs := make([]string, maxDrain*2)
	for i := range msgs {
		msgs[i] = "a:1|c"
	}
	src := newQueuedSource(msgs...)
	source, token := cancel.NewSource()
	source.Trigger()
	sink := fixtures.NewCapturingSink()
	r := NewReactor(fixtures.NewTestLogger(t), src, NewControl(1), token, sink, 0, rate.Inf)

	require.NoError(t, r.Run(context.Background()))
	// socket and cancel were both ready, cancellation is seen after one bounded drain
	assert.Len(t, sink.Accepted(), maxDrain)
	assert.Len(t, src.queue, maxDrain)
}

func TestReactorRejectsUnknownSource(t *testing.T) {
	t.Parallel()
	_, token := cancel.NewSource()
	r := NewReactor(fixtures.NewTestLogger(t), newQueuedSource(), NewControl(1), token, fixtures.NewCapturingSink(), 0, rate.Inf)
	p := NewPoller()
	ch := make(chan struct{})
	close(ch)
	require.NoError(t, p.Register(SourceID(42), ch))

	err := r.loop(context.Background(), p)
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestReactorAcceptsSinkWithoutRejecter(t *testing.T) {
	t.Parallel()
	var accepted []statsdcore.Measurement
	sink := statsdcore.SinkFunc(func(ctx context.Context, m statsdcore.Measurement) {
		accepted = append(accepted, m)
	})
	source, token := cancel.NewSource()
	source.Trigger()
	src := newQueuedSource("bad:1|zz", "good:1|s")
	r := NewReactor(fixtures.NewTestLogger(t), src, NewControl(1), token, sink, 0, rate.Inf)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []statsdcore.Measurement{statsdcore.Set{Name: "good", Value: 1}}, accepted)
	assert.EqualValues(t, 1, r.GetStats().BadPayloads)
}

func TestReactorRecordsLastPacketTime(t *testing.T) {
	t.Parallel()
	now := time.Unix(1234, 0)
	ctx := clock.Context(context.Background(), clock.NewMock(now))
	_, token := cancel.NewSource()
	r := NewReactor(fixtures.NewTestLogger(t), newQueuedSource(), NewControl(1), token, fixtures.NewCapturingSink(), 0, rate.Inf)

	require.NoError(t, r.handleDatagram(ctx, &Datagram{Msg: []byte("a:1|c")}))
	assert.True(t, now.Equal(r.GetStats().LastPacket))
}

func TestReactorReportMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, token := cancel.NewSource()
	r := NewReactor(fixtures.NewTestLogger(t), newQueuedSource(), NewControl(1), token, fixtures.NewCapturingSink(), 0, rate.Inf)
	statser := newCapturingStatser()

	require.NoError(t, r.handleDatagram(ctx, &Datagram{Msg: []byte("a:1|c\nb:2|c")}))
	require.NoError(t, r.handleDatagram(ctx, &Datagram{Msg: []byte("bad:1|q")}))
	prev := r.reportMetrics(statser, statsdcore.ReceiverStats{})
	assert.EqualValues(t, 2, statser.count("receiver.packets_received"))
	assert.EqualValues(t, 2, statser.count("receiver.measurements_received"))
	v, ok := statser.gauge("receiver.bad_payloads")
	require.True(t, ok)
	assert.EqualValues(t, 1, v)

	// counts are reported as deltas
	require.NoError(t, r.handleDatagram(ctx, &Datagram{Msg: []byte("c:1|c")}))
	r.reportMetrics(statser, prev)
	assert.EqualValues(t, 3, statser.count("receiver.packets_received"))
	assert.EqualValues(t, 3, statser.count("receiver.measurements_received"))
}

func TestReactorRunMetrics(t *testing.T) {
	t.Parallel()
	ctx, cancelFunc := testContext(t)
	defer cancelFunc()
	ctx, clck := fixtures.NewMockClock(ctx)
	statser := newCapturingStatser()
	ctx = stats.NewContext(ctx, statser)

	_, token := cancel.NewSource()
	r := NewReactor(fixtures.NewTestLogger(t), newQueuedSource(), NewControl(1), token, fixtures.NewCapturingSink(), 0, rate.Inf)
	require.NoError(t, r.handleDatagram(ctx, &Datagram{Msg: []byte("a:1|c")}))

	var wg wait.Group
	wg.StartWithContext(ctx, func(ctx context.Context) {
		r.RunMetrics(ctx, time.Second)
	})
	require.True(t, fixtures.NextStep(ctx, clck))
	assert.Eventually(t, func() bool {
		return statser.count("receiver.packets_received") == 1
	}, 5*time.Second, time.Millisecond)
	cancelFunc()
	wg.Wait()
}

func checkStatus(checks []healthcheck.HealthcheckFunc) (healthcheck.HealthyStatus, []string) {
	_, failed := healthcheck.Run(checks)
	if len(failed) > 0 {
		return healthcheck.Unhealthy, failed
	}
	return healthcheck.Healthy, nil
}
