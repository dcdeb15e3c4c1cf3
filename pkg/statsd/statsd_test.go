package statsd

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/internal/fixtures"
	"github.com/atlassian/statsdcore/pkg/fakesocket"
	"github.com/atlassian/statsdcore/pkg/healthcheck"
)

// TestStatsdThroughput emulates statsd work using fake network socket and counting sink to
// measure throughput.
func TestStatsdThroughput(t *testing.T) {
	var memStatsStart, memStatsFinish runtime.MemStats
	runtime.ReadMemStats(&memStatsStart)
	var measurements uint64
	sink := statsdcore.SinkFunc(func(ctx context.Context, m statsdcore.Measurement) {
		atomic.AddUint64(&measurements, uint64(statsdcore.Len(m)))
	})
	s := NewServer(fixtures.NewTestLogger(t), sink)
	s.StatsInterval = 0

	ctx, cancelFunc := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFunc()
	start := time.Now()
	err := s.RunWithCustomSocket(ctx, fakesocket.Factory)
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("statsd run failed: %v", err)
	}
	duration := float64(time.Since(start)) / float64(time.Second)

	runtime.ReadMemStats(&memStatsFinish)
	totalAlloc := memStatsFinish.TotalAlloc - memStatsStart.TotalAlloc
	numMeasurements := atomic.LoadUint64(&measurements)
	require.NotZero(t, numMeasurements)
	mallocs := memStatsFinish.Mallocs - memStatsStart.Mallocs
	t.Logf(`Processed measurements: %d (%f per second)
	TotalAlloc: %d (%d per measurement)
	Mallocs: %d (%d per measurement)
	NumGC: %d`,
		numMeasurements, float64(numMeasurements)/duration,
		totalAlloc, totalAlloc/numMeasurements,
		mallocs, mallocs/numMeasurements,
		memStatsFinish.NumGC-memStatsStart.NumGC)
}

func TestServerDeliversUntilCancelled(t *testing.T) {
	t.Parallel()
	sink := fixtures.NewCapturingSink()
	s := NewServer(fixtures.NewTestLogger(t), sink)

	ctx, cancelFunc := testContext(t)
	defer cancelFunc()
	ctxRun, cancelRun := context.WithCancel(ctx)
	conn := fakesocket.NewDatagramConn("a:1|c", "b:bad|g", "c:3|s")
	result := make(chan error, 1)
	go func() {
		result <- s.RunWithCustomSocket(ctxRun, func() (net.PacketConn, error) {
			return conn, nil
		})
	}()

	require.True(t, sink.WaitFor(ctx, 3))
	cancelRun()
	select {
	case err := <-result:
		assert.Equal(t, context.Canceled, err)
	case <-ctx.Done():
		require.FailNow(t, "server did not stop")
	}
	assert.Equal(t, []statsdcore.Measurement{
		statsdcore.Counter{Name: "a", Value: 1, Rate: 1},
		statsdcore.Set{Name: "c", Value: 3},
	}, sink.Accepted())
	assert.Len(t, sink.Rejected(), 1)
	// socket is closed on shutdown
	assert.Equal(t, fakesocket.ErrAlreadyClosedConnection, conn.Close())
}

func TestServerReturnsSocketError(t *testing.T) {
	t.Parallel()
	s := NewServer(fixtures.NewTestLogger(t), fixtures.NewCapturingSink())
	boom := errors.New("boom")

	ctx, cancelFunc := testContext(t)
	defer cancelFunc()
	err := s.RunWithCustomSocket(ctx, func() (net.PacketConn, error) {
		return fakesocket.NewScriptedPacketConn(fakesocket.Read{Err: boom}), nil
	})
	var se *SocketError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.True(t, errors.Is(err, boom))
}

func TestServerSocketFactoryError(t *testing.T) {
	t.Parallel()
	s := NewServer(fixtures.NewTestLogger(t), fixtures.NewCapturingSink())
	boom := errors.New("boom")
	err := s.RunWithCustomSocket(context.Background(), func() (net.PacketConn, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
}

func TestServerRejectsInvalidBufferSize(t *testing.T) {
	t.Parallel()
	s := NewServer(fixtures.NewTestLogger(t), fixtures.NewCapturingSink())
	s.ReceiveBufferSize = 0
	err := s.RunWithCustomSocket(context.Background(), fakesocket.Factory)
	assert.Error(t, err)
}

func TestServerOverUDP(t *testing.T) {
	t.Parallel()
	sink := fixtures.NewCapturingSink()
	s := NewServer(fixtures.NewTestLogger(t), sink)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancelFunc := testContext(t)
	defer cancelFunc()
	ctxRun, cancelRun := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() {
		result <- s.RunWithCustomSocket(ctxRun, func() (net.PacketConn, error) {
			return pc, nil
		})
	}()

	c, err := net.Dial("udp", pc.LocalAddr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write([]byte("udp.counter:5|c|@0.5\nudp.gauge:-3|g"))
	require.NoError(t, err)

	require.True(t, sink.WaitFor(ctx, 1))
	cancelRun()
	assert.Equal(t, context.Canceled, <-result)
	assert.Equal(t, []statsdcore.Measurement{
		statsdcore.Batch{
			statsdcore.Counter{Name: "udp.counter", Value: 5, Rate: 0.5},
			statsdcore.GaugeDelta{Name: "udp.gauge", Value: -3},
		},
	}, sink.Accepted())
}

func TestServerRunAddressError(t *testing.T) {
	t.Parallel()
	s := NewServer(fixtures.NewTestLogger(t), fixtures.NewCapturingSink())
	s.MetricsAddr = "127.0.0.1" // no port

	err := s.Run(context.Background())
	var ae *AddressError
	require.True(t, errors.As(err, &ae), "%v", err)
	assert.Equal(t, "127.0.0.1", ae.Addr)
}

func TestServerRunBindError(t *testing.T) {
	t.Parallel()
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	s := NewServer(fixtures.NewTestLogger(t), fixtures.NewCapturingSink())
	s.MetricsAddr = taken.LocalAddr().String()

	err = s.Run(context.Background())
	var be *BindError
	require.True(t, errors.As(err, &be), "%v", err)
	assert.Equal(t, s.MetricsAddr, be.Addr)
}

type deepCheckedSink struct {
	statsdcore.SinkFunc
}

func (deepCheckedSink) DeepChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) { return "fine", healthcheck.Healthy },
	}
}

func TestDeepChecksFromSinks(t *testing.T) {
	t.Parallel()
	nop := statsdcore.SinkFunc(func(context.Context, statsdcore.Measurement) {})
	checked := deepCheckedSink{SinkFunc: nop}

	assert.Len(t, deepChecks(checked), 1)
	assert.Empty(t, deepChecks(nop))
	assert.Len(t, deepChecks(statsdcore.MultiSink{nop, checked, checked}), 2)
}
