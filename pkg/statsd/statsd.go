package statsd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/pkg/cancel"
	"github.com/atlassian/statsdcore/pkg/healthcheck"
	"github.com/atlassian/statsdcore/pkg/stats"
	"github.com/atlassian/statsdcore/pkg/web"
)

// Server encapsulates all of the parameters necessary for starting up
// the statsd server. These can either be set via command line or directly.
type Server struct {
	Sink                      statsdcore.Sink
	Runnables                 []statsdcore.Runnable
	Logger                    logrus.FieldLogger
	Statser                   stats.Statser
	MetricsHandler            http.Handler // served on /metrics if set
	BadLineRateLimitPerSecond rate.Limit
	MetricsAddr               string
	WebAddr                   string
	EnableProf                bool
	ReceiveBufferSize         int
	ReceiveBatchSize          int
	MaxQueueSize              int
	ControlQueueSize          int
	PollTimeout               time.Duration
	StatsInterval             time.Duration
}

// NewServer creates a Server with default settings writing to sink.
func NewServer(logger logrus.FieldLogger, sink statsdcore.Sink) *Server {
	return &Server{
		Sink:                      sink,
		Logger:                    logger,
		Statser:                   stats.NewNullStatser(),
		BadLineRateLimitPerSecond: rate.Limit(statsdcore.DefaultBadLinesPerMinute / 60.0),
		MetricsAddr:               statsdcore.DefaultMetricsAddr,
		ReceiveBufferSize:         statsdcore.DefaultReceiveBufferSize,
		ReceiveBatchSize:          statsdcore.DefaultReceiveBatchSize,
		MaxQueueSize:              statsdcore.DefaultMaxQueueSize,
		ControlQueueSize:          statsdcore.DefaultControlQueueSize,
		PollTimeout:               statsdcore.DefaultPollTimeout,
		StatsInterval:             statsdcore.DefaultStatsInterval,
	}
}

// Run runs the server until context signals done or the socket fails.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithCustomSocket(ctx, s.listen)
}

func (s *Server) listen() (net.PacketConn, error) {
	addr, err := net.ResolveUDPAddr("udp", s.MetricsAddr)
	if err != nil {
		return nil, &AddressError{Addr: s.MetricsAddr, Err: err}
	}
	c, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, &BindError{Addr: s.MetricsAddr, Err: err}
	}
	return c, nil
}

// SocketFactory is an indirection layer over net.ListenPacket() to allow for different implementations.
type SocketFactory func() (net.PacketConn, error)

// RunWithCustomSocket runs the server until context signals done or the socket fails.
// Listening socket is created using sf.
func (s *Server) RunWithCustomSocket(ctx context.Context, sf SocketFactory) error {
	if s.ReceiveBufferSize <= 0 {
		return fmt.Errorf("receive buffer size must be positive, got %d", s.ReceiveBufferSize)
	}
	c, err := sf()
	if err != nil {
		return err
	}
	logger := s.Logger.WithField("addr", c.LocalAddr().String())

	statser := s.Statser
	if statser == nil {
		statser = stats.NewNullStatser()
	}
	ctx = stats.NewContext(ctx, statser)
	ctxRun, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	source, token := cancel.NewSource()
	control := NewControl(s.ControlQueueSize)
	reader := NewDatagramReader(logger, c, s.ReceiveBufferSize, s.ReceiveBatchSize, s.MaxQueueSize)
	reactor := NewReactor(logger, reader, control, token, s.Sink, s.PollTimeout, s.BadLineRateLimitPerSecond)

	var wg wait.Group
	for _, r := range s.Runnables {
		wg.StartWithContext(ctxRun, r)
	}
	wg.StartWithContext(ctxRun, reader.Run)
	if s.StatsInterval > 0 {
		wg.StartWithContext(ctxRun, func(ctx context.Context) {
			reactor.RunMetrics(ctx, s.StatsInterval)
		})
		datagramWatcher := stats.NewChannelStatsWatcher(statser, "datagrams", reader.QueueCap(), reader.QueueLen, s.StatsInterval)
		controlWatcher := stats.NewChannelStatsWatcher(statser, "control", control.QueueCap(), control.QueueLen, s.StatsInterval)
		wg.StartWithContext(ctxRun, datagramWatcher.Run)
		wg.StartWithContext(ctxRun, controlWatcher.Run)
	}
	if s.WebAddr != "" {
		hs, err := web.NewHttpServer(logger, s.WebAddr, s.EnableProf, reactor, control, s.MetricsHandler, reactor.HealthChecks(), deepChecks(s.Sink))
		if err != nil {
			cancelRun()
			s.closeSocket(logger, c)
			wg.Wait()
			return err
		}
		wg.StartWithContext(ctxRun, hs.Run)
	}
	// context cancellation triggers the token, which wakes the reactor
	wg.Start(func() {
		<-ctxRun.Done()
		source.Trigger()
	})

	logger.Info("Receiving metrics")
	err = reactor.Run(ctxRun)
	if err != nil {
		logger.WithError(err).Error("Reactor stopped")
	}

	cancelRun()
	// This makes the reader error out and stop
	s.closeSocket(logger, c)
	wg.Wait()

	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) closeSocket(logger logrus.FieldLogger, c net.PacketConn) {
	if e := c.Close(); e != nil {
		logger.WithError(e).Warn("Error closing socket")
	}
}

func deepChecks(sink statsdcore.Sink) []healthcheck.HealthcheckFunc {
	var checks []healthcheck.HealthcheckFunc
	if ms, ok := sink.(statsdcore.MultiSink); ok {
		for _, s := range ms {
			_, checks = healthcheck.MaybeAppendHealthChecks(nil, checks, s)
		}
		return checks
	}
	_, checks = healthcheck.MaybeAppendHealthChecks(nil, checks, sink)
	return checks
}
