package repeater

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"

	"github.com/atlassian/statsdcore"
	"github.com/atlassian/statsdcore/internal/util"
	"github.com/atlassian/statsdcore/pkg/healthcheck"
	"github.com/atlassian/statsdcore/pkg/pool"
	"github.com/atlassian/statsdcore/pkg/stats"
)

const (
	// SinkName is the name of this sink.
	SinkName = "repeater"
	// DefaultAddress is the default address of the downstream statsd server.
	DefaultAddress = "127.0.0.1:8125"
	// DefaultMaxPacketSize keeps datagrams within a typical ethernet MTU.
	DefaultMaxPacketSize = 1432
	// DefaultFlushInterval is how often a partially filled datagram is sent.
	DefaultFlushInterval = 1 * time.Second
	// DefaultMaxQueuedPackets is the number of full datagrams waiting to be sent before new ones are dropped.
	DefaultMaxQueuedPackets = 1000
)

const (
	paramAddress          = "address"
	paramMaxPacketSize    = "max-packet-size"
	paramFlushInterval    = "flush-interval"
	paramMaxQueuedPackets = "max-queued-packets"
)

// Client re-emits measurements in their wire form to another statsd server over UDP,
// packing as many lines as fit into each datagram.
type Client struct {
	// Counter fields below must be read/written only using atomic instructions.
	packetsSent    uint64
	packetsDropped uint64
	writeErrors    uint64
	connected      int32

	logger        logrus.FieldLogger
	address       string
	maxPacketSize int
	flushInterval time.Duration
	retry         util.BackoffFactory
	dial          func(ctx context.Context, address string) (net.Conn, error)
	pool          *pool.BytesBuffer

	mu      sync.Mutex // protects current
	current *bytes.Buffer

	packets chan *bytes.Buffer
}

// NewClientFromViper constructs a Client from the repeater section of v.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (statsdcore.Sink, error) {
	c := util.GetSubViper(v, SinkName)
	c.SetDefault(paramAddress, DefaultAddress)
	c.SetDefault(paramMaxPacketSize, DefaultMaxPacketSize)
	c.SetDefault(paramFlushInterval, DefaultFlushInterval)
	c.SetDefault(paramMaxQueuedPackets, DefaultMaxQueuedPackets)

	retry, err := util.ReadRetryConfig(c)
	if err != nil {
		return nil, err
	}
	return NewClient(
		logger,
		c.GetString(paramAddress),
		c.GetInt(paramMaxPacketSize),
		c.GetInt(paramMaxQueuedPackets),
		c.GetDuration(paramFlushInterval),
		retry.Factory(),
	)
}

// NewClient constructs a Client. The connection is established by Run.
func NewClient(logger logrus.FieldLogger, address string, maxPacketSize, maxQueuedPackets int, flushInterval time.Duration, retry util.BackoffFactory) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("[%s] %s is required", SinkName, paramAddress)
	}
	if maxPacketSize <= 0 {
		return nil, fmt.Errorf("[%s] %s must be positive", SinkName, paramMaxPacketSize)
	}
	if maxQueuedPackets <= 0 {
		return nil, fmt.Errorf("[%s] %s must be positive", SinkName, paramMaxQueuedPackets)
	}
	if flushInterval <= 0 {
		return nil, fmt.Errorf("[%s] %s must be positive", SinkName, paramFlushInterval)
	}
	logger.WithFields(logrus.Fields{
		paramAddress:       address,
		paramMaxPacketSize: maxPacketSize,
		paramFlushInterval: flushInterval,
	}).Info("Created repeater sink")
	return &Client{
		logger:        logger,
		address:       address,
		maxPacketSize: maxPacketSize,
		flushInterval: flushInterval,
		retry:         retry,
		dial:          dialUDP,
		pool:          pool.NewBytesBuffer(maxPacketSize, 0),
		packets:       make(chan *bytes.Buffer, maxQueuedPackets),
	}, nil
}

func dialUDP(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "udp", address)
}

// Accept packs each measurement of m into the current datagram.
func (c *Client) Accept(ctx context.Context, m statsdcore.Measurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	statsdcore.Each(m, func(m statsdcore.Measurement) {
		c.appendLine(m.String())
	})
}

// appendLine must be called with mu held.
func (c *Client) appendLine(line string) {
	if len(line) > c.maxPacketSize {
		atomic.AddUint64(&c.packetsDropped, 1)
		c.logger.WithField("line", line).Warn("Dropping line larger than max packet size")
		return
	}
	if c.current != nil && c.current.Len()+1+len(line) > c.maxPacketSize {
		c.enqueueCurrent()
	}
	if c.current == nil {
		c.current = c.pool.Get()
	} else {
		c.current.WriteByte('\n')
	}
	c.current.WriteString(line)
}

// enqueueCurrent must be called with mu held.
func (c *Client) enqueueCurrent() {
	if c.current == nil {
		return
	}
	select {
	case c.packets <- c.current:
	default:
		atomic.AddUint64(&c.packetsDropped, 1)
		c.pool.Put(c.current)
	}
	c.current = nil
}

func (c *Client) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueCurrent()
}

// Run connects to the downstream server and sends datagrams until ctx is done.
func (c *Client) Run(ctx context.Context) {
	var conn net.Conn
	defer func() {
		atomic.StoreInt32(&c.connected, 0)
		if conn != nil {
			c.drain(conn)
			_ = conn.Close()
		}
	}()

	ticker := clock.NewTicker(ctx, c.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush()
		case buf := <-c.packets:
			if conn == nil {
				conn = c.connect(ctx)
				if conn == nil {
					atomic.AddUint64(&c.packetsDropped, 1)
					c.pool.Put(buf)
					continue
				}
			}
			if err := c.send(conn, buf); err != nil {
				_ = conn.Close()
				conn = nil
				atomic.StoreInt32(&c.connected, 0)
			}
		}
	}
}

func (c *Client) connect(ctx context.Context) net.Conn {
	var conn net.Conn
	err := util.Retry(ctx, c.retry(), func() error {
		var err error
		conn, err = c.dial(ctx, c.address)
		return err
	}, func(err error, next time.Duration) {
		c.logger.WithError(err).WithField("retry", next).Warn("Failed to connect, retrying")
	})
	if err != nil {
		c.logger.WithError(err).Error("Failed to connect, dropping datagram")
		return nil
	}
	atomic.StoreInt32(&c.connected, 1)
	c.logger.WithField(paramAddress, c.address).Info("Connected")
	return conn
}

func (c *Client) send(conn net.Conn, buf *bytes.Buffer) error {
	defer c.pool.Put(buf)
	_, err := conn.Write(buf.Bytes())
	if err != nil {
		atomic.AddUint64(&c.writeErrors, 1)
		c.logger.WithError(err).Warn("Error sending datagram")
		return err
	}
	atomic.AddUint64(&c.packetsSent, 1)
	return nil
}

// drain sends whatever is buffered on shutdown.
func (c *Client) drain(conn net.Conn) {
	c.flush()
	for {
		select {
		case buf := <-c.packets:
			if c.send(conn, buf) != nil {
				return
			}
		default:
			return
		}
	}
}

// DeepChecks reports whether the downstream connection is established.
func (c *Client) DeepChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) {
			if atomic.LoadInt32(&c.connected) == 0 {
				return fmt.Sprintf("repeater not connected to %s", c.address), healthcheck.Unhealthy
			}
			return fmt.Sprintf("repeater connected to %s", c.address), healthcheck.Healthy
		},
	}
}

// RunMetrics reports the client counters to the statser from ctx every interval.
func (c *Client) RunMetrics(ctx context.Context, interval time.Duration) {
	statser := stats.FromContext(ctx)
	ticker := clock.NewTicker(ctx, interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statser.Gauge("repeater.packets_sent", float64(atomic.LoadUint64(&c.packetsSent)))
			statser.Gauge("repeater.packets_dropped", float64(atomic.LoadUint64(&c.packetsDropped)))
			statser.Gauge("repeater.write_errors", float64(atomic.LoadUint64(&c.writeErrors)))
		}
	}
}
