package statsd

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv6"

	"github.com/atlassian/statsdcore/pkg/pool"
)

// Datagram is a received datagram, or the error that stopped reception.
// Done must be called once the datagram is no longer used.
type Datagram struct {
	Msg  []byte
	Addr net.Addr
	// Truncated is set when the datagram filled the whole receive buffer.
	Truncated bool
	Err       error

	buf  *[]byte
	pool *pool.Bytes
}

// Done returns the datagram buffer to its pool.
func (dg *Datagram) Done() {
	if dg.buf != nil {
		dg.pool.Put(dg.buf)
		dg.buf = nil
		dg.Msg = nil
	}
}

// DatagramSource is a queue of received datagrams with readiness notification.
type DatagramSource interface {
	Ready() <-chan struct{}
	TryRecv() (*Datagram, bool)
}

// DatagramReader is the only reader of the socket. It blocks in receive calls and queues
// datagrams for the reactor.
type DatagramReader struct {
	logger    logrus.FieldLogger
	reader    BatchReader
	pool      *pool.Bytes
	batchSize int
	queue     chan *Datagram
	ready     chan struct{}
}

// NewDatagramReader creates a reader of conn. Datagrams are read into buffers of bufferSize bytes,
// batchSize at a time, and at most queueSize of them wait for the reactor.
func NewDatagramReader(logger logrus.FieldLogger, conn net.PacketConn, bufferSize, batchSize, queueSize int) *DatagramReader {
	return newDatagramReader(logger, NewBatchReader(conn), bufferSize, batchSize, queueSize)
}

func newDatagramReader(logger logrus.FieldLogger, br BatchReader, bufferSize, batchSize, queueSize int) *DatagramReader {
	if batchSize < 1 {
		batchSize = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &DatagramReader{
		logger:    logger,
		reader:    br,
		pool:      pool.NewBytes(bufferSize),
		batchSize: batchSize,
		queue:     make(chan *Datagram, queueSize),
		ready:     make(chan struct{}, 1),
	}
}

// Ready is signalled after a datagram is queued.
func (dr *DatagramReader) Ready() <-chan struct{} {
	return dr.ready
}

// QueueLen returns the number of datagrams waiting for the reactor.
func (dr *DatagramReader) QueueLen() int {
	return len(dr.queue)
}

// QueueCap returns the maximum number of datagrams waiting for the reactor.
func (dr *DatagramReader) QueueCap() int {
	return cap(dr.queue)
}

// TryRecv returns the next queued datagram without blocking. Readiness is re-armed while
// datagrams remain.
func (dr *DatagramReader) TryRecv() (*Datagram, bool) {
	select {
	case dg := <-dr.queue:
		if len(dr.queue) > 0 {
			dr.notify()
		}
		return dg, true
	default:
		return nil, false
	}
}

// Run reads from the socket until it fails or ctx is done. A failure while ctx is live is
// queued as a Datagram with Err set. Closing the socket unblocks Run.
func (dr *DatagramReader) Run(ctx context.Context) {
	msgs := make([]ipv6.Message, dr.batchSize)
	bufs := make([]*[]byte, dr.batchSize)
	for i := range msgs {
		msgs[i].Buffers = make([][]byte, 1)
	}
	defer func() {
		for _, b := range bufs {
			if b != nil {
				dr.pool.Put(b)
			}
		}
	}()
	for {
		for i := range msgs {
			if bufs[i] == nil {
				bufs[i] = dr.pool.Get()
			}
			msgs[i].Buffers[0] = *bufs[i]
			msgs[i].N = 0
			msgs[i].Addr = nil
		}
		// This will error out when the socket is closed.
		n, err := dr.reader.ReadBatch(msgs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			dr.logger.WithError(err).Error("Error reading from socket")
			dr.push(ctx, &Datagram{Err: err})
			return
		}
		for i := 0; i < n; i++ {
			buf := bufs[i]
			bufs[i] = nil
			nbytes := msgs[i].N
			dg := &Datagram{
				Msg:       (*buf)[:nbytes],
				Addr:      msgs[i].Addr,
				Truncated: nbytes >= len(*buf),
				buf:       buf,
				pool:      dr.pool,
			}
			if !dr.push(ctx, dg) {
				return
			}
		}
	}
}

func (dr *DatagramReader) push(ctx context.Context, dg *Datagram) bool {
	select {
	case <-ctx.Done():
		dg.Done()
		return false
	case dr.queue <- dg:
	}
	dr.notify()
	return true
}

func (dr *DatagramReader) notify() {
	select {
	case dr.ready <- struct{}{}:
	default:
	}
}
