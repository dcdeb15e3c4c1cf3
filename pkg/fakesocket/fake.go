package fakesocket

import (
	"errors"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/atlassian/statsdcore"
)

// FakeMetric is a fake metric.
var FakeMetric = []byte("foo.bar.baz:2|c")

// FakeAddr is a fake net.Addr
var FakeAddr = &net.UDPAddr{
	IP:   net.IPv4(127, 0, 0, 1),
	Port: 8181,
}

var ErrClosedConnection = errors.New("Connection is closed")
var ErrAlreadyClosedConnection = errors.New("Connection is already closed")

// Read is a single scripted result of ReadFrom.
type Read struct {
	Data []byte
	Err  error
}

// FakePacketConn is a fake net.PacketConn which serves scripted reads in order.
// Once the script is exhausted ReadFrom blocks until the connection is closed.
// A FakePacketConn without a script serves FakeMetric forever.
type FakePacketConn struct {
	mu        sync.Mutex
	script    []Read
	scripted  bool
	closed    chan struct{}
	closeOnce sync.Once
}

// NewFakePacketConn returns a connection which serves FakeMetric on every read.
func NewFakePacketConn() *FakePacketConn {
	return &FakePacketConn{
		closed: make(chan struct{}),
	}
}

// NewScriptedPacketConn returns a connection which serves reads in order and then blocks.
func NewScriptedPacketConn(reads ...Read) *FakePacketConn {
	return &FakePacketConn{
		script:   reads,
		scripted: true,
		closed:   make(chan struct{}),
	}
}

// NewDatagramConn is NewScriptedPacketConn for a list of successful datagrams.
func NewDatagramConn(datagrams ...string) *FakePacketConn {
	reads := make([]Read, 0, len(datagrams))
	for _, d := range datagrams {
		reads = append(reads, Read{Data: []byte(d)})
	}
	return NewScriptedPacketConn(reads...)
}

func (fpc *FakePacketConn) isClosed() bool {
	select {
	case <-fpc.closed:
		return true
	default:
		return false
	}
}

func (fpc *FakePacketConn) next() (Read, bool) {
	fpc.mu.Lock()
	defer fpc.mu.Unlock()
	if !fpc.scripted {
		return Read{Data: FakeMetric}, true
	}
	if len(fpc.script) == 0 {
		return Read{}, false
	}
	r := fpc.script[0]
	fpc.script = fpc.script[1:]
	return r, true
}

// ReadFrom copies the next scripted datagram into b.
func (fpc *FakePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if fpc.isClosed() {
		return 0, nil, ErrClosedConnection
	}
	r, ok := fpc.next()
	if !ok {
		<-fpc.closed
		return 0, nil, ErrClosedConnection
	}
	if r.Err != nil {
		return 0, nil, r.Err
	}
	n := copy(b, r.Data)
	return n, FakeAddr, nil
}

// WriteTo dummy impl.
func (fpc *FakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	if fpc.isClosed() {
		return 0, ErrClosedConnection
	}
	return len(b), nil
}

// Close unblocks any pending ReadFrom.
func (fpc *FakePacketConn) Close() error {
	err := ErrAlreadyClosedConnection
	fpc.closeOnce.Do(func() {
		close(fpc.closed)
		err = nil
	})
	return err
}

// LocalAddr dummy impl.
func (fpc *FakePacketConn) LocalAddr() net.Addr { return FakeAddr }

// SetDeadline dummy impl.
func (fpc *FakePacketConn) SetDeadline(t time.Time) error { return nil }

// SetReadDeadline dummy impl.
func (fpc *FakePacketConn) SetReadDeadline(t time.Time) error { return nil }

// SetWriteDeadline dummy impl.
func (fpc *FakePacketConn) SetWriteDeadline(t time.Time) error { return nil }

// FakeRandomPacketConn is a fake net.PacketConn providing random fake metrics.
type FakeRandomPacketConn struct {
	FakePacketConn
}

// ReadFrom generates a random payload and writes it into b.
func (frpc *FakeRandomPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if frpc.isClosed() {
		return 0, nil, ErrClosedConnection
	}
	n := copy(b, RandomPayload(rand.Int63n, 10))
	return n, FakeAddr, nil
}

// RandomMeasurement builds a random measurement using intn, which must behave like rand.Int63n.
func RandomMeasurement(intn func(int64) int64) statsdcore.Measurement {
	num := intn(10000) // Randomize metric name
	switch intn(5) {
	case 0:
		return statsdcore.Counter{Name: name("counter", num), Value: intn(100), Rate: 1}
	case 1:
		return statsdcore.GaugeAbs{Name: name("gauge", num), Value: intn(100)}
	case 2:
		return statsdcore.GaugeDelta{Name: name("gauge", num), Value: intn(100) - 50}
	case 3:
		return statsdcore.Timer{Name: name("timer", num), Duration: time.Duration(intn(1000)) * time.Millisecond, Rate: 1}
	case 4:
		return statsdcore.Set{Name: name("set", num), Value: intn(9) + 1}
	default:
		panic(errors.New("unreachable"))
	}
}

// RandomPayload builds a newline separated payload of up to maxLines random measurements.
func RandomPayload(intn func(int64) int64, maxLines int) []byte {
	lines := int(intn(int64(maxLines))) + 1
	b := make(statsdcore.Batch, 0, lines)
	for i := 0; i < lines; i++ {
		b = append(b, RandomMeasurement(intn))
	}
	if len(b) == 1 {
		return []byte(b[0].String())
	}
	return []byte(b.String())
}

func name(kind string, num int64) string {
	return "statsd.tester." + kind + "_" + strconv.FormatInt(num, 10)
}

// Factory is a replacement for net.ListenPacket() that produces instances of FakeRandomPacketConn.
func Factory() (net.PacketConn, error) {
	frpc := &FakeRandomPacketConn{
		FakePacketConn: FakePacketConn{
			closed: make(chan struct{}),
		},
	}
	return frpc, nil
}
