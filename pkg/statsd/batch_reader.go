package statsd

import (
	"net"
	"runtime"

	"golang.org/x/net/ipv6"
)

// BatchReader receives up to len(ms) datagrams in one call, filling Buffers[0], N and Addr of each message.
type BatchReader interface {
	ReadBatch(ms []ipv6.Message) (int, error)
}

// NewBatchReader uses recvmmsg for UDP sockets on Linux and falls back to one ReadFrom per call.
func NewBatchReader(conn net.PacketConn) BatchReader {
	if runtime.GOOS == "linux" {
		if udpConn, ok := conn.(*net.UDPConn); ok {
			return &V6BatchReader{conn: ipv6.NewPacketConn(udpConn)}
		}
	}
	return &GenericBatchReader{conn: conn}
}

// V6BatchReader reads batches with ipv6.PacketConn, which handles IPv4 sockets as well.
type V6BatchReader struct {
	conn *ipv6.PacketConn
}

func (r *V6BatchReader) ReadBatch(ms []ipv6.Message) (int, error) {
	return r.conn.ReadBatch(ms, 0)
}

// GenericBatchReader reads a single datagram per batch.
type GenericBatchReader struct {
	conn net.PacketConn
}

func (r *GenericBatchReader) ReadBatch(ms []ipv6.Message) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	n, addr, err := r.conn.ReadFrom(ms[0].Buffers[0])
	if err != nil {
		return 0, err
	}
	ms[0].N = n
	ms[0].Addr = addr
	return 1, nil
}
