package statsd

import (
	"errors"
	"fmt"
	"net"
)

// ErrUnknownSource is returned by Reactor.Run when the poller reports a source the reactor does not own.
var ErrUnknownSource = errors.New("unknown event source")

// DecodeError is a datagram which is not valid UTF-8. The datagram is dropped.
type DecodeError struct {
	Addr net.Addr
	Size int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid UTF-8 in %d byte datagram from %s", e.Size, addrString(e.Addr))
}

// SocketError is a failure to receive from the socket. It stops the reactor.
type SocketError struct {
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("error reading from socket: %v", e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// AddressError is a metrics address which could not be resolved.
type AddressError struct {
	Addr string
	Err  error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid metrics address %q: %v", e.Addr, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// BindError is a failure to listen on the metrics address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}
