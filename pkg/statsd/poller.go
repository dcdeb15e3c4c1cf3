package statsd

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/tilinna/clock"
)

// SourceID identifies an event source registered with a Poller.
type SourceID int

const (
	// SourceSocket is ready when received datagrams are queued.
	SourceSocket SourceID = iota + 1
	// SourceControl is ready when control messages are queued.
	SourceControl
	// SourceCancel is ready once the cancellation token is triggered.
	SourceCancel
)

func (id SourceID) String() string {
	switch id {
	case SourceSocket:
		return "socket"
	case SourceControl:
		return "control"
	case SourceCancel:
		return "cancel"
	}
	return fmt.Sprintf("source(%d)", int(id))
}

// Poller waits for readiness of a set of sources. A source signals readiness by sending on,
// or closing, its channel. Poller is not safe for concurrent use.
type Poller struct {
	ids   []SourceID
	chans []<-chan struct{}
	cases []reflect.SelectCase
}

func NewPoller() *Poller {
	return &Poller{}
}

// Register adds a source. Each id may be registered once.
func (p *Poller) Register(id SourceID, ready <-chan struct{}) error {
	for _, existing := range p.ids {
		if existing == id {
			return fmt.Errorf("source %v already registered", id)
		}
	}
	if ready == nil {
		return fmt.Errorf("source %v has a nil channel", id)
	}
	p.ids = append(p.ids, id)
	p.chans = append(p.chans, ready)
	return nil
}

// Poll blocks until at least one source is ready, the timeout elapses or ctx is done.
// Ready sources are returned in registration order and their readiness is consumed.
// A timeout returns no sources and no error; a timeout of zero waits indefinitely.
func (p *Poller) Poll(ctx context.Context, timeout time.Duration) ([]SourceID, error) {
	const (
		doneIdx = iota
		timerIdx
		firstSourceIdx
	)
	var timerC <-chan time.Time
	if timeout > 0 {
		tmr := clock.FromContext(ctx).NewTimer(timeout)
		defer tmr.Stop()
		timerC = tmr.C
	}
	p.cases = p.cases[:0]
	p.cases = append(p.cases,
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timerC)},
	)
	for _, ch := range p.chans {
		p.cases = append(p.cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}

	chosen, _, _ := reflect.Select(p.cases)
	switch chosen {
	case doneIdx:
		return nil, ctx.Err()
	case timerIdx:
		return nil, nil
	}

	first := chosen - firstSourceIdx
	ready := make([]SourceID, 0, len(p.ids))
	for i, ch := range p.chans {
		if i == first {
			ready = append(ready, p.ids[i])
			continue
		}
		select {
		case <-ch:
			ready = append(ready, p.ids[i])
		default:
		}
	}
	return ready, nil
}
