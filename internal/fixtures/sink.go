package fixtures

import (
	"context"
	"sync"

	"github.com/atlassian/statsdcore"
)

// CapturingSink is a statsdcore.Sink and statsdcore.Rejecter which records everything it is handed.
type CapturingSink struct {
	mu       sync.Mutex
	accepted []statsdcore.Measurement
	rejected []error
	notify   chan struct{}
}

func NewCapturingSink() *CapturingSink {
	return &CapturingSink{
		notify: make(chan struct{}, 1),
	}
}

func (cs *CapturingSink) Accept(ctx context.Context, m statsdcore.Measurement) {
	cs.mu.Lock()
	cs.accepted = append(cs.accepted, m)
	cs.mu.Unlock()
	cs.signal()
}

func (cs *CapturingSink) Reject(ctx context.Context, err error) {
	cs.mu.Lock()
	cs.rejected = append(cs.rejected, err)
	cs.mu.Unlock()
	cs.signal()
}

func (cs *CapturingSink) signal() {
	select {
	case cs.notify <- struct{}{}:
	default:
	}
}

// Accepted returns a copy of the measurements accepted so far, in order.
func (cs *CapturingSink) Accepted() []statsdcore.Measurement {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	result := make([]statsdcore.Measurement, len(cs.accepted))
	copy(result, cs.accepted)
	return result
}

// Rejected returns a copy of the errors rejected so far, in order.
func (cs *CapturingSink) Rejected() []error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	result := make([]error, len(cs.rejected))
	copy(result, cs.rejected)
	return result
}

func (cs *CapturingSink) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.accepted) + len(cs.rejected)
}

// WaitFor blocks until at least n measurements and rejections combined have been
// recorded. It returns false if ctx is done first.
func (cs *CapturingSink) WaitFor(ctx context.Context, n int) bool {
	for {
		if cs.count() >= n {
			return true
		}
		select {
		case <-ctx.Done():
			return cs.count() >= n
		case <-cs.notify:
		}
	}
}
