// Package cancel provides a broadcastable one-way stop flag for cooperative
// shutdown of independent workers.
//
// A Source owns the right to trigger. Any number of Tokens share the flag and
// observe the transition with a single atomic load, so workers can poll it in
// tight loops. Done exposes the same transition as a channel for use in select
// statements and readiness pollers.
package cancel

import (
	"sync"
	"sync/atomic"
)

type state struct {
	triggered atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// Source triggers the flag shared by all of its Tokens.
type Source struct {
	s *state
}

// Token observes the flag of the Source it was obtained from.
type Token struct {
	s *state
}

// NewSource returns an armed Source and a first Token for it.
func NewSource() (*Source, *Token) {
	s := &state{
		done: make(chan struct{}),
	}
	return &Source{s: s}, &Token{s: s}
}

// Token returns a new Token sharing the Source's flag.
func (src *Source) Token() *Token {
	return &Token{s: src.s}
}

// Trigger sets the flag. Calling it more than once has no further effect.
func (src *Source) Trigger() {
	src.s.once.Do(func() {
		src.s.triggered.Store(true)
		close(src.s.done)
	})
}

// Clone returns another Token sharing the same flag.
func (t *Token) Clone() *Token {
	return &Token{s: t.s}
}

// IsTriggered reports whether the Source has been triggered. It never blocks.
func (t *Token) IsTriggered() bool {
	return t.s.triggered.Load()
}

// Done returns a channel that is closed once the Source is triggered.
func (t *Token) Done() <-chan struct{} {
	return t.s.done
}
