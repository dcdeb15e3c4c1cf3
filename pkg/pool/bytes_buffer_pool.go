package pool

import (
	"bytes"
	"sync"
)

// BytesBuffer pools *bytes.Buffer values. Buffers are handed out empty, with at least
// the initial capacity. Buffers which grew beyond maxRetained are not kept.
type BytesBuffer struct {
	p           sync.Pool
	initial     int
	maxRetained int
}

// NewBytesBuffer returns a pool of buffers preallocated to initial bytes. A maxRetained of
// zero keeps every buffer.
func NewBytesBuffer(initial, maxRetained int) *BytesBuffer {
	bp := &BytesBuffer{
		initial:     initial,
		maxRetained: maxRetained,
	}
	bp.p.New = func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, bp.initial))
	}
	return bp
}

func (bp *BytesBuffer) Get() *bytes.Buffer {
	return bp.p.Get().(*bytes.Buffer)
}

// Put resets b and returns it to the pool.
func (bp *BytesBuffer) Put(b *bytes.Buffer) {
	if bp.maxRetained > 0 && b.Cap() > bp.maxRetained {
		return
	}
	b.Reset()
	bp.p.Put(b)
}
