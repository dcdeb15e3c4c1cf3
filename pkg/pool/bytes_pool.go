package pool

import (
	"sync"
)

// Bytes is a strongly typed wrapper around a sync.Pool for fixed size byte slices.
// Pointers to slices are pooled so that Put does not allocate.
type Bytes struct {
	p    sync.Pool
	size int
}

// NewBytes returns a pool of byte slices of length size.
func NewBytes(size int) *Bytes {
	bp := &Bytes{
		size: size,
	}
	bp.p.New = func() interface{} {
		b := make([]byte, bp.size)
		return &b
	}
	return bp
}

// Size returns the length of every slice handed out by Get.
func (bp *Bytes) Size() int {
	return bp.size
}

// Get returns a slice of length Size. Its content is undefined.
func (bp *Bytes) Get() *[]byte {
	return bp.p.Get().(*[]byte)
}

// Put returns b to the pool. Slices with too little capacity are discarded.
func (bp *Bytes) Put(b *[]byte) {
	if cap(*b) < bp.size {
		return
	}
	*b = (*b)[:bp.size]
	bp.p.Put(b)
}
