// Package bufpool pools fixed-size datagram buffers.
//
// The receive path reads thousands of small datagrams per second; pooling
// the buffers keeps it allocation-free between GC cycles. All operations
// are safe for concurrent use via sync.Pool.
//
// Usage:
//
//	buf := pool.Get()
//	defer pool.Put(buf)
//	// ... use buf ...
package bufpool

import (
	"sync"
)

// Pool hands out byte slices of a single fixed capacity.
type Pool struct {
	pool sync.Pool
	size int
}

// New creates a pool of buffers with the given capacity, typically the
// maximum datagram size.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Get returns a buffer of the pool's full capacity.
func (p *Pool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns a buffer to the pool. Buffers of a different capacity are
// dropped rather than pooled.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(&buf)
}

// Size returns the capacity of buffers handed out by the pool.
func (p *Pool) Size() int {
	return p.size
}
