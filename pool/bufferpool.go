// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Size-classed []byte reuse for the socket's outbound frame buffers
// (the wire codec and the socket read path allocate with make). Grounded on core/buffer/bufferpool.go's size-class lookup
// (smallest power-of-two class that fits the request); the hugepage/
// mmap allocator and NUMA-node plumbing that lineage layers on top are
// dropped — at 4-byte-header to 1 MiB payload sizes there is no benefit
// to 2 MiB hugepage mappings, and that allocator's own code already
// falls back to make([]byte, sz) whenever the mmap call fails, which is
// the behavior this pool keeps.

package pool

import (
	"sync"

	"github.com/localpath/datapath/api"
)

// classes are the power-of-two size classes buffers are rounded up to.
var classes = [...]int{
	1 << 10, // 1K, covers the 4-byte header plus small payloads
	1 << 12, // 4K
	1 << 14, // 16K
	1 << 16, // 64K
	1 << 18, // 256K
	1 << 20, // 1M, the largest legal packet
}

func classFor(n int) int {
	for _, c := range classes {
		if n <= c {
			return c
		}
	}
	return classes[len(classes)-1]
}

// BufferPool hands out []byte slices sized to the smallest class that
// fits a request, and returns them to per-class sync.Pool instances on
// Release. It implements api.BytePool.
type BufferPool struct {
	pools [len(classes)]sync.Pool
}

// New returns a ready-to-use BufferPool.
func New() *BufferPool {
	p := &BufferPool{}
	for i, c := range classes {
		size := c
		p.pools[i].New = func() any { return make([]byte, size) }
	}
	return p
}

func classIndex(n int) int {
	for i, c := range classes {
		if n <= c {
			return i
		}
	}
	return len(classes) - 1
}

// Acquire returns a slice of at least n bytes, length n, drawn from the
// smallest size class that fits. Requests larger than the biggest class
// fall back to a direct allocation of exactly n bytes, since no pooled
// class can cover them.
func (p *BufferPool) Acquire(n int) []byte {
	if n > classes[len(classes)-1] {
		return make([]byte, n)
	}
	idx := classIndex(n)
	buf := p.pools[idx].Get().([]byte)
	if cap(buf) < n {
		buf = make([]byte, classFor(n))
	}
	return buf[:n]
}

// Release returns buf to the pool sized for its capacity. Buffers whose
// capacity does not match a known class (e.g. grown by append elsewhere)
// are simply dropped rather than pooled incorrectly.
func (p *BufferPool) Release(buf []byte) {
	c := cap(buf)
	for i, class := range classes {
		if c == class {
			p.pools[i].Put(buf[:class])
			return
		}
	}
}

var _ api.BytePool = (*BufferPool)(nil)
