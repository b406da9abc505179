// File: dispatch/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded MPMC ring buffer backing the Completion Dispatcher's queue.
// Lock-free via per-cell sequence numbers, after the pattern by Dmitry
// Vyukov. Kept from the lineage's executor-task queue, made generic
// here; the dispatchers instantiate it as ringQueue[any] to carry both
// *completion.Record values and shutdown sentinels.

package dispatch

import "sync/atomic"

const cacheLinePad = 64

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
	_        [cacheLinePad]byte
}

// ringQueue is a bounded MPMC queue: any number of goroutines may Push
// and Pop concurrently without blocking each other beyond brief CAS
// retries.
type ringQueue[T any] struct {
	head uint64
	_    [cacheLinePad]byte
	tail uint64
	_    [cacheLinePad]byte
	mask uint64
	cell []cell[T]
}

// newRingQueue returns a queue with capacity rounded up to a power of two.
func newRingQueue[T any](capacity int) *ringQueue[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &ringQueue[T]{
		mask: uint64(size - 1),
		cell: make([]cell[T], size),
	}
	for i := range q.cell {
		q.cell[i].sequence.Store(uint64(i))
	}
	return q
}

// push enqueues val; returns false if the queue is full.
func (q *ringQueue[T]) push(val T) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		idx := tail & q.mask
		c := &q.cell[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)
		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = val
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false
		default:
			// tail moved underneath us, retry
		}
	}
}

// pop dequeues an item; ok is false if the queue is empty.
func (q *ringQueue[T]) pop() (item T, ok bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		idx := head & q.mask
		c := &q.cell[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)
		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				item = c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + q.mask + 1)
				return item, true
			}
		case dif < 0:
			var zero T
			return zero, false
		default:
			// head moved underneath us, retry
		}
	}
}
