// File: dispatch/dispatcher.go
// Author: momentics <momentics@gmail.com>
//
// Completion Dispatcher (spec §4.4): the single place completions are
// delivered to application callbacks. A completion is posted by the
// goroutine that just learned its outcome (a Read, a Write, an accept);
// Work drains the queue and invokes each Record's callback on the
// calling goroutine. When Push reports a full queue, the socket and
// server packages call Record.Invoke on the posting goroutine instead,
// so under that backpressure a callback runs outside Work.
//
// Grounded on core/concurrency/eventloop.go's inbox-plus-blocking-wait
// shape, simplified: no handler registration, no adaptive backoff — a
// counting semaphore channel paired with the lock-free ring queue gives
// a blocking-with-timeout dequeue directly.

package dispatch

import (
	"sync/atomic"
	"time"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
)

// sentinel is pushed worker_count times by Shutdown to wake every
// goroutine currently blocked in Work so it can observe closed and
// return.
type sentinel struct{}

// Dispatcher is the portable, reactor-independent Completion Dispatcher.
// It depends only on the Go runtime scheduler, so it behaves identically
// on every GOOS; see ReactorDispatcher for the OS-native alternative.
type Dispatcher struct {
	queue   *ringQueue[any]
	wake    chan struct{}
	closed  atomic.Bool
	pending atomic.Int64
}

// NewDispatcher returns a Dispatcher whose completion queue holds up to
// capacity (rounded up to a power of two) pending completions before
// Push starts reporting failure.
func NewDispatcher(capacity int) *Dispatcher {
	q := newRingQueue[any](capacity)
	return &Dispatcher{
		queue: q,
		wake:  make(chan struct{}, len(q.cell)),
	}
}

// Push enqueues rec for delivery by a future Work call. Returns false if
// the queue is full; the caller (always an internal component, never
// application code) should treat that as backpressure.
func (d *Dispatcher) Push(rec *completion.Record) bool {
	return d.post(rec)
}

func (d *Dispatcher) post(item any) bool {
	if !d.queue.push(item) {
		return false
	}
	select {
	case d.wake <- struct{}{}:
	default:
		// wake channel is sized to match queue capacity, so this
		// branch only fires if post races past capacity; the item
		// is still in the queue and will be drained by the next Work.
	}
	return true
}

// Work blocks until either a completion is available, the dispatcher is
// shut down, or ms milliseconds elapse, whichever comes first. A
// negative ms blocks indefinitely. It returns api.ErrTimedOut if the
// deadline elapsed with nothing to deliver, and api.ErrSocketClosed once
// the dispatcher has been shut down and drained.
func (d *Dispatcher) Work(ms int) error {
	var deadline <-chan time.Time
	if ms >= 0 {
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-d.wake:
	case <-deadline:
		return api.ErrTimedOut
	}

	item, ok := d.queue.pop()
	if !ok {
		// wake fired but another goroutine already drained the item;
		// report a spurious timeout rather than blocking again, so
		// Work's latency bound never exceeds ms.
		return api.ErrTimedOut
	}
	if _, isSentinel := item.(sentinel); isSentinel {
		return api.ErrSocketClosed
	}
	rec := item.(*completion.Record)
	rec.Invoke()
	return nil
}

// Shutdown wakes every goroutine currently or subsequently blocked in
// Work by posting workerCount sentinel values, then marks the dispatcher
// closed. Safe to call more than once.
func (d *Dispatcher) Shutdown(workerCount int) {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < workerCount; i++ {
		d.post(sentinel{})
	}
}

// Closed reports whether Shutdown has been called.
func (d *Dispatcher) Closed() bool {
	return d.closed.Load()
}
