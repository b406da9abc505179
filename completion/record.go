// File: completion/record.go
// Author: momentics <momentics@gmail.com>
//
// Completion Record: the unit of bookkeeping for one asynchronous
// operation (a framed read or write, or an accepted connection). The
// socket and server packages obtain a Record on the goroutine that
// performed the underlying call, once that call has returned, and
// resolve it there exactly once; such records go from Idle straight to
// a terminal status and never pass through Pending.

package completion

import (
	"sync"
	"sync/atomic"

	"github.com/localpath/datapath/api"
)

// Status is the lifecycle of a single Completion Record.
type Status int32

const (
	StatusIdle Status = iota
	StatusPending
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callback receives the record once it reaches a terminal status. It is
// invoked at most once, by Invoke — never by Resolve or Cancel
// themselves. The Dispatcher calls Invoke from inside Work; the socket
// and server packages also call Invoke directly on the goroutine that
// resolved the record when the Dispatcher's queue is full, so under
// that backpressure a callback runs outside Work.
type Callback func(*Record)

// Record is the Go-idiomatic form of the original's pinned completion
// structure. The original recovers the owning object from a raw OS
// completion pointer via a fixed-offset back-pointer embedded right
// after the OS-visible completion state; this implementation has no
// need for that trick; it passes *Record itself through the dispatch
// queue, so "recovering the record" is simply the pointer already in
// hand. UserData plays the same role the original's opaque tag plays:
// letting the caller correlate a completion with the request that
// produced it without a second lookup.
type Record struct {
	UserData any

	status atomic.Int32

	mu         sync.Mutex
	cb         Callback
	done       chan struct{}
	doneOnce   sync.Once
	invokeOnce sync.Once
	result     int
	err        error
}

// NewRecord returns an idle Record with the given callback and user data.
// cb may be nil; a nil callback is legal for fire-and-forget operations
// whose caller only inspects the Record via Done/Status.
func NewRecord(userData any, cb Callback) *Record {
	r := &Record{
		UserData: userData,
		cb:       cb,
		done:     make(chan struct{}),
	}
	r.status.Store(int32(StatusIdle))
	return r
}

// Reset reinitializes a terminal Record for reuse from an ObjectPool,
// replacing its callback and user data and rearming the done channel.
// Callers must not call Reset on a record still reachable from a
// Dispatcher queue (i.e. before Invoke has run).
func (r *Record) Reset(userData any, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UserData = userData
	r.cb = cb
	r.done = make(chan struct{})
	r.doneOnce = sync.Once{}
	r.invokeOnce = sync.Once{}
	r.result = 0
	r.err = nil
	r.status.Store(int32(StatusIdle))
}

// Status returns the current lifecycle state. Non-blocking; reflects
// whatever the last writer stored.
func (r *Record) Status() Status {
	return Status(r.status.Load())
}

// IsCompleted reports whether the record has reached any terminal state.
// In the original this is a non-blocking OS poll; here the resolving
// goroutine updates Status the instant the outcome is known, so this is
// just an atomic load.
func (r *Record) IsCompleted() bool {
	switch r.Status() {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// markPending transitions Idle -> Pending. It is unexported and only
// this package's tests call it; the socket and server packages resolve
// records without marking them Pending first.
func (r *Record) markPending() {
	r.status.Store(int32(StatusPending))
}

// Resolve transitions the record to a terminal state exactly once. n is
// the byte count transferred (meaningful for reads/writes); err is nil
// on success. Subsequent calls are no-ops, protecting against a racing
// cancellation and completion both trying to resolve the same record.
// Resolve does not invoke the callback; the caller must still hand the
// record to a Dispatcher (via Push) so Invoke runs from inside Work.
func (r *Record) Resolve(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.IsCompleted() {
		return
	}
	r.result = n
	r.err = err
	if err == nil {
		r.status.Store(int32(StatusCompleted))
	} else {
		r.status.Store(int32(StatusFailed))
	}
	r.doneOnce.Do(func() { close(r.done) })
}

// Cancel aborts a pending operation. Returns api.ErrNotSupported if the
// record already reached a terminal state. Like Resolve, it does not
// invoke the callback directly.
func (r *Record) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.IsCompleted() {
		return api.ErrNotSupported
	}
	r.err = api.ErrSocketClosed
	r.status.Store(int32(StatusCancelled))
	r.doneOnce.Do(func() { close(r.done) })
	return nil
}

// Invoke calls the record's callback exactly once. A Dispatcher's Work
// calls it after popping the record from its completion queue; the
// socket and server packages call it directly when Push fails. Invoke
// on a record with a nil callback is a no-op. Invoke does not touch r
// after the callback returns, so the callback may hand r back to a
// RecordPool as its last action.
func (r *Record) Invoke() {
	var cb Callback
	r.invokeOnce.Do(func() { cb = r.cb })
	if cb != nil {
		cb(r)
	}
}

// Done implements api.Cancelable: a channel closed once the record
// reaches a terminal state.
func (r *Record) Done() <-chan struct{} {
	return r.done
}

// Err implements api.Cancelable: the terminal error, or nil on success
// or if the record has not yet completed.
func (r *Record) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// N returns the byte count recorded by Resolve.
func (r *Record) N() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

var _ api.Cancelable = (*Record)(nil)
