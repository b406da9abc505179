// File: dispatch/reactor_dispatcher.go
// Author: momentics <momentics@gmail.com>
//
// ReactorDispatcher is an OS-native alternative to Dispatcher, trading
// portability for using the platform's own wait primitive (epoll on
// Linux, an IOCP completion port on Windows) instead of a Go channel.
// Completions are still queued and delivered exactly like Dispatcher:
// the reactor is only used to park the calling goroutine between
// Push and Work, via a self-pipe (an always-registered eventfd/handle
// that Push signals) rather than per-socket fd registration.

package dispatch

import (
	"sync/atomic"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
	"github.com/localpath/datapath/reactor"
)

// wakeupSource abstracts the eventfd (Linux) / completion port post
// (Windows) used to make the reactor's Wait return once a completion is
// queued.
// The stub build has no implementation, so ReactorDispatcher is simply
// unavailable there; NewReactorDispatcher reports that with an error
// rather than panicking.
type wakeupSource interface {
	// arm registers the wakeup source with the reactor under userData.
	arm(r reactor.EventReactor, userData uintptr) error
	// signal wakes one pending Wait call.
	signal() error
	// drain resets the wakeup source after a Wait that reported it
	// readable, so edge-triggered reactors observe the next signal.
	drain()
	// close releases the underlying fd/handle.
	close() error
}

// ReactorDispatcher is a Dispatcher-shaped completion delivery loop
// backed by an EventReactor instead of a buffered Go channel. It
// implements CompletionDispatcher, the same Push/Work/Shutdown/Closed
// contract as Dispatcher, so socket.New and server.NewWithDispatcher
// accept either interchangeably; server.DispatcherFactory is how a
// caller actually substitutes this for the portable Dispatcher.
type ReactorDispatcher struct {
	queue   *ringQueue[any]
	reactor reactor.EventReactor
	wake    wakeupSource
	closed  atomic.Bool
}

// NewReactorDispatcher constructs a ReactorDispatcher backed by the
// platform's native reactor. Returns an error on platforms without a
// wakeupSource implementation (reactor_stub.go's NewReactor already
// fails there; this mirrors that for a consistent caller experience).
func NewReactorDispatcher(capacity int) (*ReactorDispatcher, error) {
	r, err := reactor.NewReactor()
	if err != nil {
		return nil, err
	}
	wake, err := newWakeupSource()
	if err != nil {
		r.Close()
		return nil, err
	}
	if err := wake.arm(r, 0); err != nil {
		wake.close()
		r.Close()
		return nil, err
	}
	return &ReactorDispatcher{
		queue:   newRingQueue[any](capacity),
		reactor: r,
		wake:    wake,
	}, nil
}

// Push enqueues rec for delivery by a future Work call.
func (d *ReactorDispatcher) Push(rec *completion.Record) bool {
	return d.post(rec)
}

func (d *ReactorDispatcher) post(item any) bool {
	if !d.queue.push(item) {
		return false
	}
	_ = d.wake.signal()
	return true
}

// Work blocks until either a completion is available, the dispatcher is
// shut down, or ms milliseconds elapse. Semantics match Dispatcher.Work.
// A completion already queued is delivered without waiting on the
// reactor, since one drained wakeup may stand for several Push calls.
func (d *ReactorDispatcher) Work(ms int) error {
	item, ok := d.queue.pop()
	if !ok {
		events := make([]reactor.Event, 1)
		n, err := d.reactor.Wait(events, ms)
		if err != nil {
			return err
		}
		if n == 0 {
			return api.ErrTimedOut
		}
		d.wake.drain()

		item, ok = d.queue.pop()
		if !ok {
			return api.ErrTimedOut
		}
	}
	if _, isSentinel := item.(sentinel); isSentinel {
		return api.ErrSocketClosed
	}
	rec := item.(*completion.Record)
	rec.Invoke()
	return nil
}

// Shutdown marks the dispatcher closed and wakes every goroutine
// currently or subsequently blocked in Work by posting workerCount
// sentinel values. It does not release the reactor; Close does.
func (d *ReactorDispatcher) Shutdown(workerCount int) {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < workerCount; i++ {
		d.post(sentinel{})
	}
}

// Closed reports whether Shutdown has been called.
func (d *ReactorDispatcher) Closed() bool {
	return d.closed.Load()
}

// Close releases the reactor and wakeup source. Call after every
// worker has returned from Work with api.ErrSocketClosed.
func (d *ReactorDispatcher) Close() error {
	err1 := d.wake.close()
	err2 := d.reactor.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
