// File: dispatch/interface.go
// Author: momentics <momentics@gmail.com>
//
// CompletionDispatcher names the contract both Dispatcher and
// ReactorDispatcher satisfy, so socket.New and server.NewWithDispatcher
// can accept either backend interchangeably.

package dispatch

import "github.com/localpath/datapath/completion"

// CompletionDispatcher is the Completion Dispatcher contract (spec
// §4.4): post a completion, drain one on the calling goroutine, and
// shut down cleanly. Dispatcher and ReactorDispatcher both implement
// it; callers that construct a ReactorDispatcher and need to release
// its epoll/IOCP handle should type-assert for an optional
// io.Closer-shaped Close() error after every worker has returned from
// Work with api.ErrSocketClosed.
type CompletionDispatcher interface {
	Push(rec *completion.Record) bool
	Work(ms int) error
	Shutdown(workerCount int)
	Closed() bool
}

var (
	_ CompletionDispatcher = (*Dispatcher)(nil)
	_ CompletionDispatcher = (*ReactorDispatcher)(nil)
)
