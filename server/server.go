// File: server/server.go
// Author: momentics <momentics@gmail.com>
//
// Listening Server (spec §4.3): accepts inbound connections on a path,
// mediates admission through the connected event, and keeps a
// pre-warmed backlog of server-side sockets. Grounded on the accept-
// loop shape the teacher's server package used for its listener, and on
// original_source/include/datapath/server.hpp's connected(allow, sock)
// admission signature.

package server

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
	"github.com/localpath/datapath/dispatch"
	"github.com/localpath/datapath/socket"
	"github.com/localpath/datapath/transport"
)

// DefaultBacklog is the number of concurrently armed server-side
// sockets a Server maintains while Open.
const DefaultBacklog = 8

// Connected is delivered to the Connected event once per accepted
// transport-level connection. Set *Allow to true to keep the socket;
// the default is false, mirroring the original's admission contract.
type Connected struct {
	Allow  *bool
	Socket *socket.Socket
}

// DispatcherFactory builds the Completion Dispatcher a Server drains
// from Work, sized to capacity. The default (used by New) wraps
// dispatch.NewDispatcher, whose constructor cannot fail; a factory
// backed by dispatch.NewReactorDispatcher lets a caller opt into the
// OS-native epoll/IOCP backend instead, which is why the factory
// shape returns an error even though the portable one never produces
// one.
type DispatcherFactory func(capacity int) (dispatch.CompletionDispatcher, error)

// Server is a single listening endpoint bound to a path.
type Server struct {
	Connected api.EventEmitter[Connected]

	backlog     int
	newDispatch DispatcherFactory
	dispatcher  dispatch.CompletionDispatcher

	stateMu  sync.Mutex
	state    api.State
	path     string
	perm     api.Permission
	listener net.Listener

	poolMu sync.Mutex
	pool   map[*socket.Socket]struct{}

	freeCount     atomic.Int64
	admittedCount atomic.Int64
	workerCount   atomic.Int64
}

// New returns a Closed server with the given backlog size, dispatched
// through the portable dispatch.Dispatcher. A backlog of 0 selects
// DefaultBacklog.
func New(backlog int) *Server {
	return NewWithDispatcher(backlog, portableDispatcherFactory)
}

// NewWithDispatcher returns a Closed server that builds its Completion
// Dispatcher through factory when Open is called, letting a caller
// substitute the OS-native reactor backend (dispatch.NewReactorDispatcher)
// for the portable one — a real drop-in, since both satisfy
// dispatch.CompletionDispatcher.
func NewWithDispatcher(backlog int, factory DispatcherFactory) *Server {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if factory == nil {
		factory = portableDispatcherFactory
	}
	return &Server{
		backlog:     backlog,
		newDispatch: factory,
		state:       api.StateClosed,
		pool:        make(map[*socket.Socket]struct{}),
	}
}

func portableDispatcherFactory(capacity int) (dispatch.CompletionDispatcher, error) {
	return dispatch.NewDispatcher(capacity), nil
}

// SetPath configures the listen path and permission set. Fails with
// api.ErrNotSupported unless Closed.
func (srv *Server) SetPath(path string, perm api.Permission) error {
	srv.stateMu.Lock()
	defer srv.stateMu.Unlock()
	if srv.state != api.StateClosed {
		return api.ErrNotSupported
	}
	srv.path = path
	srv.perm = perm
	return nil
}

// Open creates the Dispatcher, opens the transport-level listener, and
// starts backlog accept loops, each standing in for one pre-warmed
// server-side socket slot.
func (srv *Server) Open() error {
	return srv.OpenWith(transport.Listen)
}

// OpenWith is Open with an injectable listen function, used by tests to
// open a server around an in-memory listener instead of a real
// transport-level one.
func (srv *Server) OpenWith(listen func(path string, perm api.Permission) (net.Listener, error)) error {
	srv.stateMu.Lock()
	if srv.state != api.StateClosed {
		srv.stateMu.Unlock()
		return api.ErrNotSupported
	}
	path, perm := srv.path, srv.perm
	srv.stateMu.Unlock()

	ln, err := listen(path, perm)
	if err != nil {
		return err
	}

	dispatcher, err := srv.newDispatch(srv.backlog * 4)
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv.stateMu.Lock()
	srv.listener = ln
	srv.state = api.StateOpen
	srv.stateMu.Unlock()

	srv.dispatcher = dispatcher
	srv.freeCount.Store(int64(srv.backlog))

	for i := 0; i < srv.backlog; i++ {
		go srv.acceptLoop(ln)
	}
	return nil
}

// IsOpen reports whether the server is currently Open.
func (srv *Server) IsOpen() bool {
	srv.stateMu.Lock()
	defer srv.stateMu.Unlock()
	return srv.state == api.StateOpen
}

// Work drains one completion from the Dispatcher, invoking exactly one
// callback. Safe to call from any number of threads concurrently. The
// state check and workerCount increment happen under stateMu, the same
// lock Close holds while it transitions to Closing and snapshots
// workerCount, so no caller can register as a worker after that
// snapshot is taken — Close's Shutdown(workerCount) always wakes every
// goroutine that is or will be blocked inside dispatcher.Work.
func (srv *Server) Work(ms int) error {
	srv.stateMu.Lock()
	if srv.state != api.StateOpen {
		srv.stateMu.Unlock()
		return api.ErrSocketClosed
	}
	srv.workerCount.Add(1)
	srv.stateMu.Unlock()
	defer srv.workerCount.Add(-1)
	return srv.dispatcher.Work(ms)
}

// Close stops accepting new connections, closes every admitted socket,
// and posts shutdown sentinels equal to the number of threads currently
// inside Work.
func (srv *Server) Close() error {
	srv.stateMu.Lock()
	if srv.state != api.StateOpen {
		srv.stateMu.Unlock()
		return nil
	}
	srv.state = api.StateClosing
	ln := srv.listener
	workers := srv.workerCount.Load()
	srv.stateMu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}

	srv.poolMu.Lock()
	sockets := make([]*socket.Socket, 0, len(srv.pool))
	for s := range srv.pool {
		sockets = append(sockets, s)
	}
	srv.poolMu.Unlock()
	for _, s := range sockets {
		_ = s.Close()
	}

	srv.dispatcher.Shutdown(int(workers))
	// ReactorDispatcher holds an epoll/IOCP handle that CompletionDispatcher
	// doesn't expose; release it here if this backend has one.
	if closer, ok := srv.dispatcher.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	srv.stateMu.Lock()
	srv.state = api.StateClosed
	srv.stateMu.Unlock()
	return nil
}

// FreeCount returns the number of backlog slots currently waiting for a
// connection.
func (srv *Server) FreeCount() int { return int(srv.freeCount.Load()) }

// AdmittedCount returns the number of sockets currently admitted.
func (srv *Server) AdmittedCount() int { return int(srv.admittedCount.Load()) }

// OnSocketClosed implements socket.Owner: removes s from the pool when
// an admitted socket closes. A rejected socket was never added to the
// pool, so its close leaves the pool and counters unchanged.
func (srv *Server) OnSocketClosed(s *socket.Socket) {
	srv.poolMu.Lock()
	if _, ok := srv.pool[s]; ok {
		delete(srv.pool, s)
		srv.admittedCount.Add(-1)
	}
	srv.poolMu.Unlock()
}

// acceptLoop repeatedly waits for a connection and hands each off to
// admission processing without blocking on the decision, so the slot is
// re-armed (a fresh Accept issued) immediately — the Go-idiomatic
// reading of "construct a replacement socket and add it to the pool".
func (srv *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if srv.IsOpen() {
				continue
			}
			return
		}
		srv.freeCount.Add(-1)
		go srv.admit(conn)
		srv.freeCount.Add(1)
	}
}

// admit opens a server-side socket around conn and posts a completion
// whose callback fires the Connected event from inside Work, per
// spec.md §4.3's admission protocol.
func (srv *Server) admit(conn net.Conn) {
	s := socket.New(api.RoleServer, srv.dispatcher)
	s.SetOwner(srv)
	s.OpenWithConn(conn)

	allow := false
	rec := completion.NewRecord(s, func(*completion.Record) {
		srv.Connected.Fire(Connected{Allow: &allow, Socket: s})
		if allow {
			srv.poolMu.Lock()
			srv.pool[s] = struct{}{}
			srv.poolMu.Unlock()
			srv.admittedCount.Add(1)
		} else {
			_ = s.Close()
		}
	})
	rec.Resolve(0, nil)
	if !srv.dispatcher.Push(rec) {
		rec.Invoke()
	}
}
