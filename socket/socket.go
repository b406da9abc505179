// File: socket/socket.go
// Author: momentics <momentics@gmail.com>
//
// Framed Socket: converts a stream transport into a length-prefixed
// message transport. Owns independent read-side and write-side request
// FIFOs and state machines, and issues at most one transport read and
// one transport write at any instant.

package socket

import (
	"io"
	"net"
	"sync"

	"github.com/eapache/queue"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
	"github.com/localpath/datapath/dispatch"
	"github.com/localpath/datapath/pool"
	"github.com/localpath/datapath/transport"
	"github.com/localpath/datapath/wire"
)

// ReadCallback receives a received packet's payload, or a non-nil err.
type ReadCallback func(payload []byte, err error, user any)

// WriteCallback is invoked once a write request's bytes are on the wire,
// or fails with a non-nil err.
type WriteCallback func(err error, user any)

// Opened is delivered to the opened event when a socket finishes
// connecting (client) or is admitted (server-side).
type Opened struct {
	Socket *Socket
	Err    error
}

// Closed is delivered to the closed event exactly once per socket.
type Closed struct {
	Socket *Socket
	Err    error
}

// phase is the read-side state machine's current position.
type phase int

const (
	phaseIdle phase = iota
	phaseAwaitingHeader
	phaseAwaitingBody
)

type readRequest struct {
	cb   ReadCallback
	user any
}

type writeRequest struct {
	framed []byte
	cb     WriteCallback
	user   any
}

// Owner lets a server-side socket notify its Server of closure without
// socket importing server (which owns *Socket instances). A non-owning
// back-reference, per spec.md §9's weak-back-reference advice realized
// here as a plain interface value.
type Owner interface {
	OnSocketClosed(s *Socket)
}

// Socket is a single bidirectional framed connection endpoint.
type Socket struct {
	role       api.Role
	dispatcher dispatch.CompletionDispatcher
	owner      Owner

	stateMu sync.Mutex
	state   api.State
	path    string
	conn    net.Conn

	readMu     sync.Mutex
	readFIFO   *queue.Queue
	readPhase  phase
	readBuf    []byte
	readIssued bool

	writeMu     sync.Mutex
	writeFIFO   *queue.Queue
	writeIssued bool

	records *pool.RecordPool
	frames  *pool.BufferPool

	Opened api.EventEmitter[Opened]
	Closed api.EventEmitter[Closed]
}

// New returns a Closed socket of the given role, dispatched through d.
// Client sockets are constructed with their own private Dispatcher;
// server-side sockets share their Server's. d may be a *dispatch.Dispatcher
// or a *dispatch.ReactorDispatcher — either satisfies
// dispatch.CompletionDispatcher, so the OS-native reactor backend is a
// real drop-in here.
func New(role api.Role, d dispatch.CompletionDispatcher) *Socket {
	return &Socket{
		role:       role,
		dispatcher: d,
		state:      api.StateClosed,
		readFIFO:   queue.New(),
		writeFIFO:  queue.New(),
		records:    pool.NewRecordPool(),
		frames:     pool.New(),
	}
}

// defaultClientQueueDepth bounds a client socket's private Dispatcher
// queue; a client only ever has one read and one write in flight at a
// time, so a handful of slots comfortably covers completions plus a
// couple of in-flight cancellations.
const defaultClientQueueDepth = 16

// NewClient returns a Closed client socket with its own private
// Dispatcher, per spec.md §5 ("client sockets own a private
// Dispatcher").
func NewClient() *Socket {
	return New(api.RoleClient, dispatch.NewDispatcher(defaultClientQueueDepth))
}

// SetOwner installs the Server that should be notified when this
// server-side socket closes. Called once, by the owning Server, before
// the socket is armed. A no-op panic-free call for client sockets is
// harmless since they have no owner to notify.
func (s *Socket) SetOwner(o Owner) { s.owner = o }

// Role reports whether this is a client or server-side socket.
func (s *Socket) Role() api.Role { return s.role }

// IsOpen reports whether the socket is currently Open.
func (s *Socket) IsOpen() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state == api.StateOpen
}

// State returns the current lifecycle state.
func (s *Socket) State() api.State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// SetPath sets the endpoint path to dial when Open is called on a
// client socket. Fails with api.ErrNotSupported unless Closed.
func (s *Socket) SetPath(path string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != api.StateClosed {
		return api.ErrNotSupported
	}
	s.path = path
	return nil
}

// Open connects a client socket to its configured path via
// transport.Dial, then transitions to Open and fires the opened event.
func (s *Socket) Open() error {
	return s.OpenWith(transport.Dial)
}

// OpenWith is Open with an injectable dial function, used by tests to
// open a socket around an in-memory net.Pipe instead of a real
// transport-level connection.
func (s *Socket) OpenWith(dial func(path string) (net.Conn, error)) error {
	s.stateMu.Lock()
	if s.state != api.StateClosed {
		s.stateMu.Unlock()
		return api.ErrNotSupported
	}
	path := s.path
	s.state = api.StateOpening
	s.stateMu.Unlock()

	conn, err := dial(path)
	if err != nil {
		s.stateMu.Lock()
		s.state = api.StateClosed
		s.stateMu.Unlock()
		s.Opened.Fire(Opened{Socket: s, Err: err})
		return err
	}
	s.openWithConn(conn)
	return nil
}

// OpenWithConn transitions a server-side socket to Open around an
// already-accepted net.Conn. Called by Server once a transport-level
// connection has been accepted; the equivalent of the original design's
// "post an async wait-for-client" completing.
func (s *Socket) OpenWithConn(conn net.Conn) {
	s.openWithConn(conn)
}

func (s *Socket) openWithConn(conn net.Conn) {
	s.stateMu.Lock()
	s.conn = conn
	s.state = api.StateOpen
	s.stateMu.Unlock()
	s.Opened.Fire(Opened{Socket: s})
}

// Close transitions Open -> Closed: cancels nothing in flight (the
// in-flight goroutine, if any, observes the closed connection on its
// next syscall and resolves with socket-closed), disconnects the
// transport, and drains both FIFOs with socket-closed callbacks. The
// closed event fires with api.ErrSocketClosed. Idempotent.
func (s *Socket) Close() error {
	return s.closeWithCause(api.ErrSocketClosed)
}

// closeWithCause is Close with an explicit cause carried into the
// closed event, so a listener can tell a local/peer disconnect
// (api.ErrSocketClosed) apart from a protocol violation that forced
// the close (api.ErrBadHeader / api.ErrBadSize), mirroring the
// original's events.closed(status, self) always carrying the
// triggering status.
func (s *Socket) closeWithCause(cause error) error {
	s.stateMu.Lock()
	if s.state == api.StateClosed || s.state == api.StateClosing {
		s.stateMu.Unlock()
		return nil
	}
	s.state = api.StateClosing
	conn := s.conn
	s.stateMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	s.drainReadFIFO(api.ErrSocketClosed)
	s.drainWriteFIFO(api.ErrSocketClosed)

	s.stateMu.Lock()
	s.state = api.StateClosed
	s.stateMu.Unlock()

	s.Closed.Fire(Closed{Socket: s, Err: cause})
	if s.owner != nil {
		s.owner.OnSocketClosed(s)
	}
	return nil
}

// Work services this socket's private Dispatcher. Only meaningful for
// client sockets; server-side sockets share their Server's Dispatcher
// and draining it is the Server's job, so Work is a no-op for them.
func (s *Socket) Work(ms int) error {
	if s.role != api.RoleClient {
		return nil
	}
	return s.dispatcher.Work(ms)
}

// Read enqueues a receive request. If the read FIFO was empty and the
// socket is Open, immediately issues the transport read for the 4-byte
// header. cb fires later from a Work call with either a packet or an
// error. Fails api.ErrNotSupported when Closed.
func (s *Socket) Read(cb ReadCallback, user any) error {
	if !s.IsOpen() {
		return api.ErrNotSupported
	}
	s.readMu.Lock()
	s.readFIFO.Add(readRequest{cb: cb, user: user})
	issue := !s.readIssued
	if issue {
		s.readIssued = true
		s.readPhase = phaseAwaitingHeader
	}
	s.readMu.Unlock()

	if issue {
		s.issueHeaderRead()
	}
	return nil
}

// Write frames payload with a 4-byte length prefix and enqueues it. If
// the write FIFO was empty, immediately issues the transport write. cb
// fires later from a Work call. Fails api.ErrNotSupported when Closed,
// api.ErrBadSize when payload exceeds wire.MaxPayload. The frame buffer
// is drawn from this socket's BufferPool and returned to it once the
// write completes.
func (s *Socket) Write(payload []byte, cb WriteCallback, user any) error {
	if !s.IsOpen() {
		return api.ErrNotSupported
	}
	framed, err := s.frameFor(payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	s.writeFIFO.Add(writeRequest{framed: framed, cb: cb, user: user})
	issue := !s.writeIssued
	if issue {
		s.writeIssued = true
	}
	s.writeMu.Unlock()

	if issue {
		s.issueWrite()
	}
	return nil
}

// issueHeaderRead performs one blocking read of exactly 4 header bytes
// on a disposable goroutine. Go's runtime netpoller is the completion
// substrate standing in for the OS completion port the original design
// describes; the goroutine itself plays the role of the pinned
// Completion Record's resolution step.
func (s *Socket) issueHeaderRead() {
	conn := s.currentConn()
	if conn == nil {
		s.failHeadRead(api.ErrSocketClosed)
		return
	}
	go func() {
		header := make([]byte, wire.HeaderSize)
		n, err := io.ReadFull(conn, header)
		s.onHeaderRead(header, n, err)
	}()
}

func (s *Socket) onHeaderRead(header []byte, n int, err error) {
	rec := s.records.Get(nil, func(r *completion.Record) {
		s.handleHeaderCompletion(header, n, err)
		s.records.Put(r)
	})
	rec.Resolve(n, err)
	if !s.dispatcher.Push(rec) {
		// Queue briefly full; deliver synchronously rather than drop
		// the completion, preserving the ordering guarantee.
		rec.Invoke()
	}
}

func (s *Socket) handleHeaderCompletion(header []byte, n int, err error) {
	if err != nil || n != wire.HeaderSize {
		// A clean peer disconnect (io.EOF with nothing read at all) is
		// socket-closed, not a protocol violation; a short, non-empty
		// header is a genuine bad-header per spec.md §4.2.
		if err == io.EOF && n == 0 {
			s.failHeadRead(api.ErrSocketClosed)
			_ = s.closeWithCause(api.ErrSocketClosed)
			return
		}
		s.failHeadRead(api.ErrBadHeader)
		_ = s.closeWithCause(api.ErrBadHeader)
		return
	}
	length, sizeErr := wire.DecodeHeader(header)
	if sizeErr != nil {
		s.failHeadRead(api.ErrBadSize)
		_ = s.closeWithCause(api.ErrBadSize)
		return
	}
	s.readMu.Lock()
	s.readPhase = phaseAwaitingBody
	s.readBuf = make([]byte, length)
	s.readMu.Unlock()
	s.issueBodyRead()
}

func (s *Socket) issueBodyRead() {
	conn := s.currentConn()
	if conn == nil {
		s.failHeadRead(api.ErrSocketClosed)
		return
	}
	s.readMu.Lock()
	buf := s.readBuf
	s.readMu.Unlock()
	go func() {
		n, err := io.ReadFull(conn, buf)
		s.onBodyRead(buf, n, err)
	}()
}

func (s *Socket) onBodyRead(buf []byte, n int, err error) {
	rec := s.records.Get(nil, func(r *completion.Record) {
		s.handleBodyCompletion(buf, n, err)
		s.records.Put(r)
	})
	rec.Resolve(n, err)
	if !s.dispatcher.Push(rec) {
		rec.Invoke()
	}
}

func (s *Socket) handleBodyCompletion(buf []byte, n int, err error) {
	if err != nil {
		s.failHeadRead(api.ErrSocketClosed)
		_ = s.closeWithCause(api.ErrSocketClosed)
		return
	}
	s.popReadAndFire(buf[:n], nil)
	s.advanceReadFIFO()
}

// advanceReadFIFO issues the next header read if the FIFO still has
// requests waiting, otherwise returns the socket to Idle.
func (s *Socket) advanceReadFIFO() {
	s.readMu.Lock()
	if s.readFIFO.Length() == 0 {
		s.readIssued = false
		s.readPhase = phaseIdle
		s.readMu.Unlock()
		return
	}
	s.readPhase = phaseAwaitingHeader
	s.readMu.Unlock()
	s.issueHeaderRead()
}

// popReadAndFire pops the head read request and invokes its callback
// with payload (or err on failure). Called from inside a Work callback,
// so the request's own callback also runs from inside Work.
func (s *Socket) popReadAndFire(payload []byte, err error) {
	s.readMu.Lock()
	if s.readFIFO.Length() == 0 {
		s.readMu.Unlock()
		return
	}
	req := s.readFIFO.Remove().(readRequest)
	s.readMu.Unlock()
	if req.cb != nil {
		req.cb(payload, err, req.user)
	}
}

// failHeadRead fires the current head request's callback with err
// without issuing any further transport I/O. Used for bad-header and
// bad-size, which close the socket afterward.
func (s *Socket) failHeadRead(err error) {
	s.popReadAndFire(nil, err)
}

// frameFor draws a frame-sized buffer from the socket's BufferPool and
// fills it with payload's length prefix and bytes, in place of a plain
// make per Write call.
func (s *Socket) frameFor(payload []byte) ([]byte, error) {
	if len(payload) > wire.MaxPayload {
		return nil, api.ErrBadSize
	}
	framed := s.frames.Acquire(wire.HeaderSize + len(payload))
	if err := wire.PutHeader(framed[:wire.HeaderSize], len(payload)); err != nil {
		s.frames.Release(framed)
		return nil, err
	}
	copy(framed[wire.HeaderSize:], payload)
	return framed, nil
}

func (s *Socket) issueWrite() {
	conn := s.currentConn()
	if conn == nil {
		s.failHeadWrite(api.ErrSocketClosed)
		return
	}
	s.writeMu.Lock()
	var buf []byte
	if s.writeFIFO.Length() > 0 {
		buf = s.writeFIFO.Peek().(writeRequest).framed
	}
	s.writeMu.Unlock()
	if buf == nil {
		return
	}
	go func() {
		n, err := conn.Write(buf)
		s.onWriteDone(n, err)
	}()
}

func (s *Socket) onWriteDone(n int, err error) {
	rec := s.records.Get(nil, func(r *completion.Record) {
		s.handleWriteCompletion(n, err)
		s.records.Put(r)
	})
	rec.Resolve(n, err)
	if !s.dispatcher.Push(rec) {
		rec.Invoke()
	}
}

func (s *Socket) handleWriteCompletion(_ int, err error) {
	if err != nil {
		s.failHeadWrite(api.ErrSocketClosed)
		_ = s.closeWithCause(api.ErrSocketClosed)
		return
	}
	s.popWriteAndFire(nil)
	s.advanceWriteFIFO()
}

func (s *Socket) advanceWriteFIFO() {
	s.writeMu.Lock()
	if s.writeFIFO.Length() == 0 {
		s.writeIssued = false
		s.writeMu.Unlock()
		return
	}
	s.writeMu.Unlock()
	s.issueWrite()
}

func (s *Socket) popWriteAndFire(err error) {
	s.writeMu.Lock()
	if s.writeFIFO.Length() == 0 {
		s.writeMu.Unlock()
		return
	}
	req := s.writeFIFO.Remove().(writeRequest)
	s.writeMu.Unlock()
	s.frames.Release(req.framed)
	if req.cb != nil {
		req.cb(err, req.user)
	}
}

func (s *Socket) failHeadWrite(err error) {
	s.popWriteAndFire(err)
}

func (s *Socket) currentConn() net.Conn {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != api.StateOpen {
		return nil
	}
	return s.conn
}

// drainReadFIFO empties the read FIFO, invoking each pending callback
// with err.
func (s *Socket) drainReadFIFO(err error) {
	for {
		s.readMu.Lock()
		if s.readFIFO.Length() == 0 {
			s.readIssued = false
			s.readPhase = phaseIdle
			s.readMu.Unlock()
			return
		}
		req := s.readFIFO.Remove().(readRequest)
		s.readMu.Unlock()
		if req.cb != nil {
			req.cb(nil, err, req.user)
		}
	}
}

// drainWriteFIFO empties the write FIFO, invoking each pending callback
// with err.
func (s *Socket) drainWriteFIFO(err error) {
	for {
		s.writeMu.Lock()
		if s.writeFIFO.Length() == 0 {
			s.writeIssued = false
			s.writeMu.Unlock()
			return
		}
		req := s.writeFIFO.Remove().(writeRequest)
		s.writeMu.Unlock()
		s.frames.Release(req.framed)
		if req.cb != nil {
			req.cb(err, req.user)
		}
	}
}
