// File: pool/recordpool.go
// Author: momentics <momentics@gmail.com>
//
// RecordPool reuses completion.Record allocations across the many
// short-lived reads and writes a Framed Socket issues, the same
// generic-object-pool shape the teacher's own pool/objpool.go wraps
// around sync.Pool.

package pool

import (
	"sync"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
)

// RecordPool hands out completion.Record values, creating a fresh one
// only when the pool is empty.
type RecordPool struct {
	pool sync.Pool
}

// NewRecordPool returns an empty RecordPool.
func NewRecordPool() *RecordPool {
	return &RecordPool{
		pool: sync.Pool{New: func() any { return completion.NewRecord(nil, nil) }},
	}
}

// Get returns a Record reset to Idle with the given user data and
// callback, ready to be Resolved and pushed to a Dispatcher.
func (p *RecordPool) Get(userData any, cb completion.Callback) *completion.Record {
	rec := p.pool.Get().(*completion.Record)
	rec.Reset(userData, cb)
	return rec
}

// Put returns rec to the pool. Callers must only do this once Invoke
// has called rec's callback, since Reset on an in-flight record would
// corrupt state a Dispatcher may still observe. The callback itself may
// call Put as its last action: Invoke does not touch rec after the
// callback returns.
func (p *RecordPool) Put(rec *completion.Record) {
	p.pool.Put(rec)
}

var _ api.ObjectPool[*completion.Record] = (*recordPoolAdapter)(nil)

// recordPoolAdapter satisfies api.ObjectPool[*completion.Record]'s
// fixed two-method Get/Put shape; RecordPool itself takes Get's extra
// (userData, cb) arguments instead, which the plain ObjectPool contract
// has no room for, so the adapter's Get returns a blank, un-reset
// Record and leaves rearming to the caller via Record.Reset directly.
type recordPoolAdapter struct {
	pool *RecordPool
}

// NewRecordObjectPool exposes a RecordPool as an api.ObjectPool, for
// callers that only need the generic Get/Put contract.
func NewRecordObjectPool() api.ObjectPool[*completion.Record] {
	return &recordPoolAdapter{pool: NewRecordPool()}
}

func (a *recordPoolAdapter) Get() *completion.Record {
	return a.pool.pool.Get().(*completion.Record)
}

func (a *recordPoolAdapter) Put(rec *completion.Record) {
	a.pool.Put(rec)
}
