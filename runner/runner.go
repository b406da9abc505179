// File: runner/runner.go
// Author: momentics <momentics@gmail.com>
//
// Optional caller-driven work-loop helper: N goroutines, each calling a
// supplied Work(ms) function until Stop is called. Grounded on
// core/concurrency/executor.go's worker-pool shape, drastically
// simplified since the Completion Dispatcher already does all task
// queueing; a Runner only needs to keep calling Work, not schedule
// arbitrary task closures across local/global queues.
//
// Realizes spec.md §5's "the library schedules nothing on its own...
// application threads progress work by calling work()": the core never
// constructs a Runner itself, only application code does.

package runner

import (
	"sync"

	"github.com/localpath/datapath/api"
)

// WorkFunc is the shape shared by server.Server.Work and socket.Socket.Work.
type WorkFunc func(ms int) error

// Runner drives WorkFunc from a fixed number of goroutines until Stop.
type Runner struct {
	work WorkFunc
	ms   int

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New returns a Runner that will call work(ms) in a loop from Start.
func New(work WorkFunc, ms int) *Runner {
	return &Runner{
		work:   work,
		ms:     ms,
		stopCh: make(chan struct{}),
	}
}

// Start launches n goroutines, each looping work(ms) until Stop is
// called or work returns a terminal error (socket-closed). affinity, if
// non-nil, is invoked once per goroutine with its index before entering
// the loop, letting callers pin each worker to a CPU per spec.md §5's
// caller-chosen scheduling policy.
func (r *Runner) Start(n int, affinity func(workerIndex int)) {
	for i := 0; i < n; i++ {
		i := i
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if affinity != nil {
				affinity(i)
			}
			r.loop()
		}()
	}
}

func (r *Runner) loop() {
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}
		if err := r.work(r.ms); err != nil {
			if api.CodeOf(err) == api.CodeSocketClosed {
				return
			}
			// timeouts and other transient errors just loop again
		}
	}
}

// Stop signals every running goroutine to exit after its current Work
// call returns, and waits for them to do so.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
