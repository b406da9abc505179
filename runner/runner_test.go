// File: runner/runner_test.go
package runner

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/localpath/datapath/api"
)

func TestRunnerStopUnblocksWorkers(t *testing.T) {
	var calls atomic.Int64
	closed := make(chan struct{})
	work := func(ms int) error {
		calls.Add(1)
		select {
		case <-closed:
			return api.ErrSocketClosed
		default:
			return api.ErrTimedOut
		}
	}
	r := New(work, 10)
	r.Start(3, nil)
	time.Sleep(30 * time.Millisecond)
	close(closed)

	done := make(chan struct{})
	go func() { r.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}
	if calls.Load() == 0 {
		t.Fatalf("work was never called")
	}
}

func TestRunnerAffinityCalledOncePerWorker(t *testing.T) {
	var seen atomic.Int64
	work := func(int) error { time.Sleep(time.Millisecond); return nil }
	r := New(work, 1)
	r.Start(4, func(int) { seen.Add(1) })
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	if seen.Load() != 4 {
		t.Fatalf("affinity called %d times, want 4", seen.Load())
	}
}
