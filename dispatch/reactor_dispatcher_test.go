//go:build linux

// File: dispatch/reactor_dispatcher_test.go
package dispatch

import (
	"testing"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
)

func TestReactorDispatcherDeliversOnWork(t *testing.T) {
	d, err := NewReactorDispatcher(8)
	if err != nil {
		t.Fatalf("NewReactorDispatcher: %v", err)
	}
	defer d.Close()

	fired := false
	rec := completion.NewRecord(nil, func(*completion.Record) { fired = true })
	rec.Resolve(10, nil)
	if !d.Push(rec) {
		t.Fatalf("Push failed on non-full queue")
	}
	if fired {
		t.Fatalf("callback fired before Work")
	}
	if err := d.Work(1000); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if !fired {
		t.Fatalf("callback did not fire after Work")
	}
}

func TestReactorDispatcherWorkTimesOut(t *testing.T) {
	d, err := NewReactorDispatcher(4)
	if err != nil {
		t.Fatalf("NewReactorDispatcher: %v", err)
	}
	defer d.Close()

	if err := d.Work(10); err != api.ErrTimedOut {
		t.Fatalf("Work on empty dispatcher = %v, want ErrTimedOut", err)
	}
}

func TestReactorDispatcherShutdownWakesWorkers(t *testing.T) {
	d, err := NewReactorDispatcher(4)
	if err != nil {
		t.Fatalf("NewReactorDispatcher: %v", err)
	}
	defer d.Close()

	d.Shutdown(2)
	for i := 0; i < 2; i++ {
		if err := d.Work(1000); err != api.ErrSocketClosed {
			t.Fatalf("Work after Shutdown = %v, want ErrSocketClosed", err)
		}
	}
}
