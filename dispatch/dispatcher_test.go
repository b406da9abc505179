// File: dispatch/dispatcher_test.go
package dispatch

import (
	"testing"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/completion"
)

func TestDispatcherDeliversOnWork(t *testing.T) {
	d := NewDispatcher(8)
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

func TestDispatcherWorkTimesOut(t *testing.T) {
	d := NewDispatcher(4)
	if err := d.Work(10); err != api.ErrTimedOut {
		t.Fatalf("Work on empty dispatcher = %v, want ErrTimedOut", err)
	}
}

func TestDispatcherShutdownWakesWorkers(t *testing.T) {
	d := NewDispatcher(4)
	d.Shutdown(2)
	for i := 0; i < 2; i++ {
		if err := d.Work(1000); err != api.ErrSocketClosed {
			t.Fatalf("Work after Shutdown = %v, want ErrSocketClosed", err)
		}
	}
}

func TestDispatcherFIFOOrder(t *testing.T) {
	d := NewDispatcher(8)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		rec := completion.NewRecord(nil, func(*completion.Record) { order = append(order, i) })
		rec.Resolve(0, nil)
		d.Push(rec)
	}
	for i := 0; i < 3; i++ {
		if err := d.Work(1000); err != nil {
			t.Fatalf("Work: %v", err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want [0 1 2]", order)
		}
	}
}
