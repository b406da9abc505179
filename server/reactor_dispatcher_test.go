//go:build linux

// File: server/reactor_dispatcher_test.go
package server

import (
	"net"
	"testing"
	"time"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/dispatch"
)

// TestServerAdmitsConnectionWithReactorDispatcher proves
// dispatch.NewReactorDispatcher is a real drop-in for the portable
// Dispatcher: the same admission protocol (TestServerAdmitsConnection)
// runs with the server driven off the epoll-backed dispatcher instead.
func TestServerAdmitsConnectionWithReactorDispatcher(t *testing.T) {
	l := newMemListener()
	srv := NewWithDispatcher(4, func(capacity int) (dispatch.CompletionDispatcher, error) {
		return dispatch.NewReactorDispatcher(capacity)
	})
	if err := srv.SetPath("test", api.PermissionUser); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if err := srv.OpenWith(func(string, api.Permission) (net.Listener, error) {
		return l, nil
	}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer srv.Close()

	admitted := make(chan struct{})
	srv.Connected.On(func(ev Connected) {
		*ev.Allow = true
		close(admitted)
	})

	conn := dialInto(l)
	defer conn.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-admitted:
			if srv.AdmittedCount() != 1 {
				t.Fatalf("AdmittedCount = %d, want 1", srv.AdmittedCount())
			}
			return
		case <-deadline:
			t.Fatalf("connected event never fired")
		default:
			srv.Work(50)
		}
	}
}
