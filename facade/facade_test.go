// File: facade/facade_test.go
package facade_test

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/control"
	"github.com/localpath/datapath/facade"
)

// memListener mirrors server_test.go's in-process net.Listener so this
// package can exercise Endpoint without touching the filesystem.
type memListener struct {
	conns  chan net.Conn
	once   sync.Once
	closed chan struct{}
}

func newMemListener() *memListener {
	return &memListener{conns: make(chan net.Conn), closed: make(chan struct{})}
}

func (l *memListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, errors.New("listener closed")
	}
}

func (l *memListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *memListener) Addr() net.Addr { return memAddr{} }

type memAddr struct{}

func (memAddr) Network() string { return "mem" }
func (memAddr) String() string  { return "mem" }

func dialInto(l *memListener) net.Conn {
	client, srv := net.Pipe()
	l.conns <- srv
	return client
}

func TestEndpointOnReloadFiresOnConfigChange(t *testing.T) {
	ep := facade.New(facade.DefaultConfig("reload-endpoint"))

	called := make(chan struct{}, 1)
	ep.OnReload(func() { called <- struct{}{} })

	ep.Control().SetConfig(map[string]any{"custom.key": "value"})

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("OnReload hook did not fire after SetConfig")
	}
}

func TestEndpointDefaultAdmissionUpdatesMetrics(t *testing.T) {
	ep := facade.New(facade.DefaultConfig("test-endpoint"))

	l := newMemListener()
	if err := ep.Server().SetPath("test-endpoint", api.PermissionUser); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if err := ep.Server().OpenWith(func(string, api.Permission) (net.Listener, error) {
		return l, nil
	}); err != nil {
		t.Fatalf("OpenWith: %v", err)
	}
	defer ep.Server().Close()

	ep.Start(nil)
	defer ep.Stop()

	conn := dialInto(l)
	defer conn.Close()

	deadline := time.After(2 * time.Second)
	for {
		snap := ep.Metrics().GetSnapshot()
		if snap[control.MetricAccepted].(int64) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("accepted metric never reached 1, got %v", snap)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
