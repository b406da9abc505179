// File: facade/facade.go
// Author: momentics <momentics@gmail.com>
//
// Endpoint is a convenience facade wiring the Listening Server, its
// EndpointConfig, MetricsRegistry, and DebugProbes behind a single
// aggregate, in the shape of the teacher's facade.HioloadWS: immutable
// Config in, Start/Stop lifecycle, named accessors for the wired
// components.

package facade

import (
	"log"
	"sync"

	"github.com/localpath/datapath/api"
	"github.com/localpath/datapath/control"
	"github.com/localpath/datapath/runner"
	"github.com/localpath/datapath/server"
	"github.com/localpath/datapath/socket"
)

// Config holds parameters immutable for the lifetime of an Endpoint.
type Config struct {
	ListenPath  string         // Endpoint path (UNIX socket path or named pipe name).
	Permissions api.Permission // OS-level access bits applied at Open.
	Backlog     int            // Pre-warmed server-side socket count; 0 selects server.DefaultBacklog.
	Workers     int            // Number of goroutines driving Work(); 0 selects 1.
	WorkTimeout int            // Milliseconds passed to each Work() call.

	// Dispatcher builds the Server's Completion Dispatcher; nil selects
	// the portable dispatch.Dispatcher. Set to dispatch.NewReactorDispatcher
	// (or a closure around it) to drive the Server off the OS-native
	// epoll/IOCP backend instead.
	Dispatcher server.DispatcherFactory
}

// DefaultConfig returns sane defaults for a local endpoint.
func DefaultConfig(path string) *Config {
	return &Config{
		ListenPath:  path,
		Permissions: api.PermissionUser,
		Backlog:     server.DefaultBacklog,
		Workers:     1,
		WorkTimeout: 100,
	}
}

// Endpoint aggregates a Server with its config/metrics/debug surface.
type Endpoint struct {
	config   *Config
	store    *control.ConfigStore
	endpoint *control.EndpointConfig
	metrics  *control.MetricsRegistry
	debug    *control.DebugProbes

	srv    *server.Server
	runner *runner.Runner

	mu      sync.Mutex
	started bool
}

// New constructs an Endpoint from cfg, wiring its Server to the
// MetricsRegistry but not yet opening the listener (see Open).
func New(cfg *Config) *Endpoint {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = server.DefaultBacklog
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	store := control.NewConfigStore()
	endpointCfg := control.NewEndpointConfig(store)
	endpointCfg.Apply(cfg.ListenPath, cfg.Backlog, cfg.Permissions)

	e := &Endpoint{
		config:   cfg,
		store:    store,
		endpoint: endpointCfg,
		metrics:  control.NewMetricsRegistry(),
		debug:    control.NewDebugProbes(),
		srv:      server.NewWithDispatcher(cfg.Backlog, cfg.Dispatcher),
	}
	control.RegisterPlatformProbes(e.debug)
	e.debug.RegisterProbe("endpoint.free_count", func() any { return e.srv.FreeCount() })
	e.debug.RegisterProbe("endpoint.admitted_count", func() any { return e.srv.AdmittedCount() })
	e.metrics.Set(control.MetricAccepted, int64(0))
	e.metrics.Set(control.MetricRejected, int64(0))
	e.metrics.Set(control.MetricActiveSockets, int64(0))

	e.srv.Connected.On(e.onConnected)
	return e
}

// onConnected is the default admission policy: admit every connection
// and count it in the accepted and active-socket metrics. It counts a
// connection as accepted even if a later listener sets *Allow to false,
// and never changes MetricRejected, which stays at 0. Listeners fire in
// registration order, and this one is registered first inside New, so
// callers that need their own admission policy should register an
// additional Connected listener via Server() before calling Open and
// overwrite *c.Allow there.
func (e *Endpoint) onConnected(c server.Connected) {
	*c.Allow = true
	e.metrics.Set(control.MetricAccepted, e.metrics.GetSnapshot()[control.MetricAccepted].(int64)+1)
	e.metrics.Set(control.MetricActiveSockets, e.metrics.GetSnapshot()[control.MetricActiveSockets].(int64)+1)
	c.Socket.Closed.On(func(socket.Closed) {
		// Socket.Closed fires before Server.OnSocketClosed decrements
		// AdmittedCount, so reading AdmittedCount here would publish a
		// stale, one-too-high count; adjust the running tally instead.
		e.metrics.Set(control.MetricActiveSockets, e.metrics.GetSnapshot()[control.MetricActiveSockets].(int64)-1)
	})
}

// Server returns the underlying Server so callers can register their
// own Connected listener (to override admission) or call Read/Write on
// admitted sockets directly.
func (e *Endpoint) Server() *server.Server { return e.srv }

// Control returns the config store backing this endpoint.
func (e *Endpoint) Control() *control.ConfigStore { return e.store }

// Metrics returns the metrics registry backing this endpoint.
func (e *Endpoint) Metrics() *control.MetricsRegistry { return e.metrics }

// Debug returns the debug probe registry backing this endpoint.
func (e *Endpoint) Debug() *control.DebugProbes { return e.debug }

// OnReload registers fn against this endpoint's own ConfigStore and
// against the process-wide hot-reload registry, so fn runs when this
// endpoint's config changes and also whenever control.TriggerHotReload
// or control.TriggerHotReloadSync is called, mirroring the teacher's
// ControlAdapter.OnReload double-registration.
func (e *Endpoint) OnReload(fn func()) {
	e.store.OnReload(fn)
	control.RegisterReloadHook(fn)
}

// Open configures and opens the Server's listener.
func (e *Endpoint) Open() error {
	if err := e.srv.SetPath(e.endpoint.Path(), e.endpoint.Permissions()); err != nil {
		return err
	}
	if err := e.srv.Open(); err != nil {
		return err
	}
	log.Printf("facade: endpoint open on %q (backlog=%d)", e.endpoint.Path(), e.endpoint.Backlog())
	return nil
}

// Start begins driving the Server's Work loop from Workers goroutines,
// optionally pinned by affinityFn (see affinity.SetAffinity). No-op if
// already started.
func (e *Endpoint) Start(affinityFn func(workerIndex int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.runner = runner.New(e.srv.Work, e.config.WorkTimeout)
	e.runner.Start(e.config.Workers, affinityFn)
	e.started = true
}

// Stop halts the Work loop goroutines and closes the Server.
func (e *Endpoint) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	err := e.srv.Close()
	e.runner.Stop()
	e.started = false
	log.Printf("facade: endpoint closed on %q", e.endpoint.Path())
	return err
}
