// File: control/endpoint.go
// Author: momentics <momentics@gmail.com>
//
// Named config keys and metric counters for a single listening
// endpoint, layered on top of the generic ConfigStore/MetricsRegistry
// below rather than duplicating their locking.

package control

import "github.com/localpath/datapath/api"

// Config keys for a Listening Server / Socket pair.
const (
	KeyListenPath   = "endpoint.path"
	KeyBacklog      = "endpoint.backlog"
	KeyPermissions  = "endpoint.permissions"
	KeyReadBufClass = "endpoint.read_buffer_class"
)

// Metric keys for an endpoint's MetricsRegistry. facade.Endpoint sets
// MetricAccepted, MetricRejected and MetricActiveSockets; nothing in
// this module updates the byte counters or the queue depth.
const (
	MetricAccepted         = "endpoint.accepted_total"
	MetricRejected         = "endpoint.rejected_total"
	MetricBytesRead        = "endpoint.bytes_read_total"
	MetricBytesWritten     = "endpoint.bytes_written_total"
	MetricActiveSockets    = "endpoint.active_sockets"
	MetricDispatcherQueued = "endpoint.dispatcher_queue_depth"
)

// EndpointConfig is a typed view over a ConfigStore for the fields a
// Listening Server needs at Open time.
type EndpointConfig struct {
	store *ConfigStore
}

// NewEndpointConfig wraps store with the named accessors below.
func NewEndpointConfig(store *ConfigStore) *EndpointConfig {
	return &EndpointConfig{store: store}
}

// Path returns the configured listen path, or "" if unset.
func (c *EndpointConfig) Path() string {
	v, _ := c.store.GetSnapshot()[KeyListenPath].(string)
	return v
}

// Backlog returns the configured backlog size, or 0 if unset.
func (c *EndpointConfig) Backlog() int {
	v, _ := c.store.GetSnapshot()[KeyBacklog].(int)
	return v
}

// Permissions returns the configured Permission Set, defaulting to
// api.PermissionUser if unset.
func (c *EndpointConfig) Permissions() api.Permission {
	v, ok := c.store.GetSnapshot()[KeyPermissions].(api.Permission)
	if !ok {
		return api.PermissionUser
	}
	return v
}

// Apply writes path, backlog, and permissions into the backing store in
// one SetConfig call, so a single OnReload listener observes the whole
// endpoint configuration atomically.
func (c *EndpointConfig) Apply(path string, backlog int, perm api.Permission) {
	c.store.SetConfig(map[string]any{
		KeyListenPath:  path,
		KeyBacklog:     backlog,
		KeyPermissions: perm,
	})
}
