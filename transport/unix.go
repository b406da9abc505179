//go:build !windows

// File: transport/unix.go
// Author: momentics <momentics@gmail.com>
//
// POSIX local-stream transport on a UNIX domain socket. Grounded on the
// teacher's own practice (transport/tcp.go) of building directly on
// net.Listener/net.Conn rather than hand-rolled socket syscalls.

package transport

import (
	"net"
	"os"

	"github.com/localpath/datapath/api"
)

func listen(path string, perm api.Permission) (net.Listener, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	mode := os.FileMode(0)
	if perm.Has(api.PermissionUser) {
		mode |= 0o600
	}
	if perm.Has(api.PermissionGroup) {
		mode |= 0o060
	}
	if perm.Has(api.PermissionWorld) {
		mode |= 0o006
	}
	if mode != 0 {
		_ = os.Chmod(path, mode)
	}
	return ln, nil
}

func dial(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
