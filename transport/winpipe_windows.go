//go:build windows

// File: transport/winpipe_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows named-pipe transport. Grounded directly on
// other_examples/willibrandon-steep__listener_windows.go's use of
// github.com/Microsoft/go-winio.

package transport

import (
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/localpath/datapath/api"
)

func listen(path string, perm api.Permission) (net.Listener, error) {
	config := &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor(perm),
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	}
	return winio.ListenPipe(path, config)
}

func dial(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}

// securityDescriptor maps a Permission Set onto a Win32 SDDL string.
// User-only narrows to creator/owner; Group or World widens the DACL to
// authenticated users or everyone respectively. This is the expression
// of the Permission Set the transport is responsible for (spec.md §11);
// actual enforcement remains the OS's.
func securityDescriptor(perm api.Permission) string {
	switch {
	case perm.Has(api.PermissionWorld):
		return "D:(A;;GA;;;WD)"
	case perm.Has(api.PermissionGroup):
		return "D:(A;;GA;;;AU)"
	default:
		return ""
	}
}
