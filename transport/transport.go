// File: transport/transport.go
// Author: momentics <momentics@gmail.com>
//
// Transport Adapter (spec §4.5): translates an Endpoint Path and
// Permission Set into a concrete net.Listener/net.Conn pair. The
// platform split mirrors the teacher's own reactor_linux.go /
// reactor_windows.go / reactor_stub.go build-tag pattern.

package transport

import (
	"net"

	"github.com/localpath/datapath/api"
)

// Listen opens a platform-native local-stream listener at path with the
// given permissions applied. Returns api.ErrInvalidPath if path fails
// validation.
func Listen(path string, perm api.Permission) (net.Listener, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return listen(path, perm)
}

// Dial connects to a platform-native local-stream endpoint at path.
// Returns api.ErrInvalidPath if path fails validation.
func Dial(path string) (net.Conn, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return dial(path)
}
