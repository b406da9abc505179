//go:build !linux && !windows
// +build !linux,!windows

// File: dispatch/wakeup_stub.go
// Author: momentics <momentics@gmail.com>
//
// No native reactor wakeup primitive on this platform; callers should
// use the portable Dispatcher instead of NewReactorDispatcher here.

package dispatch

import "errors"

func newWakeupSource() (wakeupSource, error) {
	return nil, errors.New("dispatch: no reactor wakeup source for this platform")
}
