//go:build windows
// +build windows

// File: dispatch/wakeup_windows.go
// Author: momentics <momentics@gmail.com>
//
// IOCP-native wakeupSource: ReactorDispatcher.Push calls
// PostQueuedCompletionStatus directly on the completion port, which is
// exactly what GetQueuedCompletionStatus is waiting on, so no separate
// event handle is needed on this platform.

package dispatch

import (
	"golang.org/x/sys/windows"

	"github.com/localpath/datapath/reactor"
)

type iocpWakeup struct {
	port windows.Handle
}

func newWakeupSource() (wakeupSource, error) {
	return &iocpWakeup{}, nil
}

func (w *iocpWakeup) arm(r reactor.EventReactor, userData uintptr) error {
	wr, ok := r.(interface{ Port() windows.Handle })
	if !ok {
		return windows.ERROR_INVALID_FUNCTION
	}
	w.port = wr.Port()
	return nil
}

func (w *iocpWakeup) signal() error {
	return windows.PostQueuedCompletionStatus(w.port, 0, 0, nil)
}

func (w *iocpWakeup) drain() {}

func (w *iocpWakeup) close() error {
	return nil
}
