//go:build linux
// +build linux

// File: dispatch/wakeup_linux.go
// Author: momentics <momentics@gmail.com>
//
// eventfd(2)-based wakeupSource: ReactorDispatcher.Push writes to the
// eventfd to make the epoll-backed reactor's Wait return immediately.

package dispatch

import (
	"golang.org/x/sys/unix"

	"github.com/localpath/datapath/reactor"
)

type eventfdWakeup struct {
	fd int
}

func newWakeupSource() (wakeupSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdWakeup{fd: fd}, nil
}

func (w *eventfdWakeup) arm(r reactor.EventReactor, userData uintptr) error {
	return r.Register(uintptr(w.fd), userData)
}

func (w *eventfdWakeup) signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	if err == unix.EAGAIN {
		// counter already non-zero, a pending wakeup is enough.
		return nil
	}
	return err
}

func (w *eventfdWakeup) drain() {
	var buf [8]byte
	unix.Read(w.fd, buf[:])
}

func (w *eventfdWakeup) close() error {
	return unix.Close(w.fd)
}
