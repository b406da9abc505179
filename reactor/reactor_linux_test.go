//go:build linux

// File: reactor/reactor_linux_test.go
package reactor

import (
	"testing"

	"golang.org/x/sys/unix"
)

// TestLinuxReactorRoundTripsUserData guards against the epoll_data_t
// union being mis-addressed (EpollEvent.Fd/Pad are its two halves —
// writing a full uintptr at the wrong one corrupts adjacent memory).
// A non-zero, non-trivial userData value exercises every byte of the
// union instead of only its zero value.
func TestLinuxReactorRoundTripsUserData(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer r.Close()

	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("Eventfd: %v", err)
	}
	defer unix.Close(fd)

	const udata = uintptr(0x1122334455667788)
	if err := r.Register(uintptr(fd), udata); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var buf [8]byte
	buf[7] = 1
	if _, err := unix.Write(fd, buf[:]); err != nil {
		t.Fatalf("Write: %v", err)
	}

	events := make([]Event, 1)
	n, err := r.Wait(events, 1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 {
		t.Fatalf("Wait returned n=%d, want 1", n)
	}
	if events[0].UserData != udata {
		t.Fatalf("UserData = %#x, want %#x", events[0].UserData, udata)
	}
}
