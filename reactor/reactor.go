// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event reactor interface for cross-platform IO multiplexing.

package reactor

// EventReactor defines basic reactor operations across OS platforms.
type EventReactor interface {
	// Register an FD (epoll) or HANDLE (Windows) for IO notifications.
	Register(fd uintptr, userData uintptr) error

	// Wait blocks up to timeoutMs milliseconds for events and writes
	// them into the output slice. timeoutMs < 0 blocks indefinitely.
	// Returns the number of events written, or (0, nil) on timeout.
	Wait(events []Event, timeoutMs int) (n int, err error)

	// Close cleans up resources (handle/epfd).
	Close() error
}

// Event contains event information returned by Wait call.
type Event struct {
	Fd       uintptr // Linux: same value as UserData; Windows: the OVERLAPPED pointer.
	UserData uintptr // User-provided data.
}
