//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity via
// golang.org/x/sys/unix, replacing a cgo pthread_setaffinity_np shim:
// the syscall-level SchedSetaffinity targets the calling thread the
// same way, without a cgo/cross-compilation dependency.

package affinity

import "golang.org/x/sys/unix"

// setAffinityPlatform sets thread affinity to a given CPU for Linux.
// Must be called from the goroutine that should be pinned, after
// runtime.LockOSThread, since SchedSetaffinity(0, ...) targets the
// calling thread.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
