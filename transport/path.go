// File: transport/path.go
// Author: momentics <momentics@gmail.com>
//
// Endpoint Path validation shared by both platform adapters. Grounded
// on other_examples/willibrandon-steep__listener_windows.go's
// path-is-just-a-string treatment, with the length/character rejection
// rules spec.md §6 calls for.

package transport

import (
	"strings"

	"github.com/localpath/datapath/api"
)

// maxPathLen leaves headroom for the transport's own namespace prefix
// (`\\.\pipe\` on Windows is 9 characters; POSIX socket directories
// commonly reserve a comparable amount) per spec.md §6's "~10
// characters of overhead" guidance.
const maxPathLen = 108 - 10

// ValidatePath rejects empty paths, paths exceeding maxPathLen, and
// paths containing a NUL byte or backslash (reserved by the Windows
// named-pipe namespace and disallowed uniformly so a path validates the
// same way on every platform).
func ValidatePath(path string) error {
	if path == "" {
		return api.ErrInvalidPath
	}
	if len(path) > maxPathLen {
		return api.ErrInvalidPath
	}
	if strings.ContainsRune(path, 0) || strings.ContainsRune(path, '\\') {
		return api.ErrInvalidPath
	}
	for _, r := range path {
		if r < 0x20 {
			return api.ErrInvalidPath
		}
	}
	return nil
}
