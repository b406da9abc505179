// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Closed error taxonomy shared by every component of the core: completion
// records, sockets, and servers all report failures through this sum type
// rather than ad-hoc errors, so callbacks and synchronous return values
// speak the same vocabulary.

package api

import "fmt"

// Code enumerates the library's closed error taxonomy. Every I/O-facing
// operation in the core resolves to exactly one of these.
type Code int32

const (
	// CodeOK indicates success.
	CodeOK Code = iota
	// CodeUnknown is an uncategorized OS-level error.
	CodeUnknown
	// CodeFailure is a recoverable generic error; the caller may retry.
	CodeFailure
	// CodeCriticalFailure means the owning object is now in an undefined
	// state and must be closed.
	CodeCriticalFailure
	// CodeTimedOut means a bounded wait elapsed with no progress.
	CodeTimedOut
	// CodeNotSupported means the operation is invalid in the object's
	// current state.
	CodeNotSupported
	// CodeSocketClosed means the peer disconnected, the transport broke,
	// or Close was called locally.
	CodeSocketClosed
	// CodeInvalidPath means SetPath rejected its argument.
	CodeInvalidPath
	// CodeBadHeader means a framed read received fewer than 4 header
	// bytes.
	CodeBadHeader
	// CodeBadSize means the header declared a length exceeding
	// wire.MaxPayload.
	CodeBadSize
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeUnknown:
		return "unknown"
	case CodeFailure:
		return "failure"
	case CodeCriticalFailure:
		return "critical-failure"
	case CodeTimedOut:
		return "timed-out"
	case CodeNotSupported:
		return "not-supported"
	case CodeSocketClosed:
		return "socket-closed"
	case CodeInvalidPath:
		return "invalid-path"
	case CodeBadHeader:
		return "bad-header"
	case CodeBadSize:
		return "bad-size"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned and delivered to callbacks
// throughout the core. It always carries a Code so callers can branch on
// taxonomy rather than string-matching.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an *Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Sentinel errors for the common cases, usable with errors.Is since
// (*Error) carries no per-instance state that would break identity
// comparison for these package-level values.
var (
	ErrNotSupported    = NewError(CodeNotSupported, "operation not valid in current state")
	ErrSocketClosed    = NewError(CodeSocketClosed, "socket closed")
	ErrInvalidPath     = NewError(CodeInvalidPath, "invalid endpoint path")
	ErrBadHeader       = NewError(CodeBadHeader, "short packet header")
	ErrBadSize         = NewError(CodeBadSize, "packet exceeds maximum size")
	ErrTimedOut        = NewError(CodeTimedOut, "wait timed out")
	ErrFailure         = NewError(CodeFailure, "operation failed")
	ErrCriticalFailure = NewError(CodeCriticalFailure, "object is in an undefined state")
)

// CodeOf extracts the Code carried by err, defaulting to CodeUnknown for
// errors that did not originate in this package and CodeOK for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknown
}
