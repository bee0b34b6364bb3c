package result

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Code is the uniform outcome space reported by the buffering layer,
// independent of how the transport represents its own failures.
type Code int

const (
	Success Code = iota
	NoMemory
	WouldBlock
	ConnectionClosed
	InsufficientData
	NoPermission
	NotFound
	IOError
	NoSpace
	FormErr
	Exists
	InvalidArg
	NotConnected
	AlreadyRunning
	InvalidFile
	DestAddrReq
	NotImplemented
	AddrInUse
	AddrNotAvail
	NetDown
	NetUnreach
	TimedOut
	ConnReset
	ShuttingDown
	ConnRefused
	HostDown
	HostUnreach
	Quota
	VersionMismatch
	NotAuth
	Unexpected
)

var names = [...]string{
	Success:          "success",
	NoMemory:         "out of memory",
	WouldBlock:       "operation would block",
	ConnectionClosed: "connection closed",
	InsufficientData: "insufficient buffered data",
	NoPermission:     "permission denied",
	NotFound:         "not found",
	IOError:          "I/O error",
	NoSpace:          "ran out of space",
	FormErr:          "format error",
	Exists:           "already exists",
	InvalidArg:       "invalid argument",
	NotConnected:     "socket is not connected",
	AlreadyRunning:   "operation already running",
	InvalidFile:      "invalid file",
	DestAddrReq:      "destination address required",
	NotImplemented:   "not implemented",
	AddrInUse:        "address in use",
	AddrNotAvail:     "address not available",
	NetDown:          "network down",
	NetUnreach:       "network unreachable",
	TimedOut:         "timed out",
	ConnReset:        "connection reset",
	ShuttingDown:     "shutting down",
	ConnRefused:      "connection refused",
	HostDown:         "host down",
	HostUnreach:      "host unreachable",
	Quota:            "quota reached",
	VersionMismatch:  "version mismatch",
	NotAuth:          "not authorized",
	Unexpected:       "unexpected error",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(names) {
		return fmt.Sprintf("result(%d)", int(c))
	}
	return names[c]
}

func (c Code) Error() string {
	return c.String()
}

// TransportError is returned when the transport fails with an OS error.
// It unwraps to both the translated Code and the original errno.
type TransportError struct {
	Op    string
	Errno unix.Errno
	Code  Code
	Err   error
}

// NewTransportError translates err into a TransportError. Errors that do
// not carry an errno are reported as Unexpected.
func NewTransportError(op string, err error) *TransportError {
	te := &TransportError{Op: op, Code: Unexpected, Err: err}
	var errno unix.Errno
	if errors.As(err, &errno) {
		te.Errno = errno
		te.Code = Translate(errno)
	}
	return te
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Op, e.Code, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Code, e.Err}
}
