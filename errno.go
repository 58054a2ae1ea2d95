package ssocket

import (
	"errors"
	"fmt"
)

// Errno are the error codes reported by multiplexer operations.
//
// Failures of the underlying OS calls are not represented by an Errno; they
// are reported as *OpError values wrapping the system error.
type Errno uint8

const (
	ESUCCESS Errno = iota
	// EBADHANDLE means the handle is out of range or refers to a free slot.
	EBADHANDLE
	// ENOSLOT means every slot of the handle table is allocated.
	ENOSLOT
	// ENOCALLBACK means the owner of a socket does not export the receive
	// callback, so the socket cannot be armed for dispatch.
	ENOCALLBACK
	// EINVAL means an argument, such as an address or a port, is invalid.
	EINVAL
	// ECLOSED means the multiplexer was torn down.
	ECLOSED
)

var errorStrings = [...]string{
	ESUCCESS:    "OK",
	EBADHANDLE:  "invalid socket handle",
	ENOSLOT:     "no free socket slot",
	ENOCALLBACK: "no " + CallbackName + " callback",
	EINVAL:      "invalid argument",
	ECLOSED:     "multiplexer closed",
}

var errorNames = [...]string{
	ESUCCESS:    "ESUCCESS",
	EBADHANDLE:  "EBADHANDLE",
	ENOSLOT:     "ENOSLOT",
	ENOCALLBACK: "ENOCALLBACK",
	EINVAL:      "EINVAL",
	ECLOSED:     "ECLOSED",
}

func (e Errno) Error() string {
	if int(e) < len(errorStrings) {
		return errorStrings[e]
	}
	return fmt.Sprintf("ssocket errno %d", int(e))
}

// Name returns the symbolic name of the error code.
func (e Errno) Name() string {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return fmt.Sprintf("errno(%d)", int(e))
}

// OpError is the error type returned when an OS socket operation fails.
type OpError struct {
	Op     string
	Handle Handle
	Addr   SocketAddress
	Err    error
}

func (e *OpError) Error() string {
	s := e.Op + " " + e.Handle.String()
	if e.Addr != nil {
		s += " " + e.Addr.String()
	}
	return s + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, h Handle, addr SocketAddress, err error) error {
	return &OpError{Op: op, Handle: h, Addr: addr, Err: err}
}

// MakeErrno returns the Errno carried by err. The boolean is false if err
// does not carry one, which is the case of OS failures.
func MakeErrno(err error) (Errno, bool) {
	if err == nil {
		return ESUCCESS, true
	}
	var errno Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return ESUCCESS, false
}
