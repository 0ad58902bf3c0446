// Package protoerr classifies everything that can go wrong between the socket
// and a handler. Every class except ErrUnknownOpcode closes the connection.
package protoerr

import (
	"errors"
	"fmt"
)

var (
	ErrFraming        = errors.New("framing error")
	ErrCompression    = errors.New("compression error")
	ErrDecryption     = errors.New("decryption error")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrStateViolation = errors.New("protocol state violation")
	ErrAuth           = errors.New("authentication failure")
	ErrProxyHeader    = errors.New("proxy header error")
	ErrEncoder        = errors.New("encoder error")
	ErrReassembly     = errors.New("multi-part reassembly error")
	ErrTimeout        = errors.New("timed out")
)

// Error pairs a class with the reason that is safe to show the client. Err
// holds the detail that only ends up in server logs.
type Error struct {
	Class  error
	Reason string
	Err    error
}

func New(class error, reason string, err error) *Error {
	return &Error{Class: class, Reason: reason, Err: err}
}

// Newf builds an Error whose detail is a formatted message.
func Newf(class error, reason string, format string, args ...any) *Error {
	return &Error{Class: class, Reason: reason, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Class.Error()
	}
	return e.Class.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// Fatal reports whether err must close the connection. Errors that carry no
// class are fatal too.
func Fatal(err error) bool {
	return err != nil && !errors.Is(err, ErrUnknownOpcode)
}

// Reason returns the client-facing text for err. Unclassified errors get a
// generic message so internals never leak to the peer.
func Reason(err error) string {
	var perr *Error
	if errors.As(err, &perr) && perr.Reason != "" {
		return perr.Reason
	}
	switch {
	case errors.Is(err, ErrTimeout):
		return "Timed out"
	case errors.Is(err, ErrProxyHeader):
		return "Invalid proxy data"
	case errors.Is(err, ErrAuth):
		return "Failed to verify username!"
	case errors.Is(err, ErrStateViolation):
		return "Unexpected packet"
	default:
		return "Internal protocol error"
	}
}
