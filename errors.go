package uart

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound  = errors.New("serial device not found")
	ErrPortClosed      = errors.New("serial port is closed")
	ErrWouldBlock      = errors.New("operation would block")
	ErrTimeout         = errors.New("operation timed out")
	ErrCanceled        = errors.New("operation canceled")
	ErrActiveRead      = errors.New("read requested while in active mode")
	ErrInvalidConfig   = errors.New("invalid serial configuration")
	ErrInvalidBaudRate = errors.New("unsupported baud rate")
	ErrHangup          = errors.New("device hung up")
)

// Kind classifies a failure by the short POSIX-style reason that is
// reported to the host.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNotFound
	KindBadHandle
	KindNotPermitted
	KindAccess
	KindAgain
	KindCanceled
	KindIO
	KindInterrupted
	KindNotTTY
)

var kindAtoms = [...]string{
	KindInvalid:      "einval",
	KindNotFound:     "enoent",
	KindBadHandle:    "ebadf",
	KindNotPermitted: "eperm",
	KindAccess:       "eacces",
	KindAgain:        "eagain",
	KindCanceled:     "ecanceled",
	KindIO:           "eio",
	KindInterrupted:  "eintr",
	KindNotTTY:       "enotty",
}

// Atom returns the reason atom for the kind.
func (k Kind) Atom() string {
	if int(k) < len(kindAtoms) {
		return kindAtoms[k]
	}
	return "einval"
}

func (k Kind) String() string {
	return k.Atom()
}

// Error is an operation failure carrying its classification.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Atom())
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf classifies err. Unknown errors are KindInvalid.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case err == nil:
		return KindInvalid
	case errors.Is(err, ErrDeviceNotFound):
		return KindNotFound
	case errors.Is(err, ErrPortClosed):
		return KindBadHandle
	case errors.Is(err, ErrWouldBlock), errors.Is(err, ErrTimeout):
		return KindAgain
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	case errors.Is(err, ErrHangup):
		return KindIO
	}
	if k, ok := kindOfSystemError(err); ok {
		return k
	}
	return KindInvalid
}

// Reason returns the reason atom for err.
func Reason(err error) string {
	return KindOf(err).Atom()
}

// FatalError reports a broken caller contract, such as a second write
// issued while one is still pending. The driver shuts down when it sees one.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Reason
}

func fatalf(format string, args ...any) error {
	return &FatalError{Reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err is, or wraps, a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
