package signals

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Error kinds. Use errors.Is to classify an error returned by this package.
var (
	ErrTableExhausted  = errors.New("signal table exhausted")
	ErrHandlerInstall  = errors.New("signal handler installation failed")
	ErrLockAcquisition = errors.New("lock acquisition failed")
	ErrPipeSetup       = errors.New("notification pipe setup failed")
	ErrInvalidHandle   = errors.New("invalid waiter handle")
	ErrRestore         = errors.New("previous signal disposition not restored")
	ErrWait            = errors.New("readiness poll failed")
)

// Error describes a failed signal table operation.
type Error struct {
	Op     string
	Signal syscall.Signal
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Signal != 0 {
		msg += " " + Name(e.Signal)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + DescribeErrno(e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DescribeErrno renders err for diagnostics. Errno values are prefixed with
// their symbolic name, e.g. "EMFILE: too many open files".
func DescribeErrno(err error) string {
	if errno, ok := err.(syscall.Errno); ok {
		if name := unix.ErrnoName(errno); name != "" {
			return fmt.Sprintf("%s: %s", name, errno.Error())
		}
	}
	return err.Error()
}
