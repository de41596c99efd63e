package corosock

import (
	"github.com/coro-io/corosock/internal/reqarena"
	"github.com/pkg/errors"
)

// Programmer errors (spec.md §7 class 1): wrong argument values, contract
// violations. These are bugs, not recoverable conditions — an embedding
// VM binding turns them into the scripting language's exception
// mechanism, exactly as spec.md's boundary describes.
var (
	ErrInvalidArgument  = errors.New("corosock: invalid argument")
	ErrBusy             = errors.New("corosock: socket already has an operation in flight")
	ErrAlreadyClosing   = errors.New("corosock: close already initiated")
	ErrNoReadBuffer     = errors.New("corosock: read called with no read buffer bound")
	ErrWrongState       = errors.New("corosock: operation not valid in the socket's current state")
	ErrKeepAliveNoDelay = errors.New("corosock: keepalive enable=true requires a delay")
)

// Asynchronous completion / synchronous I/O sentinels (spec.md §7 classes
// 2 and 3). ErrOutOfMemory is re-exported from internal/reqarena so
// callers don't need to import it directly; the other two are defined
// here.
var (
	ErrOutOfMemory error = reqarena.ErrOutOfMemory
	ErrTimedOut    error = errTimedOut{}
	ErrEOF         error = errEOF{}
)

type errTimedOut struct{}

func (errTimedOut) Error() string { return "corosock: operation timed out" }

type errEOF struct{}

func (errEOF) Error() string { return "corosock: EOF" }

// wrap annotates err with call-site context using pkg/errors, preserving
// errors.Is/As against the sentinels above (errors.Wrap keeps the
// original error reachable via Cause/Unwrap).
func wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}
