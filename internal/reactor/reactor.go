// Package reactor implements the Reactor external collaborator of
// spec.md §6: stream_init, bind, listen, accept, connect, read/write,
// shutdown, close, nodelay/keepalive, getsockname/getpeername, and
// inet_pton.
//
// spec.md treats the reactor/OS-poller as an out-of-scope external
// collaborator with only its interface stated; this package is the one
// concrete implementation a runnable module needs. It uses raw,
// non-blocking socket syscalls (golang.org/x/sys/unix) for the operations
// themselves, and — rather than hand-rolling a private epoll loop the way
// a proactor library like gaio does
// (other_examples/...socket515-gaio__watcher.go.go) — rides the Go
// runtime's own netpoller for *waiting*, via (*os.File).SyscallConn's
// RawConn, the same pattern
// other_examples/...moby-moby__vendor-...mdlayher-socket-conn.go.go uses.
// The runtime's poller is, quite literally, "the event-reactor/OS-poller"
// spec.md lists as an external collaborator.
package reactor

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// Errno is a negative, errno-shaped status code, matching spec.md §6's
// "Reported as negative integers matching the reactor's errno space."
type Errno int32

func (e Errno) Error() string {
	if e == ErrnoEOF {
		return "EOF"
	}
	return unix.Errno(-e).Error()
}

// ErrnoEOF mirrors libuv's UV_EOF sentinel: a negative code that is not a
// real system errno, used for the reactor's "stream-end" signal
// (spec.md §6: "plus EOF surfaced as the reactor's stream-end code").
const ErrnoEOF Errno = -4095

// Notable sentinels named directly in spec.md §6.
const (
	ENOMEM    Errno = Errno(-int32(unix.ENOMEM))
	ETIMEDOUT Errno = Errno(-int32(unix.ETIMEDOUT))
	EINVAL    Errno = Errno(-int32(unix.EINVAL))
)

// ToErrno converts a Go error into the negative errno-style code the host
// surface returns. Unrecognized errors map to EINVAL.
func ToErrno(err error) Errno {
	if err == nil {
		return 0
	}
	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}
	var uerr unix.Errno
	if errors.As(err, &uerr) {
		return Errno(-int32(uerr))
	}
	return EINVAL
}

// Family identifies the socket address family (spec.md's is_ip classifier
// result doubles as the family selector for stream_init).
type Family int

const (
	FamilyUnspecified Family = 0
	FamilyInet4       Family = 4
	FamilyInet6       Family = 6
)

// InetPton classifies s as spec.md's is_ip does: 0 if it is not a literal
// IPv4/IPv6 address (hostnames are rejected, not resolved — spec.md §4.4
// bind: "rejects hostnames"), 4 or 6 otherwise.
func InetPton(s string) Family {
	ip := net.ParseIP(s)
	if ip == nil {
		return FamilyUnspecified
	}
	if ip.To4() != nil {
		return FamilyInet4
	}
	return FamilyInet6
}

// Addr is the family/host/port triple spec.md's address helpers return.
type Addr struct {
	Family Family
	Host   string
	Port   int
}
