//go:build linux || darwin

package reactor

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/sagernet/sing/common/bufio"
	"golang.org/x/sys/unix"
)

// Conn wraps one OS socket fd, the spec.md "OS stream handle registered
// with the reactor". The underlying fd is non-blocking; waiting for
// readiness rides the Go runtime netpoller via SyscallConn's RawConn.
type Conn struct {
	fd   int
	file *os.File
	raw  syscall.RawConn
}

// StreamInit creates a non-blocking TCP socket of the given family
// (spec.md §6 "stream_init").
func StreamInit(family Family) (*Conn, error) {
	domain := unix.AF_INET
	if family == FamilyInet6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return newConn(fd)
}

func newConn(fd int) (*Conn, error) {
	f := os.NewFile(uintptr(fd), "corosock-socket")
	raw, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Conn{fd: fd, file: f, raw: raw}, nil
}

func sockaddr(family Family, host string, port int) (unix.Sockaddr, error) {
	ip := net.ParseIP(host)
	if host == "" {
		ip = net.IPv4zero
	}
	if ip == nil {
		return nil, EINVAL
	}
	if family == FamilyInet6 || (ip.To4() == nil && ip.To16() != nil) {
		var a unix.SockaddrInet6
		copy(a.Addr[:], ip.To16())
		a.Port = port
		return &a, nil
	}
	var a unix.SockaddrInet4
	v4 := ip.To4()
	if v4 == nil {
		return nil, EINVAL
	}
	copy(a.Addr[:], v4)
	a.Port = port
	return &a, nil
}

// Bind implements spec.md §6's "bind", including SO_REUSEPORT support
// (spec.md §8 scenario 5).
func (c *Conn) Bind(host string, port int, reusePort bool) error {
	family := FamilyInet4
	if InetPton(host) == FamilyInet6 {
		family = FamilyInet6
	}
	sa, err := sockaddr(family, host, port)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if reusePort {
		if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unixSoReusePort, 1); err != nil {
			return err
		}
	}
	return unix.Bind(c.fd, sa)
}

// Listen implements spec.md §6's "listen" (the raw OS call; the accept
// callback wiring lives in the corosock package's Listen op).
func (c *Conn) Listen(backlog int) error {
	return unix.Listen(c.fd, backlog)
}

// Accept blocks (parking the calling goroutine, not an OS thread) until a
// connection is pending, then accepts exactly one (spec.md §6 "accept").
func (c *Conn) Accept(ctx context.Context) (*Conn, error) {
	var nfd int
	var acceptErr error
	err := c.raw.Read(func(fd uintptr) bool {
		nfd, _, acceptErr = unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		return acceptErr != unix.EAGAIN
	})
	if err != nil {
		return nil, err
	}
	if acceptErr != nil {
		return nil, acceptErr
	}
	return newConn(nfd)
}

// Connect implements spec.md §6's "connect": issues a non-blocking
// connect(2), then waits for the socket to become writable and checks
// SO_ERROR, the standard non-blocking connect idiom.
func (c *Conn) Connect(ctx context.Context, host string, port int) error {
	family := FamilyInet4
	if InetPton(host) == FamilyInet6 {
		family = FamilyInet6
	}
	sa, err := sockaddr(family, host, port)
	if err != nil {
		return err
	}

	err = unix.Connect(c.fd, sa)
	if err == nil {
		return nil // connected immediately (e.g. to a local listener)
	}
	if err != unix.EINPROGRESS {
		return err
	}

	var sockErr error
	werr := c.raw.Write(func(fd uintptr) bool {
		val, gerr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			sockErr = gerr
			return true
		}
		if val != 0 {
			sockErr = unix.Errno(val)
		}
		return true
	})
	if werr != nil {
		return werr
	}
	return sockErr
}

// TryWriteOnce is the non-blocking single try_write attempt of spec.md
// §4.4 write step 2: it makes one non-blocking pass over bufs via
// writevOnce and returns immediately, never waiting for writability.
func (c *Conn) TryWriteOnce(bufs net.Buffers) (n int, err error) {
	ctrlErr := c.raw.Control(func(fd uintptr) {
		n, err = writevOnce(int(fd), bufs)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return n, err
}

// Write2 submits the (already try_write-trimmed) remainder of a write,
// blocking the calling goroutine (parked on the netpoller, not an OS
// thread) until it is all accepted or ctx is done (spec.md §6 "write2").
//
// Unlike TryWriteOnce, this path is allowed to wait, so it hands off to
// sing's vectorised writer (github.com/sagernet/sing/common/bufio) over
// the socket's *os.File — the same helper the teacher's sendLoop uses in
// session.go — rather than looping raw syscalls itself; (*os.File).Write
// on a non-blocking fd already parks the calling goroutine on the
// runtime's poller instead of busy-retrying, and sing negotiates a real
// writev(2) across bufs when the underlying writer supports it.
func (c *Conn) Write2(ctx context.Context, bufs net.Buffers) (n int, err error) {
	if len(bufs) == 0 {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	bw, ok := bufio.CreateVectorisedWriter(c.file)
	if ok {
		n, err = bufio.WriteVectorised(bw, bufs)
		return n, err
	}
	for _, b := range bufs {
		wn, werr := c.file.Write(b)
		n += wn
		if werr != nil {
			return n, werr
		}
	}
	return n, nil
}

// writevOnce performs a single non-blocking attempt to drain bufs,
// sequentially across slices, stopping at the first short write, EAGAIN,
// or error — an approximation of a single writev(2) call built from
// repeated non-blocking write(2)s; writability is not checked first
// (spec.md §4.4 write step 2: "Attempt a single non-blocking try_write
// across the full iovec").
func writevOnce(fd int, bufs net.Buffers) (int, error) {
	total := 0
	for _, b := range bufs {
		for len(b) > 0 {
			n, err := unix.Write(fd, b)
			if n > 0 {
				total += n
			}
			if err != nil {
				return total, err
			}
			if n < len(b) {
				// short, non-blocking write: the socket's send buffer is
				// full; stop here rather than spin.
				return total, unix.EAGAIN
			}
			b = b[n:]
		}
	}
	return total, nil
}

// ReadOnce waits (via the netpoller) for the socket to become readable and
// performs exactly one read(2) into buf. True EOF (the peer closed) is
// returned as (0, io.EOF); spec.md's "nread==0 (EAGAIN-equivalent): ignore,
// keep reading" is a libuv-level quirk absorbed internally here — EAGAIN
// never reaches the caller because RawConn.Read retries on it.
func (c *Conn) ReadOnce(ctx context.Context, buf []byte) (int, error) {
	var n int
	var rerr error
	err := c.raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), buf)
		return rerr != unix.EAGAIN
	})
	if err != nil {
		return 0, err
	}
	if rerr != nil {
		return 0, rerr
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// TryReadOnce is a single non-blocking read(2) attempt that never parks
// the calling goroutine: it reports unix.EAGAIN instead of waiting. Used
// to drain additional already-buffered bytes within the same Read()
// resume after the initial (blocking) ReadOnce succeeds, without
// suspending the coroutine a second time (spec.md §4.4 Supplemented:
// half-closed-peer-with-buffered-data resolution).
func (c *Conn) TryReadOnce(buf []byte) (n int, err error) {
	ctrlErr := c.raw.Control(func(fd uintptr) {
		n, err = unix.Read(int(fd), buf)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Shutdown implements spec.md §6's "shutdown" (write-half only, matching
// the stream-socket half-close the spec's shutdown op models).
func (c *Conn) Shutdown() error {
	return unix.Shutdown(c.fd, unix.SHUT_WR)
}

// Close implements spec.md §6's "close".
func (c *Conn) Close() error {
	return c.file.Close()
}

// IsClosing reports whether the fd has already been closed locally.
func (c *Conn) IsClosing() bool {
	// RawConn.Control fails once the *os.File has been closed.
	return c.file == nil || c.raw.Control(func(uintptr) {}) != nil
}

// Fd returns the raw file descriptor (spec.md §6 "fd()").
func (c *Conn) Fd() int { return c.fd }

// TCPNoDelay implements spec.md §6's "tcp_nodelay".
func (c *Conn) TCPNoDelay(enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// TCPKeepAlive implements spec.md §6's "tcp_keepalive".
func (c *Conn) TCPKeepAlive(enable bool, delaySeconds int) error {
	v := 0
	if enable {
		v = 1
	}
	if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v); err != nil {
		return err
	}
	if !enable {
		return nil
	}
	return unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unixTCPKeepIdle, delaySeconds)
}

// GetSockName implements spec.md §6's "getsockname".
func (c *Conn) GetSockName() (*Addr, error) {
	sa, err := unix.Getsockname(c.fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToAddr(sa)
}

// GetPeerName implements spec.md §6's "getpeername".
func (c *Conn) GetPeerName() (*Addr, error) {
	sa, err := unix.Getpeername(c.fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToAddr(sa)
}

func sockaddrToAddr(sa unix.Sockaddr) (*Addr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &Addr{Family: FamilyInet4, Host: net.IP(v.Addr[:]).String(), Port: v.Port}, nil
	case *unix.SockaddrInet6:
		return &Addr{Family: FamilyInet6, Host: net.IP(v.Addr[:]).String(), Port: v.Port}, nil
	default:
		return nil, fmt.Errorf("corosock: unsupported sockaddr type %T", sa)
	}
}
