//go:build !linux && !darwin

package reactor

import (
	"context"
	"errors"
	"net"
)

// ErrUnsupportedPlatform is returned by every Conn operation on platforms
// without a reactor backend. spec.md's Non-goals exclude multi-platform
// portability work; Linux and Darwin (the two raw-socket-syscall families
// the rest of the pack targets, e.g. jacobsa-fuse's darwin/linux build
// tags) are the supported set.
var ErrUnsupportedPlatform = errors.New("corosock: reactor not implemented for this platform")

type Conn struct{}

func StreamInit(family Family) (*Conn, error) { return nil, ErrUnsupportedPlatform }

func (c *Conn) Bind(host string, port int, reusePort bool) error { return ErrUnsupportedPlatform }
func (c *Conn) Listen(backlog int) error                         { return ErrUnsupportedPlatform }
func (c *Conn) Accept(ctx context.Context) (*Conn, error)        { return nil, ErrUnsupportedPlatform }
func (c *Conn) Connect(ctx context.Context, host string, port int) error {
	return ErrUnsupportedPlatform
}
func (c *Conn) TryWriteOnce(bufs net.Buffers) (int, error) { return 0, ErrUnsupportedPlatform }
func (c *Conn) Write2(ctx context.Context, bufs net.Buffers) (int, error) {
	return 0, ErrUnsupportedPlatform
}
func (c *Conn) ReadOnce(ctx context.Context, buf []byte) (int, error) {
	return 0, ErrUnsupportedPlatform
}
func (c *Conn) TryReadOnce(buf []byte) (int, error)       { return 0, ErrUnsupportedPlatform }
func (c *Conn) Shutdown() error                           { return ErrUnsupportedPlatform }
func (c *Conn) Close() error                              { return nil }
func (c *Conn) IsClosing() bool                           { return true }
func (c *Conn) Fd() int                                   { return -1 }
func (c *Conn) TCPNoDelay(enable bool) error              { return ErrUnsupportedPlatform }
func (c *Conn) TCPKeepAlive(enable bool, delay int) error { return ErrUnsupportedPlatform }
func (c *Conn) GetSockName() (*Addr, error)               { return nil, ErrUnsupportedPlatform }
func (c *Conn) GetPeerName() (*Addr, error)               { return nil, ErrUnsupportedPlatform }
