//go:build linux

package reactor

import "golang.org/x/sys/unix"

const (
	unixSoReusePort = unix.SO_REUSEPORT
	unixTCPKeepIdle = unix.TCP_KEEPIDLE
)
