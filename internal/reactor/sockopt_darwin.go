//go:build darwin

package reactor

import "golang.org/x/sys/unix"

const (
	unixSoReusePort = unix.SO_REUSEPORT
	// darwin has no TCP_KEEPIDLE; TCP_KEEPALIVE is the equivalent knob.
	unixTCPKeepIdle = unix.TCP_KEEPALIVE
)
