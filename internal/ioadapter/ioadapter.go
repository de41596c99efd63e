// Package ioadapter implements the data_to_iovec external collaborator of
// spec.md §6: converting a host write value into a vector of I/O slices.
//
// spec.md explicitly keeps this adapter out of the core's scope ("the
// data-marshalling helper that extracts byte buffers from host values")
// but states its interface: "(iovec[], count, total_bytes, scratch?)". This
// package is that one concrete implementation, generalized from whatever
// the host embedding passes as WriteData.
package ioadapter

import (
	"errors"
	"net"
)

// BufferSource is satisfied by any host buffer object exposing its unread
// bytes directly (e.g. an rbuf.Buffer), the third accepted shape of
// spec.md's write(data) ("byte string, iterable of byte strings, or a
// buffer object").
type BufferSource interface {
	Bytes() []byte
}

// ErrUnsupported is returned for a WriteData value of a shape the adapter
// does not recognize — a programmer error per spec.md §7 class 1.
var ErrUnsupported = errors.New("corosock: unsupported write data shape")

// ToIovec converts data into a scatter/gather vector. release must be
// called by the caller on every exit path, per spec.md §4.4 write step 1
// ("it is the op's duty to free that scratch on every exit path") — for
// the slice shapes below nothing needs freeing and release is a no-op, but
// callers must not special-case that: the contract is uniform regardless
// of which branch produced the vector.
func ToIovec(data any) (bufs net.Buffers, total int, release func(), err error) {
	noop := func() {}

	switch v := data.(type) {
	case []byte:
		if len(v) == 0 {
			return net.Buffers{}, 0, noop, nil
		}
		return net.Buffers{v}, len(v), noop, nil

	case [][]byte:
		out := make(net.Buffers, 0, len(v))
		n := 0
		for _, chunk := range v {
			if len(chunk) == 0 {
				continue
			}
			out = append(out, chunk)
			n += len(chunk)
		}
		return out, n, noop, nil

	case BufferSource:
		b := v.Bytes()
		if len(b) == 0 {
			return net.Buffers{}, 0, noop, nil
		}
		return net.Buffers{b}, len(b), noop, nil

	default:
		return nil, 0, noop, ErrUnsupported
	}
}

// Trim advances bufs past n fully-or-partially accepted bytes: fully
// -consumed slices are dropped, the first partially-consumed slice is
// reslice to start where the write left off (spec.md §4.4 write step 3,
// "Advance the iovec by the partial acceptance").
func Trim(bufs net.Buffers, n int) net.Buffers {
	for n > 0 && len(bufs) > 0 {
		if n < len(bufs[0]) {
			bufs[0] = bufs[0][n:]
			return bufs
		}
		n -= len(bufs[0])
		bufs = bufs[1:]
	}
	return bufs
}

// Len reports the total remaining bytes across bufs.
func Len(bufs net.Buffers) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}
