// Package rbuf implements the Read-Buffer Binder of spec.md §4.3: a byte
// ring the kernel fills, lazily allocated from internal/pool, with
// write_pos advanced on each chunk and read_pos advanced only by the host
// as it consumes data.
package rbuf

import "github.com/coro-io/corosock/internal/pool"

// Buffer is one read buffer bound to a socket via set_read_buffer. Capacity
// is 0 until the first fill, matching spec.md's "capacity (0 until first
// use)".
type Buffer struct {
	size     int // size hint, in bytes, requested at construction
	capacity int // 0 until first allocation; then the pool's true capacity
	start    []byte
	readPos  int
	writePos int
}

// NewBuffer returns an unallocated Buffer with the given size hint.
func NewBuffer(sizeHint int) *Buffer {
	return &Buffer{size: sizeHint}
}

// Bound reports whether the buffer has ever been allocated.
func (b *Buffer) Bound() bool { return b.capacity > 0 }

// Capacity returns the buffer's true capacity (0 if never allocated).
func (b *Buffer) Capacity() int { return b.capacity }

// ReadPos / WritePos expose the cursors for host-side compaction and for
// tests asserting spec.md's P6 (start <= read_pos <= write_pos <= end).
func (b *Buffer) ReadPos() int  { return b.readPos }
func (b *Buffer) WritePos() int { return b.writePos }

// Bytes returns the unread slice [read_pos, write_pos).
func (b *Buffer) Bytes() []byte {
	if b.start == nil {
		return nil
	}
	return b.start[b.readPos:b.writePos]
}

// ConsumeRead advances read_pos by n, the host's half of the contract
// ("compaction is the host's responsibility via read_pos" — spec.md
// §4.3). n must not move read_pos past write_pos.
func (b *Buffer) ConsumeRead(n int) {
	b.readPos += n
	if b.readPos > b.writePos {
		b.readPos = b.writePos
	}
}

// Binder implements the reactor's "give me a buffer" callback contract: on
// each invocation, ensure the buffer is allocated (lazily, from p, sized by
// the hint given at construction) and return the fill slice
// [write_pos, end) the kernel may write into.
type Binder struct {
	pool *pool.Pool
}

// NewBinder returns a Binder backed by p.
func NewBinder(p *pool.Pool) *Binder {
	return &Binder{pool: p}
}

// ErrAlloc is returned by FillSlice when the pool cannot satisfy the
// allocation (spec.md §4.3: "On allocation failure: stop the read, release
// the read timer, and resume the coroutine with ENOMEM").
type errAlloc struct{}

func (errAlloc) Error() string { return "corosock: read buffer allocation failed" }

var ErrAlloc error = errAlloc{}

// FillSlice returns the slice the kernel should read into, allocating the
// buffer from the pool on first use. Never shrinks or compacts an already
// -bound buffer.
func (bd *Binder) FillSlice(b *Buffer) ([]byte, error) {
	if b.capacity == 0 {
		size := b.size
		if size <= 0 {
			size = 4096
		}
		alloc := bd.pool.Alloc(size)
		if alloc == nil {
			return nil, ErrAlloc
		}
		b.start = alloc
		b.capacity = pool.CapacityOf(size)
		if len(b.start) != b.capacity {
			// pool guarantees len==cap for Alloc's return; defensive only.
			b.start = b.start[:b.capacity]
		}
		b.readPos = 0
		b.writePos = 0
	}
	return b.start[b.writePos:b.capacity], nil
}

// Advance moves write_pos forward by n after a successful read of n>0
// bytes (spec.md §4.3). write_pos never decreases (P6).
func (bd *Binder) Advance(b *Buffer, n int) {
	b.writePos += n
	if b.writePos > b.capacity {
		b.writePos = b.capacity
	}
}
