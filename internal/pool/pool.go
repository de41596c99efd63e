// Package pool implements the memory-pool external collaborator of the
// socket core: size-classed byte-slice allocation with a capacity query,
// standing in for spec.md's "memory pool" (alloc/free/capacity_of).
//
// The pool rounds requested sizes up to the next size class the same way a
// slab allocator would, and CapacityOf reports the class's true capacity so
// callers (the read-buffer binder) can use all of it rather than just the
// bytes they asked for.
package pool

import "sync"

// classes are the size-classes this pool rounds allocations up to. Chosen
// to cover small protocol headers up through the default TCP read chunk.
var classes = [...]int{512, 1024, 2048, 4096, 8192, 16384, 32768, 65536}

// Pool is a slab-classed []byte allocator backed by one sync.Pool per size
// class. Safe for concurrent use from multiple goroutines, including
// reactor completion callbacks.
type Pool struct {
	pools [len(classes)]sync.Pool
}

// New returns a ready-to-use Pool.
func New() *Pool {
	p := &Pool{}
	for i := range classes {
		class := classes[i]
		p.pools[i].New = func() any {
			b := make([]byte, class)
			return &b
		}
	}
	return p
}

func classFor(size int) int {
	for i, c := range classes {
		if size <= c {
			return i
		}
	}
	return -1
}

// Alloc returns a slice of at least size bytes; it never returns nil. The
// returned slice's length equals the class capacity, not the requested
// size; use CapacityOf (or len(b)) to see it. A size above the largest
// class gets a direct allocation of exactly size bytes.
func (p *Pool) Alloc(size int) []byte {
	idx := classFor(size)
	if idx < 0 {
		// oversized allocations fall back to a direct allocation: still a
		// valid "pool" return per spec.md ("backed by a fixed-class pool
		// (preferred) or the general allocator").
		return make([]byte, size)
	}
	b := p.pools[idx].Get().(*[]byte)
	return (*b)[:classes[idx]]
}

// Free returns b to its size class. Slices not originally returned by
// Alloc (including oversized fallback allocations) are silently dropped.
func (p *Pool) Free(b []byte) {
	idx := classFor(cap(b))
	if idx < 0 || cap(b) != classes[idx] {
		return
	}
	full := b[:cap(b)]
	p.pools[idx].Put(&full)
}

// CapacityOf reports the true capacity Alloc(size) would hand back,
// letting callers use the rounded-up space instead of just what they asked
// for (spec.md §4.3: "derive the true capacity from the allocator").
func CapacityOf(size int) int {
	idx := classFor(size)
	if idx < 0 {
		return size
	}
	return classes[idx]
}
