// Package reqarena implements the Request Arena of spec.md §4.1: pooled
// per-operation request blocks for connect/write/shutdown, the "one per
// in-flight op" records of spec.md §3.
//
// Grounded on gaio's aiocb/sync.Pool pattern
// (other_examples/...socket515-gaio__watcher.go.go: "aiocbPool sync.Pool",
// "emptycb aiocb", cb := aiocbPool.Get().(*aiocb); *cb = aiocb{...}) and on
// the teacher's writeRequest/writeResult pair (session.go), which this
// generalizes from "one fixed shape, GC-allocated" to "pooled, reused
// across connect/write/shutdown".
package reqarena

import (
	"sync"
	"sync/atomic"

	"github.com/coro-io/corosock/internal/registry"
	"github.com/coro-io/corosock/internal/timerctl"
)

// Kind identifies which operation a Request was allocated for.
type Kind int

const (
	KindConnect Kind = iota
	KindWrite
	KindShutdown
)

// Result is the tuple a suspended operation is resumed with.
type Result struct {
	N        int
	Err      error
	TimedOut bool
}

// Request is one in-flight connect/write/shutdown's cross-callback state:
// spec.md's "Request block". It carries its own timer handle, a result
// channel standing in for "pointer to the waiting coroutine", the
// timed_out race flag, a registry anchor on the write payload, and the
// byte count.
type Request struct {
	Kind   Kind
	Result chan Result // buffered(1); nil for write_async, which never resumes
	Timer  *timerctl.Timer
	Anchor registry.Ref
	N      int32 // atomic: bytes accepted so far (write's running total)
	Claim  timerctl.Claim
	Async  bool
}

func (r *Request) reset() {
	r.Kind = 0
	r.Result = nil
	r.Timer = nil
	r.Anchor = 0
	atomic.StoreInt32(&r.N, 0)
	r.Claim.Reset()
	r.Async = false
}

// AddN atomically accumulates bytes accepted so far.
func (r *Request) AddN(n int) {
	atomic.AddInt32(&r.N, int32(n))
}

// LoadN reads the accumulated byte count.
func (r *Request) LoadN() int {
	return int(atomic.LoadInt32(&r.N))
}

// ErrOutOfMemory mirrors spec.md's "Returns null on exhaustion" contract
// for Alloc.
type errOutOfMemory struct{}

func (errOutOfMemory) Error() string { return "corosock: request arena exhausted" }

var ErrOutOfMemory error = errOutOfMemory{}

// Arena allocates and frees Request blocks from a sync.Pool, bounded by an
// optional ceiling so exhaustion can be simulated/tested the way a fixed
// C arena would exhaust (spec.md §4.1).
type Arena struct {
	pool    sync.Pool
	inUse   int64
	ceiling int64 // 0 = unbounded
}

// New returns an Arena. A ceiling of 0 means unbounded (the common case for
// production use; tests set a small ceiling to exercise ENOMEM handling).
func New(ceiling int64) *Arena {
	a := &Arena{ceiling: ceiling}
	a.pool.New = func() any { return new(Request) }
	return a
}

// Alloc returns a fresh Request for kind, or (nil, ErrOutOfMemory) once the
// ceiling is reached. Safe to call from reactor callbacks.
func (a *Arena) Alloc(kind Kind) (*Request, error) {
	if a.ceiling > 0 && atomic.AddInt64(&a.inUse, 1) > a.ceiling {
		atomic.AddInt64(&a.inUse, -1)
		return nil, ErrOutOfMemory
	}
	if a.ceiling == 0 {
		atomic.AddInt64(&a.inUse, 1)
	}
	req := a.pool.Get().(*Request)
	req.reset()
	req.Kind = kind
	return req, nil
}

// Free returns req to the pool. Called exactly once per Request, by
// whichever of {completion, timeout} is second to observe it
// (spec.md §3, "Request blocks... Lifetime").
func (a *Arena) Free(req *Request) {
	req.reset()
	a.pool.Put(req)
	atomic.AddInt64(&a.inUse, -1)
}

// InUse reports the number of currently allocated (not yet freed) request
// blocks, used to test spec.md's P5 (request leak freedom).
func (a *Arena) InUse() int64 {
	return atomic.LoadInt64(&a.inUse)
}
