package corosock

import (
	"sync"
	"sync/atomic"

	"github.com/coro-io/corosock/internal/rbuf"
	"github.com/coro-io/corosock/internal/reactor"
	"github.com/coro-io/corosock/internal/registry"
	"github.com/coro-io/corosock/internal/timerctl"
	"github.com/sirupsen/logrus"
)

// AcceptFunc is a server's on_connect callback (spec.md §4.4 listen).
type AcceptFunc func(child *Socket)

// Socket is spec.md §3's Socket: the user-visible handle owning the OS
// socket, current-operation state, optional deadline, and anchors into the
// (here: Go) registry keeping referenced values alive across the async
// boundary.
//
// Field-by-field mapping to spec.md §3 is documented in SPEC_FULL.md §3.
type Socket struct {
	eng *Engine

	// mu guards the handful of fields settable out-of-band (conn,
	// set_read_buffer, readTimer, anchors, role/state transitions);
	// timeoutMS and closing are atomics instead.
	// spec.md's single-reactor-thread model needs no such lock; Go's real
	// goroutine parallelism does (SPEC_FULL.md §5, Open Question (c)).
	mu sync.Mutex

	conn   *reactor.Conn
	family reactor.Family
	role   Role
	state  State

	// busy implements the one-operation-in-flight invariant (spec.md
	// invariant 1 / P1): a CAS claims it for the duration of one op.
	busy atomic.Bool

	rbuf      *rbuf.Buffer
	readTimer *timerctl.Timer
	timeoutMS int32 // atomic

	onConnectAnchor registry.Ref
	coroAnchor      registry.Ref

	closing atomic.Bool

	log *logrus.Entry
}

func (s *Socket) logger() *logrus.Entry {
	if s.log != nil {
		return s.log
	}
	return s.eng.log.WithField("component", "corosock")
}

// claimOp enforces spec.md invariant 1 / P1: at most one operation in
// flight per socket. Returns ErrBusy if another op already holds it.
func (s *Socket) claimOp() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

// releaseOp clears the one-op claim; called exactly once per claimed op,
// by whichever path finishes last with the socket — for connect, read and
// write that is the background goroutine, which may run on after a
// timeout has already resumed the caller (spec.md invariant 1).
func (s *Socket) releaseOp() {
	s.busy.Store(false)
}

func (s *Socket) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the socket's current state (spec.md §4.4 state machine).
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns the socket's role (spec.md §3).
func (s *Socket) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Fd returns the raw OS file descriptor (spec.md §6 "fd()").
func (s *Socket) Fd() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return -1, ErrWrongState
	}
	return s.conn.Fd(), nil
}

// ensureConn lazily creates the underlying OS socket for the given
// family, the first time an operation needs one (bind/connect).
func (s *Socket) ensureConn(family reactor.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	if family == reactor.FamilyUnspecified {
		family = reactor.FamilyInet4
	}
	c, err := reactor.StreamInit(family)
	if err != nil {
		return err
	}
	s.conn = c
	s.family = family
	return nil
}

// timeoutMillis reads the per-operation default deadline (spec.md §3
// timeout_ms; 0 = none).
func (s *Socket) timeoutMillis() int {
	return int(atomic.LoadInt32(&s.timeoutMS))
}
