package corosock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coro-io/corosock/internal/reactor"
)

// Listen implements spec.md §4.4 "listen(on_connect, backlog)": binds (if
// not already explicitly bound), starts listening, and spawns a
// background accept loop that hands each accepted connection to onConnect
// on its own goroutine — the Go stand-in for "spawn a fresh coroutine from
// the listening socket's owning coroutine and resume it with the new
// socket" (spec.md §4.4 listen step 3).
func (s *Socket) Listen(onConnect AcceptFunc, backlog int) error {
	if onConnect == nil {
		return ErrInvalidArgument
	}
	st := s.State()
	if st != StateUninit && st != StateBound {
		return ErrWrongState
	}
	if backlog <= 0 {
		backlog = s.eng.cfg.DefaultBacklog
	}

	if err := s.ensureConn(s.family); err != nil {
		return wrap(err, "corosock: listen")
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if err := conn.Listen(backlog); err != nil {
		return wrap(err, "corosock: listen")
	}

	s.mu.Lock()
	s.role = RoleServerListening
	s.onConnectAnchor = s.eng.anchor(onConnect)
	s.mu.Unlock()
	s.setState(StateListening)

	go s.acceptLoop(conn, onConnect)
	return nil
}

// acceptLoop runs for the lifetime of a listening socket. Every accept(2)
// error is logged and retried with exponential backoff
// (github.com/cenkalti/backoff/v4) and never surfaced to the host
// (spec.md §7: accept failures are absorbed internally, not propagated).
func (s *Socket) acceptLoop(conn *reactor.Conn, onConnect AcceptFunc) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.eng.cfg.AcceptRetryBase
	bo.MaxInterval = s.eng.cfg.AcceptRetryMax
	bo.MaxElapsedTime = 0

	for {
		if s.closing.Load() {
			return
		}
		child, err := conn.Accept(context.Background())
		if err != nil {
			if s.closing.Load() {
				return
			}
			s.eng.metrics.acceptErrors.Inc()
			s.logger().WithError(err).Warn("listen: accept failed, retrying")
			time.Sleep(bo.NextBackOff())
			continue
		}
		bo.Reset()

		childSocket := s.eng.NewSocket(false)
		childSocket.mu.Lock()
		childSocket.conn = child
		childSocket.family = s.family
		childSocket.role = RoleServerAccepted
		childSocket.state = StateEstablished
		childSocket.mu.Unlock()
		// Inherit the listener's configured timeout onto the accepted
		// child (spec.md §4.4 listen step 2: "timeout_ms is inherited
		// from the listener").
		atomic.StoreInt32(&childSocket.timeoutMS, atomic.LoadInt32(&s.timeoutMS))

		// Anchors the child so it survives until onConnect returns, the way
		// spec.md's anchor_coroutine keeps a dispatched coroutine alive;
		// Go's GC would keep it alive anyway via the closure, but this
		// mirrors the spec's explicit anchor/unanchor pairing (invariant 4)
		// on the dispatch path too, not just the op-completion paths.
		keepAlive := s.eng.anchor(childSocket)
		go func() {
			defer s.eng.unanchor(keepAlive)
			onConnect(childSocket)
		}()
	}
}
