package corosock

import (
	"context"
	"time"

	"github.com/coro-io/corosock/internal/reactor"
	"github.com/coro-io/corosock/internal/reqarena"
)

// Connect implements spec.md §4.4 "connect(port, host)": submits a
// non-blocking connect(2) and suspends the caller until the reactor
// reports completion or the socket's deadline fires first. Exactly one of
// {completion, timeout} resumes the caller (spec.md §4.2 / invariant 2).
//
// Ownership of cleanup is asymmetric and lives entirely with whichever
// side wins or loses req.Claim, never with the caller that received the
// result: the background goroutine that issued conn.Connect keeps running
// after a timeout fires, so it — not this function — must be the one to
// free the request block and release the op (it is the only side that
// knows the OS call is actually finished). If it wins the claim (the OS
// call finished before the timer), it also disarms the still-pending
// timer, since nothing else will. If it loses (the timer already fired
// and claimed), the timer callback already disarmed/released itself, and
// the background goroutine must not touch it again — only free the
// request and release the op. This is what prevents the stale background
// goroutine from later reusing a freed, pool-recycled Request or racing
// the busy flag against a new operation on the same socket.
func (s *Socket) Connect(ctx context.Context, port int, host string) error {
	if err := s.claimOp(); err != nil {
		return err
	}

	if port < 0 || port > 65535 {
		s.releaseOp()
		return ErrInvalidArgument
	}
	prevState := s.State()
	if prevState != StateUninit && prevState != StateBound {
		s.releaseOp()
		return ErrWrongState
	}
	family := reactor.InetPton(host)
	if family == reactor.FamilyUnspecified {
		family = reactor.FamilyInet4
	}
	if err := s.ensureConn(reactor.Family(family)); err != nil {
		s.releaseOp()
		return wrap(err, "corosock: connect")
	}

	req, err := s.eng.allocRequest(reqarena.KindConnect)
	if err != nil {
		s.releaseOp()
		return err
	}
	req.Result = make(chan reqarena.Result, 1)

	s.setState(StateConnecting)

	timeoutMS := s.timeoutMillis()
	if timeoutMS > 0 {
		req.Timer = s.eng.timers.Acquire()
		timer := req.Timer
		s.eng.armTimer(timer, time.Duration(timeoutMS)*time.Millisecond, func() {
			if req.Claim.TryClaim() {
				s.eng.disarmTimer(timer)
				req.Result <- reqarena.Result{TimedOut: true, Err: ErrTimedOut}
			}
		})
	}

	conn := s.conn
	go func() {
		cerr := conn.Connect(ctx, host, port)
		won := req.Claim.TryClaim()
		if won && req.Timer != nil {
			s.eng.disarmTimer(req.Timer)
		}
		if won {
			req.Result <- reqarena.Result{Err: cerr}
		}
		s.eng.freeRequest(req)
		s.releaseOp()
	}()

	res := <-req.Result

	if res.TimedOut {
		s.eng.metrics.timeoutsTotal.Inc()
		s.setState(prevState)
		return ErrTimedOut
	}
	if res.Err != nil {
		s.setState(prevState)
		return wrap(res.Err, "corosock: connect")
	}

	s.mu.Lock()
	s.role = RoleClient
	s.mu.Unlock()
	s.setState(StateEstablished)
	return nil
}
