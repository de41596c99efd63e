package corosock

import (
	"context"

	"github.com/coro-io/corosock/internal/reqarena"
)

// Shutdown implements spec.md §4.4 "shutdown()": a write-half half-close,
// submitted through the same Request/suspend mechanism as connect/write
// but, per spec.md, carrying no deadline timer of its own.
func (s *Socket) Shutdown(ctx context.Context) error {
	if err := s.claimOp(); err != nil {
		return err
	}
	defer s.releaseOp()

	if s.State() != StateEstablished {
		return ErrWrongState
	}

	req, err := s.eng.allocRequest(reqarena.KindShutdown)
	if err != nil {
		return err
	}
	req.Result = make(chan reqarena.Result, 1)

	s.setState(StateShuttingDown)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	go func() {
		serr := conn.Shutdown()
		if req.Claim.TryClaim() {
			req.Result <- reqarena.Result{Err: serr}
		}
	}()

	res := <-req.Result
	s.eng.freeRequest(req)

	if res.Err != nil {
		return wrap(res.Err, "corosock: shutdown")
	}
	return nil
}
