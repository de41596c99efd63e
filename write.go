package corosock

import (
	"context"
	"net"
	"time"

	"github.com/coro-io/corosock/internal/ioadapter"
	"github.com/coro-io/corosock/internal/reqarena"
	"github.com/coro-io/corosock/internal/timerctl"
	"golang.org/x/sys/unix"
)

// WriteData is the union spec.md §4.4 write(data) accepts: a byte string,
// an iterable of byte strings, or a buffer object — see
// internal/ioadapter.ToIovec for the concrete shapes recognized.
type WriteData = any

// Write implements spec.md §4.4 "write(data)": a single non-blocking
// try_write attempt across the full iovec, and — if anything remains —
// one submission of the trimmed remainder that suspends the caller until
// it is all accepted, an error occurs, or the deadline fires first
// (resolves spec.md §9 Open Question (a): one submission, not a
// multi-submission scheme).
//
// Cleanup of the submitted Request/timer/anchor is owned entirely by the
// background goroutine that issued conn.Write2, not by this function: a
// timeout only resumes the caller early, it does not stop that goroutine,
// which keeps writing into bufs until the kernel accepts it all or errors.
// Freeing the request or unanchoring bufs here, before that goroutine is
// done, would let it later write into memory the arena/registry may have
// already handed to an unrelated operation.
func (s *Socket) Write(ctx context.Context, data WriteData) (int, error) {
	if err := s.claimOp(); err != nil {
		return 0, err
	}

	if s.State() != StateEstablished {
		s.releaseOp()
		return 0, ErrWrongState
	}

	bufs, _, ioRelease, err := ioadapter.ToIovec(data)
	if err != nil {
		ioRelease()
		s.releaseOp()
		return 0, err
	}
	if ioadapter.Len(bufs) == 0 {
		ioRelease()
		s.releaseOp()
		return 0, nil
	}

	n, werr := s.tryWrite(bufs)
	if werr != nil {
		ioRelease()
		s.releaseOp()
		return n, wrap(werr, "corosock: write")
	}
	bufs = ioadapter.Trim(bufs, n)
	if ioadapter.Len(bufs) == 0 {
		ioRelease()
		s.releaseOp()
		return n, nil
	}

	req, aerr := s.eng.allocRequest(reqarena.KindWrite)
	if aerr != nil {
		ioRelease()
		s.releaseOp()
		return n, aerr
	}
	req.Result = make(chan reqarena.Result, 1)
	req.Anchor = s.eng.anchor(bufs)
	req.AddN(n)

	timeoutMS := s.timeoutMillis()
	if timeoutMS > 0 {
		req.Timer = s.eng.timers.Acquire()
		timer := req.Timer
		s.eng.armTimer(timer, time.Duration(timeoutMS)*time.Millisecond, func() {
			if req.Claim.TryClaim() {
				s.eng.disarmTimer(timer)
				req.Result <- reqarena.Result{N: req.LoadN(), TimedOut: true, Err: ErrTimedOut}
			}
		})
	}

	conn := s.conn
	go func() {
		defer ioRelease()
		wn, werr := conn.Write2(ctx, bufs)
		req.AddN(wn)
		won := req.Claim.TryClaim()
		if won && req.Timer != nil {
			s.eng.disarmTimer(req.Timer)
		}
		if won {
			req.Result <- reqarena.Result{N: req.LoadN(), Err: werr}
		}
		s.eng.unanchor(req.Anchor)
		s.eng.freeRequest(req)
		s.releaseOp()
	}()

	res := <-req.Result

	if res.TimedOut {
		s.eng.metrics.timeoutsTotal.Inc()
		return res.N, ErrTimedOut
	}
	if res.Err != nil {
		return res.N, wrap(res.Err, "corosock: write")
	}
	return res.N, nil
}

// WriteAsync implements spec.md §4.4 "write_async(data)": the same single
// try_write attempt, but if bytes remain, the remainder is submitted and
// left to complete in the background — the caller is never suspended and
// the eventual completion is not surfaced (spec.md §7: "never surfaced to
// the host"); a failure or a timeout is logged, a success is not. Per spec.md §4.4 step 4, a write-timeout timer
// is still armed if the socket has one configured; since there is no
// suspended caller to resume, the timer callback — if it wins the claim —
// performs the full cleanup itself (disarm, unanchor, free, release the
// op) and only logs the timeout, matching what the background write
// goroutine does on its own win path.
func (s *Socket) WriteAsync(data WriteData) (int, error) {
	if err := s.claimOp(); err != nil {
		return 0, err
	}

	if s.State() != StateEstablished {
		s.releaseOp()
		return 0, ErrWrongState
	}

	bufs, _, ioRelease, err := ioadapter.ToIovec(data)
	if err != nil {
		ioRelease()
		s.releaseOp()
		return 0, err
	}
	if ioadapter.Len(bufs) == 0 {
		ioRelease()
		s.releaseOp()
		return 0, nil
	}

	n, werr := s.tryWrite(bufs)
	if werr != nil {
		ioRelease()
		s.releaseOp()
		return n, wrap(werr, "corosock: write_async")
	}
	bufs = ioadapter.Trim(bufs, n)
	if ioadapter.Len(bufs) == 0 {
		ioRelease()
		s.releaseOp()
		return n, nil
	}

	req, aerr := s.eng.allocRequest(reqarena.KindWrite)
	if aerr != nil {
		ioRelease()
		s.releaseOp()
		return n, aerr
	}
	req.Async = true
	req.Anchor = s.eng.anchor(bufs)
	req.AddN(n)

	log := s.logger()

	// A Claim local to this call rather than req.Claim: once the timer
	// callback wins and frees req back to the arena, the background
	// goroutine must not touch req at all, since the pool may already
	// have handed it to another operation.
	var claim timerctl.Claim
	timeoutMS := s.timeoutMillis()
	if timeoutMS > 0 {
		req.Timer = s.eng.timers.Acquire()
		timer := req.Timer
		s.eng.armTimer(timer, time.Duration(timeoutMS)*time.Millisecond, func() {
			if claim.TryClaim() {
				s.eng.disarmTimer(timer)
				s.eng.metrics.timeoutsTotal.Inc()
				s.eng.unanchor(req.Anchor)
				s.eng.freeRequest(req)
				s.releaseOp()
				log.Warn("write_async: background write timed out")
			}
		})
	}

	conn := s.conn
	go func() {
		defer ioRelease()
		_, werr := conn.Write2(context.Background(), bufs)
		if !claim.TryClaim() {
			// Lost the race to the timeout callback, which already freed
			// req/unanchored bufs and released the op; nothing left to do.
			return
		}
		if req.Timer != nil {
			s.eng.disarmTimer(req.Timer)
		}
		s.eng.unanchor(req.Anchor)
		s.eng.freeRequest(req)
		s.releaseOp()
		if werr != nil {
			log.WithError(werr).Warn("write_async: background write failed")
		}
	}()

	return n, nil
}

// tryWrite performs spec.md's single non-blocking try_write attempt,
// treating EAGAIN (no more accepted right now) as "no error" rather than
// a failure, and returning the bytes accepted before it (possibly 0).
func (s *Socket) tryWrite(bufs net.Buffers) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	n, err := conn.TryWriteOnce(bufs)
	if err == unix.EAGAIN {
		return n, nil
	}
	return n, err
}
