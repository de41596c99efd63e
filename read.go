package corosock

import (
	"context"
	"io"
	"time"

	"github.com/coro-io/corosock/internal/rbuf"
	"github.com/coro-io/corosock/internal/timerctl"
)

// readResult is read's private completion tuple. Reads never go through
// the request arena (spec.md's Request blocks are scoped to
// connect/write/shutdown only — read's per-call state is this lone local
// channel plus a Claim, with no pooled allocation needed).
type readResult struct {
	n        int
	err      error
	timedOut bool
}

// Read implements spec.md §4.4 "read()": fills the bound read buffer via
// one blocking kernel read followed by non-blocking drain reads, racing
// the socket's deadline exactly like connect/write (spec.md §4.2 /
// invariant 2).
//
// On timeout, this function returns as soon as the timer wins the race
// (the timer callback has already cleared s.readTimer), but the background
// goroutine that issued conn.ReadOnce keeps running and may still be
// reading into slice; it — not this function — owns releasing the op.
// Returning here without
// waiting for that goroutine to actually finish, while it frees shared
// state on our behalf, is exactly what spec.md's Purpose section calls
// the hard part: a subsequent Read() must never bind a fill slice that
// overlaps the region a still-running prior read is writing into, which
// holding releaseOp until the background goroutine itself finishes
// guarantees.
func (s *Socket) Read(ctx context.Context) (int, error) {
	if err := s.claimOp(); err != nil {
		return 0, err
	}

	st := s.State()
	if st != StateEstablished && st != StateShuttingDown {
		s.releaseOp()
		return 0, ErrWrongState
	}

	s.mu.Lock()
	buf := s.rbuf
	conn := s.conn
	s.mu.Unlock()
	if buf == nil {
		s.releaseOp()
		return 0, ErrNoReadBuffer
	}

	binder := rbuf.NewBinder(s.eng.pool)
	slice, err := binder.FillSlice(buf)
	if err != nil {
		s.releaseOp()
		return 0, ErrOutOfMemory
	}
	if len(slice) == 0 {
		// Buffer already full (write_pos at capacity): host must
		// ConsumeRead before another fill can proceed (spec.md §4.3 P6).
		s.releaseOp()
		return 0, nil
	}

	resultCh := make(chan readResult, 1)
	var claim timerctl.Claim

	var timer *timerctl.Timer
	if timeoutMS := s.timeoutMillis(); timeoutMS > 0 {
		timer = s.eng.timers.Acquire()
		s.mu.Lock()
		s.readTimer = timer
		s.mu.Unlock()
		s.eng.armTimer(timer, time.Duration(timeoutMS)*time.Millisecond, func() {
			if claim.TryClaim() {
				s.eng.disarmTimer(timer)
				s.mu.Lock()
				s.readTimer = nil
				s.mu.Unlock()
				resultCh <- readResult{timedOut: true, err: ErrTimedOut}
			}
		})
	}

	go func() {
		defer s.releaseOp()
		total, rerr := conn.ReadOnce(ctx, slice)
		// Drain already-buffered bytes within this same resume (spec.md
		// §9 Open Question (b)): keep pulling non-blocking reads into the
		// remainder of slice until EAGAIN, an error, EOF, or the buffer is
		// full, so a half-closed peer's trailing data doesn't require a
		// second suspend/resume round trip.
		if rerr == nil {
			for total < len(slice) {
				n, derr := conn.TryReadOnce(slice[total:])
				if n > 0 {
					total += n
				}
				if derr != nil {
					break
				}
				if n == 0 {
					break
				}
			}
		}

		won := claim.TryClaim()
		if won && timer != nil {
			s.eng.disarmTimer(timer)
			s.mu.Lock()
			s.readTimer = nil
			s.mu.Unlock()
		}
		if won {
			resultCh <- readResult{n: total, err: rerr}
		}
	}()

	res := <-resultCh

	if res.timedOut {
		s.eng.metrics.timeoutsTotal.Inc()
		return 0, ErrTimedOut
	}
	if res.err != nil {
		if res.err == io.EOF {
			return 0, ErrEOF
		}
		return 0, wrap(res.err, "corosock: read")
	}

	binder.Advance(buf, res.n)
	return res.n, nil
}
