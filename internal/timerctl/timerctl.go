// Package timerctl implements the Timer Controller of spec.md §4.2: a pool
// of one-shot deadline timers plus the race contract that guarantees
// exactly one of {completion, timeout} ever resumes a suspended operation.
//
// Built directly on time.AfterFunc, matching the teacher's own idiom for
// deadlines (smux's session.go/stream.go thread every deadline through as
// a *time.Timer / <-chan time.Time rather than inventing a bespoke timer
// wheel), pooled the way gaio pools its aiocb request objects.
package timerctl

import (
	"sync"
	"time"
)

// Timer is a reusable one-shot deadline handle, the spec.md "reactor timer
// handle" returned by Acquire.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	armed    bool
	released bool
}

// Controller manages a pool of Timers.
type Controller struct {
	pool sync.Pool
}

// New returns a ready-to-use Controller.
func New() *Controller {
	c := &Controller{}
	c.pool.New = func() any { return new(Timer) }
	return c
}

// Acquire obtains a timer handle from the pool. It is inert (not counting
// down) until Arm is called.
func (c *Controller) Acquire() *Timer {
	t := c.pool.Get().(*Timer)
	t.mu.Lock()
	t.armed = false
	t.released = false
	t.mu.Unlock()
	return t
}

// Arm starts a one-shot countdown of deadline against t. callback runs on
// its own goroutine (time.AfterFunc semantics) exactly once, unless the
// countdown is stopped first via DisarmAndRelease.
func (c *Controller) Arm(t *Timer, deadline time.Duration, callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(deadline, callback)
	t.armed = true
}

// DisarmAndRelease stops t (if still armed) and returns it to the pool.
// Safe to call after the timer has already fired and its callback has run
// or is running — but, per spec.md §4.2, it is a bug (and this
// implementation panics) to call it twice on the same acquisition.
func (c *Controller) DisarmAndRelease(t *Timer) {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		panic("timerctl: DisarmAndRelease called twice on the same timer")
	}
	t.released = true
	underlying := t.timer
	t.timer = nil
	t.armed = false
	t.mu.Unlock()

	if underlying != nil {
		underlying.Stop()
	}
	c.pool.Put(t)
}

// Claim is the per-request first-wins cell described in spec.md §4.2 and
// §9 ("a two-sided cell with atomic first-wins claim"). It does not belong
// to Timer/Controller because the thing being raced is the *request*, not
// the timer — the loser of the race still owns its own resource cleanup
// but must never touch the resume channel. Callers embed a Claim in their
// request block and call TryClaim from both the completion path and the
// timeout path.
type Claim struct {
	mu      sync.Mutex
	claimed bool
}

// TryClaim returns true exactly once across all calls: the first caller to
// reach it wins the race and is responsible for resuming the coroutine.
func (c *Claim) TryClaim() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed {
		return false
	}
	c.claimed = true
	return true
}

// Reset allows a pooled request block to be reused for a new operation.
func (c *Claim) Reset() {
	c.mu.Lock()
	c.claimed = false
	c.mu.Unlock()
}
