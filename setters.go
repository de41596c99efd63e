package corosock

import (
	"sync/atomic"
	"time"

	"github.com/coro-io/corosock/internal/rbuf"
)

// SetReadBuffer binds buf as the socket's read buffer (spec.md §3
// invariant 3: "must be bound... before read is called"). Must be called
// before Read.
func (s *Socket) SetReadBuffer(buf *rbuf.Buffer) error {
	if buf == nil {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	s.rbuf = buf
	s.mu.Unlock()
	return nil
}

// SetTimeout sets the default per-operation deadline in milliseconds
// (spec.md §4.4 "set_timeout"); 0 disables it. Negative values are a
// programmer error (spec.md §8 boundary test "timeout=-1 rejects").
func (s *Socket) SetTimeout(ms int) error {
	if ms < 0 {
		return ErrInvalidArgument
	}
	atomic.StoreInt32(&s.timeoutMS, int32(ms))
	return nil
}

// SetNoDelay implements spec.md §4.4 "set_nodelay(enable)".
func (s *Socket) SetNoDelay(enable bool) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrWrongState
	}
	return wrap(conn.TCPNoDelay(enable), "corosock: set_nodelay")
}

// SetKeepAlive implements spec.md §4.4 "set_keepalive(enable, delay>=0
// when enabled)". delay<0 with enable=true is rejected (spec.md §8
// boundary test "keepalive with enable=true requires delay arg" —
// generalized here to "a non-negative delay").
func (s *Socket) SetKeepAlive(enable bool, delay time.Duration) error {
	if enable && delay < 0 {
		return ErrKeepAliveNoDelay
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrWrongState
	}
	return wrap(conn.TCPKeepAlive(enable, int(delay.Seconds())), "corosock: set_keepalive")
}
