package corosock

import "context"

// Close implements spec.md §4.4 "close()": idempotent-refusing (a second
// call returns ErrAlreadyClosing), releases every outstanding anchor and
// timer the socket still holds (spec.md invariant 4), and closes the
// underlying OS handle. Close does not wait for any in-flight operation —
// it tears down regardless, matching a host's expectation that close is
// always immediate.
func (s *Socket) Close(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return ErrAlreadyClosing
	}

	s.mu.Lock()
	readTimer := s.readTimer
	s.readTimer = nil
	conn := s.conn
	onConnectAnchor := s.onConnectAnchor
	coroAnchor := s.coroAnchor
	s.onConnectAnchor = 0
	s.coroAnchor = 0
	s.mu.Unlock()

	if readTimer != nil {
		s.eng.disarmTimer(readTimer)
	}
	s.eng.unanchor(onConnectAnchor)
	s.eng.unanchor(coroAnchor)

	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}
	s.setState(StateClosed)
	if closeErr != nil {
		return wrap(closeErr, "corosock: close")
	}
	return nil
}
