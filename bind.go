package corosock

import "github.com/coro-io/corosock/internal/reactor"

// Bind implements spec.md §4.4 "bind(port, host, reuse_port)": validates
// and parses host as a v4 or v6 literal (rejecting hostnames), then binds
// synchronously. Non-blocking; never suspends.
func (s *Socket) Bind(port int, host string, reusePort bool) error {
	if port < 0 || port > 65535 {
		return ErrInvalidArgument
	}
	family := reactor.InetPton(host)
	if host != "" && family == reactor.FamilyUnspecified {
		return ErrInvalidArgument // hostnames are rejected, not resolved
	}
	if s.State() != StateUninit {
		return ErrWrongState
	}
	if err := s.ensureConn(reactor.Family(family)); err != nil {
		return wrap(err, "corosock: bind")
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if err := conn.Bind(host, port, reusePort); err != nil {
		return wrap(err, "corosock: bind")
	}
	s.setState(StateBound)
	return nil
}
