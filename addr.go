package corosock

import "github.com/coro-io/corosock/internal/reactor"

// Addr is spec.md §6's "(address_record, code)" family/host/port triple.
type Addr struct {
	Family int // 0 | 4 | 6, matching IsIP's classifier
	Host   string
	Port   int
}

func addrFromReactor(a *reactor.Addr) *Addr {
	if a == nil {
		return nil
	}
	return &Addr{Family: int(a.Family), Host: a.Host, Port: a.Port}
}

// IsIP classifies s the way spec.md §4.4's is_ip utility does: 0 if s is
// not a literal IPv4/IPv6 address, 4 or 6 otherwise. Hostnames are never
// resolved.
func IsIP(s string) int {
	return int(reactor.InetPton(s))
}

// LocalAddr implements spec.md §6's "local_address()".
func (s *Socket) LocalAddr() (*Addr, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil, ErrWrongState
	}
	a, err := conn.GetSockName()
	if err != nil {
		return nil, wrap(err, "corosock: local_address")
	}
	return addrFromReactor(a), nil
}

// RemoteAddr implements spec.md §6's "remote_address()".
func (s *Socket) RemoteAddr() (*Addr, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil, ErrWrongState
	}
	a, err := conn.GetPeerName()
	if err != nil {
		return nil, wrap(err, "corosock: remote_address")
	}
	return addrFromReactor(a), nil
}
