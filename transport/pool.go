package transport

import (
	"net"
	"sync"
)

// poolKey identifies one (authority, protocol) connection class — a
// connection negotiated for HTTP/2 to api.example.com:443 is never handed
// out for an HTTP/1.1 request to the same authority, and vice versa.
type poolKey struct {
	authority string
	protocol  string
}

// Pool holds idle connections keyed by (authority, protocol), so a strategy
// can reuse a warm connection instead of dialing fresh for every request.
type Pool struct {
	mu   sync.Mutex
	idle map[poolKey][]net.Conn
}

// NewPool builds an empty Pool.
func NewPool() *Pool {
	return &Pool{idle: make(map[poolKey][]net.Conn)}
}

// Get removes and returns one idle connection for (authority, protocol), or
// ok=false if none is available.
func (p *Pool) Get(authority, protocol string) (net.Conn, bool) {
	key := poolKey{authority, protocol}
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.idle[key]
	if len(conns) == 0 {
		return nil, false
	}
	conn := conns[len(conns)-1]
	p.idle[key] = conns[:len(conns)-1]
	return conn, true
}

// Put returns conn to the idle pool for later reuse.
func (p *Pool) Put(authority, protocol string, conn net.Conn) {
	key := poolKey{authority, protocol}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle[key] = append(p.idle[key], conn)
}

// CloseIdle closes and discards every idle connection across all keys,
// matching the teacher-adjacent "explicit shutdown closes what's held open"
// pattern rather than relying on finalizers.
func (p *Pool) CloseIdle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for key, conns := range p.idle {
		for _, c := range conns {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(p.idle, key)
	}
	return firstErr
}

// Len reports how many idle connections are currently pooled for
// (authority, protocol), mainly useful from tests.
func (p *Pool) Len(authority, protocol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[poolKey{authority, protocol}])
}
