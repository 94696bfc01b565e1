// Package transport implements the dialing, TLS, proxy, and connection-
// pooling glue underneath the protocol strategies: the parts of the stack
// that are about reaching a socket rather than speaking a wire format once
// connected.
package transport

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	httpstream "github.com/manax-dev/httpstream"
)

const defaultDNSTTL = 5 * time.Minute

type dnsCacheEntry struct {
	addrs     []netip.Addr
	expiresAt time.Time
}

// Resolver wraps net.Resolver with a TTL cache and a per-host override map,
// so tests (and callers pinning a host to a fixed address) never touch
// /etc/hosts.
type Resolver struct {
	resolver *net.Resolver
	ttl      time.Duration

	mu        sync.RWMutex
	overrides map[string][]netip.Addr
	cache     map[string]dnsCacheEntry
}

// NewResolver builds a Resolver. A nil *net.Resolver uses net.DefaultResolver.
func NewResolver(r *net.Resolver, ttl time.Duration) *Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	if ttl <= 0 {
		ttl = defaultDNSTTL
	}
	return &Resolver{
		resolver:  r,
		ttl:       ttl,
		overrides: make(map[string][]netip.Addr),
		cache:     make(map[string]dnsCacheEntry),
	}
}

// SetOverride pins host to addrs, bypassing both the cache and any real
// lookup until cleared with ClearOverride.
func (r *Resolver) SetOverride(host string, addrs []netip.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[host] = addrs
}

// ClearOverride removes a previously set override for host.
func (r *Resolver) ClearOverride(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, host)
}

// Resolve returns every address host maps to, consulting overrides first,
// then the TTL cache, then performing a real lookup via LookupNetIP.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	r.mu.RLock()
	if addrs, ok := r.overrides[host]; ok {
		r.mu.RUnlock()
		return addrs, nil
	}
	if entry, ok := r.cache[host]; ok && time.Now().Before(entry.expiresAt) {
		r.mu.RUnlock()
		return entry.addrs, nil
	}
	r.mu.RUnlock()

	addrs, err := r.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, &httpstream.DNSError{Host: host, Wrapped: err}
	}
	if len(addrs) == 0 {
		return nil, &httpstream.DNSError{Host: host, Wrapped: &net.DNSError{Err: "no addresses found", Name: host}}
	}

	r.mu.Lock()
	r.cache[host] = dnsCacheEntry{addrs: addrs, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return addrs, nil
}
