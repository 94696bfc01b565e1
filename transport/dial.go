package transport

import (
	"context"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	httpstream "github.com/manax-dev/httpstream"
)

const defaultInterleaveDelay = 250 * time.Millisecond

// Dialer races TCP connection attempts across a resolved address list (RFC
// 8305 Happy Eyeballs), preferring IPv6 first and staggering subsequent
// attempts by InterleaveDelay instead of waiting for each to time out.
type Dialer struct {
	Resolver        *Resolver
	InterleaveDelay time.Duration
	NetDialer       *net.Dialer
}

// NewDialer builds a Dialer over resolver, using interleaveDelay between
// staggered attempts (0 selects the package default).
func NewDialer(resolver *Resolver, interleaveDelay time.Duration) *Dialer {
	if interleaveDelay <= 0 {
		interleaveDelay = defaultInterleaveDelay
	}
	return &Dialer{
		Resolver:        resolver,
		InterleaveDelay: interleaveDelay,
		NetDialer:       &net.Dialer{},
	}
}

// DialContext resolves host, orders the results IPv6-first (alternating
// families the way Happy Eyeballs recommends), and races connection attempts
// with a staggered start, returning the first one to succeed and canceling
// the rest.
func (d *Dialer) DialContext(ctx context.Context, network, hostport string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, &httpstream.NetworkError{Op: "split-host-port", Wrapped: err}
	}
	addrs, err := d.Resolver.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	ordered := interleaveByFamily(addrs)

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type attempt struct {
		conn net.Conn
		err  error
	}
	results := make([]attempt, len(ordered))
	g, gctx := errgroup.WithContext(raceCtx)

	for i, addr := range ordered {
		i, addr := i, addr
		delay := time.Duration(i) * d.InterleaveDelay
		g.Go(func() error {
			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-gctx.Done():
					results[i] = attempt{err: gctx.Err()}
					return nil
				case <-timer.C:
				}
			}
			conn, err := d.NetDialer.DialContext(gctx, network, net.JoinHostPort(addr.String(), port))
			results[i] = attempt{conn: conn, err: err}
			if err == nil {
				cancel() // First success wins; stop every other attempt.
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.err == nil && r.conn != nil {
			return r.conn, nil
		}
	}
	for _, r := range results {
		if r.err != nil {
			return nil, &httpstream.NetworkError{Op: "dial", Wrapped: r.err}
		}
	}
	return nil, &httpstream.NetworkError{Op: "dial", Wrapped: context.DeadlineExceeded}
}

// interleaveByFamily alternates IPv6/IPv4 addresses starting with IPv6, per
// RFC 8305 §4's recommended ordering, instead of trying every address of one
// family before the other.
func interleaveByFamily(addrs []netip.Addr) []netip.Addr {
	var v6, v4 []netip.Addr
	for _, a := range addrs {
		if a.Is4() || a.Is4In6() {
			v4 = append(v4, a)
		} else {
			v6 = append(v6, a)
		}
	}
	out := make([]netip.Addr, 0, len(addrs))
	for i := 0; i < len(v6) || i < len(v4); i++ {
		if i < len(v6) {
			out = append(out, v6[i])
		}
		if i < len(v4) {
			out = append(out, v4[i])
		}
	}
	return out
}
