package protocol

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	httpstream "github.com/manax-dev/httpstream"
)

// intel remembers what happened the last time autoStrategy talked to an
// authority, so repeat requests skip straight to whatever protocol actually
// worked instead of re-probing every time.
type intel struct {
	protocol  string
	expiresAt time.Time
}

const intelTTL = 10 * time.Minute

// autoStrategy picks among h3, h2, and h1 per authority: known-good
// authorities go straight to their last-successful protocol, and unknown
// ones race every candidate concurrently (via errgroup) and keep the
// highest-priority one that succeeds. A race does not classify errors: a
// lower-priority success is kept whatever a higher-priority candidate failed
// with. A remembered protocol that fails with a RetryableKind error is
// forgotten and the candidates are raced afresh.
type autoStrategy struct {
	h3, h2, h1 Strategy

	mu    sync.RWMutex
	cache map[string]intel
}

// NewAutoStrategy builds the H3→H2→H1 fallback strategy. Any of h3/h2 may be
// nil to disable that tier (e.g. no TLS config available for H3).
func NewAutoStrategy(h3, h2, h1 Strategy) Strategy {
	return &autoStrategy{h3: h3, h2: h2, h1: h1, cache: make(map[string]intel)}
}

func (s *autoStrategy) ProtocolName() string      { return "auto" }
func (s *autoStrategy) SupportsPush() bool        { return true }
func (s *autoStrategy) MaxConcurrentStreams() int { return 100 }

func (s *autoStrategy) Execute(ctx context.Context, req *Request) (*Response, error) {
	authority := req.URL.Host

	if strat := s.known(authority); strat != nil {
		resp, err := strat.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !httpstream.RetryableKind(err) {
			return nil, err
		}
		// The remembered protocol just failed in a retryable way (e.g. the
		// server stopped supporting it); forget it and fall through to a
		// fresh race below.
		s.forget(authority)
	}

	candidates := s.candidatesFor(req)
	if len(candidates) == 0 {
		return nil, &httpstream.ProtocolError{HTTPVersion: "auto", Message: "no strategy available for " + req.URL.Scheme}
	}
	if len(candidates) == 1 {
		resp, err := candidates[0].Execute(ctx, req)
		if err == nil {
			s.remember(authority, candidates[0].ProtocolName())
		}
		return resp, err
	}
	return s.race(ctx, authority, req, candidates)
}

// race runs every candidate concurrently via errgroup, waits for all of them,
// and keeps the highest-priority (earliest) success, closing the bodies of
// the other successful responses. The kept response's context is not
// canceled when race returns, so its body stays readable. If every candidate
// fails, the error from the highest-priority (first) candidate is returned.
func (s *autoStrategy) race(ctx context.Context, authority string, req *Request, candidates []Strategy) (*Response, error) {
	type result struct {
		resp     *Response
		err      error
		protocol string
	}
	results := make([]result, len(candidates))

	var g errgroup.Group
	for i, strat := range candidates {
		i, strat := i, strat
		g.Go(func() error {
			resp, err := strat.Execute(ctx, req)
			results[i] = result{resp: resp, err: err, protocol: strat.ProtocolName()}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		if r.err == nil {
			for _, other := range results[i+1:] {
				if other.err == nil && other.resp != nil && other.resp.Body != nil {
					other.resp.Body.Close()
				}
			}
			s.remember(authority, r.protocol)
			return r.resp, nil
		}
	}
	return nil, results[0].err
}

func (s *autoStrategy) candidatesFor(req *Request) []Strategy {
	var out []Strategy
	if req.URL.Scheme == "https" {
		if s.h3 != nil {
			out = append(out, s.h3)
		}
		if s.h2 != nil {
			out = append(out, s.h2)
		}
	}
	if s.h1 != nil {
		out = append(out, s.h1)
	}
	return out
}

func (s *autoStrategy) known(authority string) Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.cache[authority]
	if !ok || time.Now().After(i.expiresAt) {
		return nil
	}
	switch i.protocol {
	case "h3":
		return s.h3
	case "h2":
		return s.h2
	case "h1":
		return s.h1
	default:
		return nil
	}
}

func (s *autoStrategy) remember(authority, protocol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[authority] = intel{protocol: protocol, expiresAt: time.Now().Add(intelTTL)}
}

func (s *autoStrategy) forget(authority string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, authority)
}
