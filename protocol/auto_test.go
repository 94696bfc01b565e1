package protocol

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubStrategy is a minimal Strategy double for exercising autoStrategy's
// racing and memoization logic without any real network I/O.
type stubStrategy struct {
	name string
	resp *Response
	err  error
	hits int
}

func (s *stubStrategy) Execute(ctx context.Context, req *Request) (*Response, error) {
	s.hits++
	return s.resp, s.err
}
func (s *stubStrategy) ProtocolName() string      { return s.name }
func (s *stubStrategy) SupportsPush() bool        { return s.name != "h1" }
func (s *stubStrategy) MaxConcurrentStreams() int { return 100 }

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestAutoStrategy_RacesAndRemembers(t *testing.T) {
	h3 := &stubStrategy{name: "h3", err: &stubNonRetryable{}}
	h2 := &stubStrategy{name: "h2", resp: &Response{StatusCode: 200}}
	h1 := &stubStrategy{name: "h1", resp: &Response{StatusCode: 200}}

	auto := NewAutoStrategy(h3, h2, h1)
	req := &Request{Method: "GET", URL: mustURL(t, "https://example.com/"), Header: map[string][]string{}}

	resp, err := auto.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	// A second call to the same authority should skip straight to whichever
	// strategy won the race, without invoking the loser again.
	h2Hits, h1Hits := h2.hits, h1.hits
	resp2, err := auto.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 200, resp2.StatusCode)
	require.True(t, h2.hits == h2Hits+1 || h1.hits == h1Hits+1)
}

func TestAutoStrategy_NoCandidatesWhenEveryStrategyIsNil(t *testing.T) {
	auto := NewAutoStrategy(nil, nil, nil)
	req := &Request{Method: "GET", URL: mustURL(t, "https://example.com/"), Header: map[string][]string{}}
	_, err := auto.Execute(context.Background(), req)
	require.Error(t, err)
}

// stubNonRetryable is an error type RetryableKind does not recognize. A race
// does not classify errors, so a candidate failing with it simply loses to
// one that succeeds.
type stubNonRetryable struct{}

func (*stubNonRetryable) Error() string { return "stub non-retryable failure" }
