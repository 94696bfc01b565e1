package protocol

import (
	"context"
	"net/http"

	httpstream "github.com/manax-dev/httpstream"
)

// h1Strategy executes requests with the stdlib net/http transport. It is the
// universal fallback: every authority supports it.
type h1Strategy struct {
	transport *http.Transport
}

// NewH1Strategy wraps an *http.Transport, matching the teacher's pattern of
// taking a caller-supplied *http.Client/*http.Transport rather than building
// its own connection machinery from raw sockets.
func NewH1Strategy(transport *http.Transport) Strategy {
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &h1Strategy{transport: transport}
}

func (s *h1Strategy) Execute(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, &httpstream.NetworkError{Op: "build-request", Wrapped: err}
	}
	httpReq.Header = req.Header
	httpReq.ContentLength = req.ContentLength

	resp, err := s.transport.RoundTrip(httpReq)
	if err != nil {
		return nil, classifyH1Error(err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
		Proto:      "HTTP/1.1",
	}, nil
}

func (s *h1Strategy) ProtocolName() string      { return "h1" }
func (s *h1Strategy) SupportsPush() bool        { return false }
func (s *h1Strategy) MaxConcurrentStreams() int { return 1 }

// classifyH1Error maps a net/http transport error onto the shared error
// taxonomy so callers (retry executor, auto strategy) can dispatch on type
// regardless of which strategy produced the failure.
func classifyH1Error(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return &httpstream.TimeoutError{Kind: "response"}
	}
	return &httpstream.NetworkError{Op: "h1-roundtrip", Wrapped: err}
}
