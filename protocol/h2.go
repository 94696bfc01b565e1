package protocol

import (
	"context"
	"crypto/tls"
	"net/http"

	"golang.org/x/net/http2"

	httpstream "github.com/manax-dev/httpstream"
)

// h2Strategy executes requests over an HTTP/2 connection, negotiated via
// ALPN and multiplexed through golang.org/x/net/http2's ClientConn pool.
// HPACK header compression and per-stream flow control are entirely
// http2.Transport's responsibility; this strategy is a thin adapter from the
// protocol-agnostic Request/Response shape to it.
type h2Strategy struct {
	transport *http2.Transport
	// maxStreams is a conservative estimate of the peer's
	// SETTINGS_MAX_CONCURRENT_STREAMS; http2.Transport negotiates the real
	// value per connection but does not expose it, so callers deciding
	// whether to race h2 against h3 use this static estimate instead.
	maxStreams int
}

// NewH2Strategy builds an h2Strategy over tlsConfig, requiring ALPN to
// negotiate "h2" (http2.Transport refuses to do cleartext h2 against an
// arbitrary authority, matching how every real browser/client treats H2).
func NewH2Strategy(tlsConfig *tls.Config) Strategy {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.NextProtos = []string{"h2"}
	return &h2Strategy{
		transport: &http2.Transport{
			TLSClientConfig: cfg,
		},
		maxStreams: 100,
	}
}

func (s *h2Strategy) Execute(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, &httpstream.NetworkError{Op: "build-request", Wrapped: err}
	}
	httpReq.Header = req.Header
	httpReq.ContentLength = req.ContentLength

	resp, err := s.transport.RoundTrip(httpReq)
	if err != nil {
		return nil, classifyH2Error(err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
		Proto:      "HTTP/2.0",
	}, nil
}

func (s *h2Strategy) ProtocolName() string      { return "h2" }
func (s *h2Strategy) SupportsPush() bool        { return true }
func (s *h2Strategy) MaxConcurrentStreams() int { return s.maxStreams }

func classifyH2Error(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case http2.StreamError:
		return &httpstream.ProtocolError{HTTPVersion: "HTTP/2", Message: e.Code.String()}
	case http2.GoAwayError:
		return &httpstream.ProtocolError{HTTPVersion: "HTTP/2", Message: "connection closed: " + e.ErrCode.String()}
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return &httpstream.TimeoutError{Kind: "response"}
	}
	return &httpstream.NetworkError{Op: "h2-roundtrip", Wrapped: err}
}
