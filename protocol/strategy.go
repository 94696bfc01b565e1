// Package protocol implements the HTTP/1.1, HTTP/2, and HTTP/3 transport
// strategies behind a single Strategy interface, plus the fallback logic
// that picks among them per authority.
package protocol

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request is a prepared, protocol-agnostic outgoing request. The fluent
// builder surface lives above this package; Strategy.Execute only ever sees
// the fully-resolved form.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   io.Reader

	// ContentLength is -1 when unknown (chunked/streamed body).
	ContentLength int64
}

// Response is a protocol-agnostic inbound response. Body is always
// streamable; callers that need the whole thing buffered do that
// themselves with io.ReadAll.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
	Proto      string // "HTTP/1.1", "HTTP/2.0", "HTTP/3.0"
}

// Strategy executes one request over a specific HTTP version. Each
// implementation owns its own connection lifecycle; Strategy itself is
// stateless per call beyond whatever connection pooling it does internally.
type Strategy interface {
	// Execute sends req and returns its response, or an error classified per
	// the httpstream error taxonomy (NetworkError, TimeoutError, TLSError,
	// ProtocolError, ...).
	Execute(ctx context.Context, req *Request) (*Response, error)
	// ProtocolName identifies the strategy for logging and for the
	// per-authority intelligence cache ("h1", "h2", "h3").
	ProtocolName() string
	// SupportsPush reports whether the underlying protocol can multiplex
	// unsolicited server-initiated streams onto the same connection.
	SupportsPush() bool
	// MaxConcurrentStreams is the protocol's practical multiplexing limit
	// for one connection (1 for HTTP/1.1; the HTTP/2 and HTTP/3 strategies
	// report a fixed conservative 100, not the negotiated SETTINGS value).
	MaxConcurrentStreams() int
}
