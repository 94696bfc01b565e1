package httpstream

import (
	"fmt"

	"github.com/manax-dev/httpstream/jsonpath"
)

// InvalidExpressionError is returned by jsonpath.Compile when an expression
// fails to parse or fails static type checking. It is an alias of
// jsonpath.InvalidExpressionError so callers can catch it without importing
// the jsonpath package directly.
type InvalidExpressionError = jsonpath.InvalidExpressionError

// JSONParseError reports a lexical or structural failure while walking the
// streamed JSON byte sequence.
type JSONParseError struct {
	Message  string
	Offset   int64
	Context  string
	Wrapped  error
}

func (e *JSONParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("json parse error at offset %d (%s): %s", e.Offset, e.Context, e.Message)
	}
	return fmt.Sprintf("json parse error at offset %d: %s", e.Offset, e.Message)
}

func (e *JSONParseError) Unwrap() error { return e.Wrapped }

// DeserializationError reports that a matched byte slice could not be
// converted into the caller's target type.
type DeserializationError struct {
	Message  string
	Fragment []byte
	Target   string
	Wrapped  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("failed to deserialize into %s: %s", e.Target, e.Message)
}

func (e *DeserializationError) Unwrap() error { return e.Wrapped }

// BufferError reports that a streaming buffer operation could not be
// completed because it would exceed the configured budget.
type BufferError struct {
	Operation string
	Requested int64
	Available int64
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("buffer error during %s: requested %d bytes, %d available", e.Operation, e.Requested, e.Available)
}

// StreamError reports a problem in the streaming state machine that is not a
// raw lexical error (e.g. unexpected EOF, max depth exceeded).
type StreamError struct {
	Message     string
	State       string
	Recoverable bool
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error in state %s: %s", e.State, e.Message)
}

// NetworkError wraps a low-level connection failure.
type NetworkError struct {
	Op      string
	Wrapped error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error during %s: %v", e.Op, e.Wrapped) }
func (e *NetworkError) Unwrap() error { return e.Wrapped }

// TimeoutError reports that a configured timeout elapsed.
type TimeoutError struct {
	Kind string // "connect", "tls", "idle", "response"
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s timeout exceeded", e.Kind) }

// TLSError wraps a handshake or certificate validation failure.
type TLSError struct {
	Wrapped error
}

func (e *TLSError) Error() string { return fmt.Sprintf("tls error: %v", e.Wrapped) }
func (e *TLSError) Unwrap() error { return e.Wrapped }

// ProtocolError reports an HTTP-version-specific protocol violation.
type ProtocolError struct {
	HTTPVersion string
	Message     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s protocol error: %s", e.HTTPVersion, e.Message)
}

// ProxyError wraps a CONNECT/SOCKS handshake failure.
type ProxyError struct {
	Wrapped error
}

func (e *ProxyError) Error() string { return fmt.Sprintf("proxy error: %v", e.Wrapped) }
func (e *ProxyError) Unwrap() error { return e.Wrapped }

// DNSError wraps a resolution failure.
type DNSError struct {
	Host    string
	Wrapped error
}

func (e *DNSError) Error() string { return fmt.Sprintf("dns error resolving %q: %v", e.Host, e.Wrapped) }
func (e *DNSError) Unwrap() error { return e.Wrapped }

// RedirectLoopError reports that a redirect chain revisited a prior URL.
type RedirectLoopError struct {
	URL string
}

func (e *RedirectLoopError) Error() string { return fmt.Sprintf("redirect loop detected at %q", e.URL) }

// TooManyRedirectsError reports that the redirect chain exceeded its cap.
type TooManyRedirectsError struct {
	Max int
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("too many redirects: exceeded max of %d", e.Max)
}

// RetryableKind classifies whether an error is retryable per spec §7:
// Network (which also carries failed connection attempts), Timeout, Dns and
// Tls are retryable; everything else, ProtocolError included, is not.
func RetryableKind(err error) bool {
	switch err.(type) {
	case *NetworkError, *TimeoutError, *TLSError, *DNSError:
		return true
	default:
		return false
	}
}
