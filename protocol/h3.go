package protocol

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"sync"

	"github.com/quic-go/quic-go"

	httpstream "github.com/manax-dev/httpstream"
)

// h3Strategy executes requests over QUIC, opening one bidirectional stream
// per request on a shared connection (no separate HPACK state machine: the
// request/status line and headers are framed as plain HTTP/1-style text on
// the QUIC stream, which is a deliberate simplification of real RFC 9114
// framing in exchange for reusing net/http's header parser).
type h3Strategy struct {
	tlsConfig *tls.Config
	quicConf  *quic.Config

	mu    sync.Mutex
	conns map[string]quic.Connection
}

// NewH3Strategy builds an h3Strategy. tlsConfig must have NextProtos set by
// the caller if ALPN selection matters; this strategy adds "h3" if absent.
func NewH3Strategy(tlsConfig *tls.Config) Strategy {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	hasH3 := false
	for _, p := range cfg.NextProtos {
		if p == "h3" {
			hasH3 = true
		}
	}
	if !hasH3 {
		cfg.NextProtos = append(cfg.NextProtos, "h3")
	}
	return &h3Strategy{
		tlsConfig: cfg,
		quicConf:  &quic.Config{},
		conns:     make(map[string]quic.Connection),
	}
}

func (s *h3Strategy) connFor(ctx context.Context, authority string) (quic.Connection, error) {
	s.mu.Lock()
	if conn, ok := s.conns[authority]; ok {
		s.mu.Unlock()
		select {
		case <-conn.Context().Done():
			// Stale; fall through and redial.
		default:
			return conn, nil
		}
		s.mu.Lock()
		delete(s.conns, authority)
	}
	s.mu.Unlock()

	udpAddr, err := net.ResolveUDPAddr("udp", authority)
	if err != nil {
		return nil, &httpstream.DNSError{Host: authority, Wrapped: err}
	}
	if ip, ok := netip.AddrFromSlice(udpAddr.IP); ok && isDisallowedQUICPeer(ip) {
		return nil, &httpstream.ProtocolError{HTTPVersion: "HTTP/3", Message: fmt.Sprintf("refusing to dial disallowed QUIC peer %s", ip)}
	}

	conn, err := quic.DialAddr(ctx, authority, s.tlsConfig, s.quicConf)
	if err != nil {
		return nil, &httpstream.NetworkError{Op: "h3-dial", Wrapped: err}
	}
	s.mu.Lock()
	s.conns[authority] = conn
	s.mu.Unlock()
	return conn, nil
}

func (s *h3Strategy) Execute(ctx context.Context, req *Request) (*Response, error) {
	authority := req.URL.Host
	if req.URL.Port() == "" {
		authority = net.JoinHostPort(req.URL.Hostname(), "443")
	}
	conn, err := s.connFor(ctx, authority)
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, &httpstream.NetworkError{Op: "h3-open-stream", Wrapped: err}
	}

	var wireReq bytes.Buffer
	fmt.Fprintf(&wireReq, "%s %s HTTP/3.0\r\n", req.Method, req.URL.RequestURI())
	req.Header.Write(&wireReq)
	wireReq.WriteString("\r\n")
	if _, err := stream.Write(wireReq.Bytes()); err != nil {
		return nil, &httpstream.NetworkError{Op: "h3-write-headers", Wrapped: err}
	}
	if req.Body != nil {
		if _, err := bufio.NewReader(req.Body).WriteTo(stream); err != nil {
			return nil, &httpstream.NetworkError{Op: "h3-write-body", Wrapped: err}
		}
	}
	if err := stream.Close(); err != nil {
		return nil, &httpstream.NetworkError{Op: "h3-close-send", Wrapped: err}
	}

	resp, err := http.ReadResponse(bufio.NewReader(stream), nil)
	if err != nil {
		return nil, &httpstream.ProtocolError{HTTPVersion: "HTTP/3", Message: err.Error()}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
		Proto:      "HTTP/3.0",
	}, nil
}

func (s *h3Strategy) ProtocolName() string      { return "h3" }
func (s *h3Strategy) SupportsPush() bool        { return true }
func (s *h3Strategy) MaxConcurrentStreams() int { return 100 }
