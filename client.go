package httpstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manax-dev/httpstream/cache"
	"github.com/manax-dev/httpstream/config"
	"github.com/manax-dev/httpstream/cookie"
	"github.com/manax-dev/httpstream/jsonpath"
	"github.com/manax-dev/httpstream/protocol"
	"github.com/manax-dev/httpstream/redirect"
	"github.com/manax-dev/httpstream/retry"
	"github.com/manax-dev/httpstream/streaming"
	"github.com/manax-dev/httpstream/transport"
)

const (
	defaultMaxBodySize    = 64 << 20 // 64 MiB
	defaultClientTimeout  = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Client ties together protocol strategy selection, transport dialing,
// redirects, cookies, retries, and the response cache behind one entry
// point, matching the teacher's "one Client with chained With* options"
// shape rather than a collection of loose functions.
type Client struct {
	strategy    protocol.Strategy
	resolver    *transport.Resolver
	timeout     time.Duration
	maxBodySize int64
	maxRedirect int
	retryConfig retry.Config
	cache       *cache.Cache
	jar         *cookie.Jar
	debug       Debugger
	userAgent   string
	proxyURL    *url.URL
	bypass      *transport.Bypass
}

// NewClient builds a Client with the package defaults: a 64 MiB max body
// size, a 30s overall timeout, redirect chain capped at 10, the default
// retry backoff schedule, an in-memory response cache, and a cookie jar.
// Proxy settings default to the standard HTTP_PROXY/HTTPS_PROXY/ALL_PROXY/
// NO_PROXY environment variables, read once at construction.
func NewClient(opts ...Option) (*Client, error) {
	jar, err := cookie.NewJar()
	if err != nil {
		return nil, fmt.Errorf("httpstream: building cookie jar: %w", err)
	}

	c := &Client{
		resolver:    transport.NewResolver(nil, 0),
		timeout:     defaultClientTimeout,
		maxBodySize: defaultMaxBodySize,
		maxRedirect: 10,
		retryConfig: retry.DefaultConfig(),
		cache:       cache.New(1000),
		jar:         jar,
		debug:       NoopDebugger,
		userAgent:   "httpstream-fetch/1.0",
	}
	c.applyProxyFromEnvironment()

	for _, opt := range opts {
		opt(c)
	}

	if c.strategy == nil {
		c.strategy = c.buildDefaultStrategy()
	}
	return c, nil
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout sets the overall per-request deadline Do applies when the
// caller's context doesn't already carry one.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodySize caps how many response body bytes Client.Do will buffer
// into the response cache (streaming reads via Stream are unaffected).
func WithMaxBodySize(n int64) Option {
	return func(c *Client) { c.maxBodySize = n }
}

// WithMaxRedirects sets the redirect chain cap (0 selects the package
// default of 10).
func WithMaxRedirects(n int) Option {
	return func(c *Client) { c.maxRedirect = n }
}

// WithRetry overrides the retry backoff schedule.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retryConfig = cfg }
}

// WithDebugger attaches a Debugger that sees each request Do issues via
// RawRequest. Stream does not forward raw chunks or boundaries to it.
func WithDebugger(d Debugger) Option {
	return func(c *Client) { c.debug = d }
}

// WithUserAgent sets the User-Agent header applied to every outgoing
// request that doesn't already set one.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithProxy routes every request through proxyURL, overriding whatever the
// environment variables selected.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return
		}
		c.proxyURL = u
	}
}

// WithNoProxy sets the proxy bypass list, overriding NO_PROXY.
func WithNoProxy(list string) Option {
	return func(c *Client) { c.bypass = transport.ParseBypass(list) }
}

// WithStrategy overrides protocol selection entirely (mainly for tests that
// want to inject a fake Strategy).
func WithStrategy(s protocol.Strategy) Option {
	return func(c *Client) { c.strategy = s }
}

// WithPreset applies a config.Preset loaded from YAML: its Timeout,
// MaxBodySize, MaxRedirects, UserAgent, NoProxy and ProxyURL, each when set.
// ConnectTimeout and InterleaveDelay are not applied.
func WithPreset(p *config.Preset) Option {
	return func(c *Client) {
		if t := p.AsTimeout(); t > 0 {
			c.timeout = t
		}
		if p.MaxBodySize > 0 {
			c.maxBodySize = p.MaxBodySize
		}
		if p.MaxRedirects > 0 {
			c.maxRedirect = p.MaxRedirects
		}
		if p.UserAgent != "" {
			c.userAgent = p.UserAgent
		}
		if p.NoProxy != "" {
			c.bypass = transport.ParseBypass(p.NoProxy)
		}
		if p.ProxyURL != "" {
			if u, err := url.Parse(p.ProxyURL); err == nil {
				c.proxyURL = u
			}
		}
	}
}

func (c *Client) applyProxyFromEnvironment() {
	if v := firstNonEmpty(os.Getenv("HTTPS_PROXY"), os.Getenv("https_proxy")); v != "" {
		if u, err := url.Parse(v); err == nil {
			c.proxyURL = u
		}
	} else if v := firstNonEmpty(os.Getenv("HTTP_PROXY"), os.Getenv("http_proxy")); v != "" {
		if u, err := url.Parse(v); err == nil {
			c.proxyURL = u
		}
	} else if v := firstNonEmpty(os.Getenv("ALL_PROXY"), os.Getenv("all_proxy")); v != "" {
		if u, err := url.Parse(v); err == nil {
			c.proxyURL = u
		}
	}
	if v := firstNonEmpty(os.Getenv("NO_PROXY"), os.Getenv("no_proxy")); v != "" {
		c.bypass = transport.ParseBypass(v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// buildDefaultStrategy wires transport.Dialer/TLSManager/ProxyDialer into
// the H1/H2/H3 strategies behind autoStrategy, the same way the teacher
// wires a provider's HTTP client from its own option state.
func (c *Client) buildDefaultStrategy() protocol.Strategy {
	dialer := transport.NewDialer(c.resolver, 0)
	dialer.NetDialer.Timeout = defaultConnectTimeout
	tlsManager := transport.NewTLSManager(nil)

	h1Transport := &http.Transport{
		DialContext:     c.dialContextHonoringProxy(dialer),
		TLSClientConfig: tlsManager.Config(""),
	}

	h1 := protocol.NewH1Strategy(h1Transport)
	h2 := protocol.NewH2Strategy(&tls.Config{})
	h3 := protocol.NewH3Strategy(&tls.Config{})
	return protocol.NewAutoStrategy(h3, h2, h1)
}

// dialContextHonoringProxy builds the DialContext func an *http.Transport
// needs, routing through the configured proxy unless addr is bypassed.
func (c *Client) dialContextHonoringProxy(dialer *transport.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if c.proxyURL != nil && !c.bypasses(addr) {
			return transport.NewProxyDialer(c.proxyURL).DialContext(ctx, addr)
		}
		return dialer.DialContext(ctx, network, addr)
	}
}

func (c *Client) bypasses(hostport string) bool {
	host := hostport
	if i := strings.LastIndex(hostport, ":"); i >= 0 {
		host = hostport[:i]
	}
	return c.bypass.Bypasses(host)
}

// Do executes req to completion (following redirects, attaching cookies,
// retrying classified-retryable failures) and returns the final response.
// The body is left as a live, unbuffered stream so Stream can decode it
// incrementally as bytes arrive; the one exception is a cacheable GET whose
// response carries a "Cache-Control: max-age=", which Do buffers (up to
// MaxBodySize) so a later identical request can be served from c.cache
// without touching the network.
func (c *Client) Do(ctx context.Context, req *Request) (*protocol.Response, error) {
	if req.err != nil {
		return nil, req.err
	}

	cancel := func() {}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	// cancel is invoked either on an early return below or, on success, once
	// the final response body is closed (bodyWithCancel) — deferring it here
	// unconditionally would abort an in-flight streaming read the instant Do
	// returns, which defeats the point of a streaming client.
	success := false
	defer func() {
		if !success {
			cancel()
		}
	}()

	traceID := uuid.NewString()
	preq := &protocol.Request{
		Method:        req.Method,
		URL:           req.URL,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}
	if preq.Header.Get("User-Agent") == "" {
		preq.Header.Set("User-Agent", c.userAgent)
	}
	for _, scheme := range req.auths {
		if err := scheme.Apply(ctx, &http.Request{Header: preq.Header, URL: preq.URL}); err != nil {
			return nil, err
		}
	}
	c.jar.Attach(preq)

	c.debug.RawRequest(fmt.Sprintf("%s %s [%s]", preq.Method, preq.URL, traceID), nil)

	cacheKey := ""
	if preq.Method == http.MethodGet {
		cacheKey = cache.Fingerprint(preq.Method, preq.URL.String(), preq.Header, nil)
		if entry, ok := c.cache.Get(cacheKey); ok {
			success = true
			return c.responseFromCacheEntry(entry, cancel), nil
		}
	}

	policy := redirect.NewPolicy(c.maxRedirect)
	current := preq
	var resp *protocol.Response
	for {
		var err error
		resp, err = c.executeWithRetry(ctx, current)
		if err != nil {
			return nil, err
		}
		c.jar.Store(current, resp)

		next, err := policy.Apply(current, resp)
		if err != nil {
			return nil, err
		}
		if next == nil {
			if cacheKey != "" {
				if ttl := cacheTTL(resp.Header); ttl > 0 {
					resp, err = c.bufferAndCache(resp, cacheKey, ttl)
					if err != nil {
						return nil, err
					}
				}
			}
			resp.Body = &bodyWithCancel{ReadCloser: resp.Body, cancel: cancel}
			success = true
			return resp, nil
		}
		resp.Body.Close()
		current = next
	}
}

// bufferAndCache reads resp's body into memory (capped at c.maxBodySize),
// stores it under cacheKey, and returns resp with a fresh reader over the
// buffered bytes so the caller can still consume it normally.
func (c *Client) bufferAndCache(resp *protocol.Response, cacheKey string, ttl time.Duration) (*protocol.Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, &NetworkError{Op: "buffer-response-body", Wrapped: err}
	}
	c.cache.GetOrBuild(cacheKey, ttl, func() (*cache.Entry, error) {
		return &cache.Entry{Body: body, Header: resp.Header.Clone(), StatusCode: resp.StatusCode}, nil
	})
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (c *Client) responseFromCacheEntry(e *cache.Entry, cancel context.CancelFunc) *protocol.Response {
	return &protocol.Response{
		StatusCode: e.StatusCode,
		Header:     e.Header,
		Body:       &bodyWithCancel{ReadCloser: io.NopCloser(bytes.NewReader(e.Body)), cancel: cancel},
	}
}

// cacheTTL extracts max-age from a Cache-Control response header, returning
// 0 if the response declared itself not cacheable or carries no freshness
// lifetime at all.
func cacheTTL(header http.Header) time.Duration {
	cc := header.Get("Cache-Control")
	if cc == "" {
		return 0
	}
	ttl := time.Duration(0)
	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(directive)
		if strings.EqualFold(directive, "no-store") || strings.EqualFold(directive, "no-cache") {
			return 0
		}
		if rest, ok := strings.CutPrefix(strings.ToLower(directive), "max-age="); ok {
			seconds, err := strconv.Atoi(rest)
			if err != nil || seconds <= 0 {
				return 0
			}
			ttl = time.Duration(seconds) * time.Second
		}
	}
	return ttl
}

// bodyWithCancel releases a Do-scoped context's resources once the caller
// finishes reading the response body, instead of the instant Do returns.
type bodyWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *bodyWithCancel) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

func (c *Client) executeWithRetry(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var resp *protocol.Response
	err := retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
		var execErr error
		resp, execErr = c.strategy.Execute(ctx, req)
		return execErr
	})
	return resp, err
}

// Stream executes req and decodes every value matching expr out of the
// response body as it arrives, without buffering the whole body.
func Stream[T any](ctx context.Context, c *Client, req *Request, expr *jsonpath.Expression) (iter.Seq2[streaming.Match[T], error], error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return streaming.Stream[T](ctx, resp.Body, expr), nil
}
