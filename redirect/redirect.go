// Package redirect implements the redirect-following policy: cross-origin
// header stripping, Referer emission, loop detection, and the chain-length
// cap.
package redirect

import (
	"net/http"
	"net/url"

	httpstream "github.com/manax-dev/httpstream"
	"github.com/manax-dev/httpstream/protocol"
)

const defaultMaxRedirects = 10

var sensitiveHeaders = []string{
	"Authorization",
	"Cookie",
	"Proxy-Authorization",
	"WWW-Authenticate",
}

// Policy decides whether and how to follow a redirect response.
type Policy struct {
	// Max is the maximum number of redirects to follow before returning
	// TooManyRedirectsError. Zero selects the package default of 10.
	Max int

	count   int
	visited map[string]bool
}

// NewPolicy builds a Policy with the given chain cap (0 selects the default
// of 10).
func NewPolicy(max int) *Policy {
	return &Policy{Max: max, visited: make(map[string]bool)}
}

// Apply inspects resp for a redirect status and, if one is found, builds the
// next request to issue: rewriting the URL against resp's Location header,
// stripping sensitive headers on a cross-origin hop, and setting Referer
// unless doing so would downgrade HTTPS to HTTP. It returns (nil, nil) when
// resp is not a redirect.
func (p *Policy) Apply(prev *protocol.Request, resp *protocol.Response) (*protocol.Request, error) {
	if !isRedirectStatus(resp.StatusCode) {
		return nil, nil
	}

	max := p.Max
	if max <= 0 {
		max = defaultMaxRedirects
	}
	if p.visited == nil {
		p.visited = make(map[string]bool)
	}
	if p.count >= max {
		return nil, &httpstream.TooManyRedirectsError{Max: max}
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, &httpstream.ProtocolError{HTTPVersion: resp.Proto, Message: "redirect response missing Location header"}
	}
	next, err := prev.URL.Parse(loc)
	if err != nil {
		return nil, &httpstream.ProtocolError{HTTPVersion: resp.Proto, Message: "invalid redirect Location: " + err.Error()}
	}

	key := next.String()
	if p.visited[key] {
		return nil, &httpstream.RedirectLoopError{URL: key}
	}
	p.visited[prev.URL.String()] = true
	p.count++

	method := redirectMethod(prev.Method, resp.StatusCode)
	header := prev.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	if crossOrigin(prev.URL, next) {
		for _, h := range sensitiveHeaders {
			header.Del(h)
		}
	}

	if !isDowngrade(prev.URL, next) {
		header.Set("Referer", stripUserinfo(prev.URL).String())
	} else {
		header.Del("Referer")
	}

	body := prev.Body
	contentLength := prev.ContentLength
	if method != prev.Method {
		// 303 (and 301/302 historically for non-HEAD) turns the retry into a
		// bodyless GET.
		body = nil
		contentLength = 0
		header.Del("Content-Type")
		header.Del("Content-Length")
	}

	return &protocol.Request{
		Method:        method,
		URL:           next,
		Header:        header,
		Body:          body,
		ContentLength: contentLength,
	}, nil
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// redirectMethod applies the standard HTTP redirect method-rewrite rules:
// 303 always becomes GET; 301/302 become GET for non-HEAD requests (the
// long-standing browser-compatible behavior), 307/308 always preserve the
// original method.
func redirectMethod(method string, status int) string {
	switch status {
	case http.StatusSeeOther:
		return http.MethodGet
	case http.StatusMovedPermanently, http.StatusFound:
		if method != http.MethodHead {
			return http.MethodGet
		}
		return method
	default:
		return method
	}
}

func crossOrigin(a, b *url.URL) bool {
	return a.Hostname() != b.Hostname() || defaultPort(a) != defaultPort(b)
}

func defaultPort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}

func isDowngrade(from, to *url.URL) bool {
	return from.Scheme == "https" && to.Scheme == "http"
}

func stripUserinfo(u *url.URL) *url.URL {
	clone := *u
	clone.User = nil
	return &clone
}
