package httpstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/manax-dev/httpstream/auth"
)

// Request is the fluent request-builder surface: method chaining over a
// plain struct, matching the teacher's option-chaining idiom (`Model.
// WithBeta()`, `.WithMaxTokens()`) rather than a separate builder type.
type Request struct {
	Method        string
	URL           *url.URL
	Header        http.Header
	Body          io.Reader
	ContentLength int64

	auths []auth.Scheme
	err   error
}

// NewRequest builds a Request for method and rawURL. A malformed rawURL is
// recorded and surfaced the first time the request is executed, mirroring
// http.NewRequest's fail-late style but fitting the chaining builder shape.
func NewRequest(method, rawURL string) *Request {
	r := &Request{Method: method, Header: make(http.Header), ContentLength: -1}
	u, err := url.Parse(rawURL)
	if err != nil {
		r.err = fmt.Errorf("httpstream: invalid request URL %q: %w", rawURL, err)
		return r
	}
	r.URL = u
	return r
}

// WithHeader sets a single header value, replacing any existing one.
func (r *Request) WithHeader(key, value string) *Request {
	r.Header.Set(key, value)
	return r
}

// WithQuery sets a query string parameter on the request URL.
func (r *Request) WithQuery(key, value string) *Request {
	if r.URL == nil {
		return r
	}
	q := r.URL.Query()
	q.Set(key, value)
	r.URL.RawQuery = q.Encode()
	return r
}

// WithAuth attaches an auth.Scheme to be applied right before the request is
// sent. Multiple schemes apply in the order they were added.
func (r *Request) WithAuth(scheme auth.Scheme) *Request {
	r.auths = append(r.auths, scheme)
	return r
}

// WithBody sets a raw body reader and its known content length (-1 if the
// length isn't known up front, e.g. a streaming body).
func (r *Request) WithBody(body io.Reader, contentLength int64) *Request {
	r.Body = body
	r.ContentLength = contentLength
	return r
}

// WithJSONBody marshals v and sets it as the request body, setting
// "Content-Type: application/json" in the process.
func (r *Request) WithJSONBody(v any) *Request {
	data, err := json.Marshal(v)
	if err != nil {
		r.err = fmt.Errorf("httpstream: marshaling JSON body: %w", err)
		return r
	}
	r.Header.Set("Content-Type", "application/json")
	r.Body = bytes.NewReader(data)
	r.ContentLength = int64(len(data))
	return r
}

// WithFormBody sets an application/x-www-form-urlencoded body from values.
func (r *Request) WithFormBody(values url.Values) *Request {
	data := []byte(values.Encode())
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Body = bytes.NewReader(data)
	r.ContentLength = int64(len(data))
	return r
}
