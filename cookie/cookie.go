// Package cookie adapts the standard library's cookie jar to this module's
// protocol-agnostic Request/Response types, so a client can carry cookies
// across hops without each protocol strategy knowing about them.
package cookie

import (
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"

	"github.com/manax-dev/httpstream/protocol"
)

// Jar stores cookies across requests, honoring RFC 6265 domain/path
// matching via the standard library's jar with a public-suffix list so
// cross-site cookies aren't set against registrable-domain boundaries.
type Jar struct {
	jar *cookiejar.Jar
}

// NewJar builds an empty Jar.
func NewJar() (*Jar, error) {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Jar{jar: j}, nil
}

// Attach sets the Cookie header on req from whatever the jar holds for
// req.URL.
func (j *Jar) Attach(req *protocol.Request) {
	cookies := j.jar.Cookies(req.URL)
	if len(cookies) == 0 {
		return
	}
	fake := &http.Request{Header: make(http.Header)}
	for _, c := range cookies {
		fake.AddCookie(c)
	}
	if v := fake.Header.Get("Cookie"); v != "" {
		req.Header.Set("Cookie", v)
	}
}

// Store reads any Set-Cookie headers off resp and records them against
// reqURL's jar entry.
func (j *Jar) Store(req *protocol.Request, resp *protocol.Response) {
	fake := &http.Response{Header: resp.Header}
	cookies := fake.Cookies()
	if len(cookies) == 0 {
		return
	}
	j.jar.SetCookies(req.URL, cookies)
}
