package redirect

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	httpstream "github.com/manax-dev/httpstream"
	"github.com/manax-dev/httpstream/protocol"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestPolicy_NotARedirect(t *testing.T) {
	p := NewPolicy(0)
	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	resp := &protocol.Response{StatusCode: http.StatusOK, Header: make(http.Header)}
	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestPolicy_CrossOriginStripsSensitiveHeaders(t *testing.T) {
	p := NewPolicy(0)
	header := make(http.Header)
	header.Set("Authorization", "Bearer secret")
	header.Set("Cookie", "a=b")
	header.Set("X-Keep-Me", "yes")
	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: header}

	respHeader := make(http.Header)
	respHeader.Set("Location", "https://other.example.net/b")
	resp := &protocol.Response{StatusCode: http.StatusFound, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Empty(t, next.Header.Get("Authorization"))
	require.Empty(t, next.Header.Get("Cookie"))
	require.Equal(t, "yes", next.Header.Get("X-Keep-Me"))
	require.Equal(t, "https://other.example.net/b", next.URL.String())
}

func TestPolicy_SameOriginPreservesHeaders(t *testing.T) {
	p := NewPolicy(0)
	header := make(http.Header)
	header.Set("Authorization", "Bearer secret")
	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: header}

	respHeader := make(http.Header)
	respHeader.Set("Location", "/b")
	resp := &protocol.Response{StatusCode: http.StatusFound, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", next.Header.Get("Authorization"))
}

func TestPolicy_RefererOmittedOnHTTPSDowngrade(t *testing.T) {
	p := NewPolicy(0)
	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	respHeader := make(http.Header)
	respHeader.Set("Location", "http://example.com/b")
	resp := &protocol.Response{StatusCode: http.StatusFound, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.Empty(t, next.Header.Get("Referer"))
}

func TestPolicy_RefererSetOnSameSchemeHop(t *testing.T) {
	p := NewPolicy(0)
	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	respHeader := make(http.Header)
	respHeader.Set("Location", "https://example.com/b")
	resp := &protocol.Response{StatusCode: http.StatusFound, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a", next.Header.Get("Referer"))
}

func TestPolicy_SeeOtherRewritesToGET(t *testing.T) {
	p := NewPolicy(0)
	prev := &protocol.Request{Method: http.MethodPost, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	respHeader := make(http.Header)
	respHeader.Set("Location", "https://example.com/b")
	resp := &protocol.Response{StatusCode: http.StatusSeeOther, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, next.Method)
	require.Nil(t, next.Body)
}

func TestPolicy_TemporaryRedirectPreservesMethod(t *testing.T) {
	p := NewPolicy(0)
	prev := &protocol.Request{Method: http.MethodPost, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	respHeader := make(http.Header)
	respHeader.Set("Location", "https://example.com/b")
	resp := &protocol.Response{StatusCode: http.StatusTemporaryRedirect, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, next.Method)
}

func TestPolicy_TooManyRedirects(t *testing.T) {
	p := NewPolicy(2)
	respHeader := make(http.Header)
	resp := &protocol.Response{StatusCode: http.StatusFound, Header: respHeader}

	for i := 0; i < 2; i++ {
		prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
		respHeader.Set("Location", "https://example.com/next"+string(rune('0'+i)))
		_, err := p.Apply(prev, resp)
		require.NoError(t, err)
	}

	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	respHeader.Set("Location", "https://example.com/one-too-many")
	_, err := p.Apply(prev, resp)
	require.Error(t, err)
	var tooMany *httpstream.TooManyRedirectsError
	require.ErrorAs(t, err, &tooMany)
}

func TestPolicy_LoopDetected(t *testing.T) {
	p := NewPolicy(0)
	prev := &protocol.Request{Method: http.MethodGet, URL: mustURL(t, "https://example.com/a"), Header: make(http.Header)}
	respHeader := make(http.Header)
	respHeader.Set("Location", "https://example.com/b")
	resp := &protocol.Response{StatusCode: http.StatusFound, Header: respHeader}

	next, err := p.Apply(prev, resp)
	require.NoError(t, err)

	// The server now redirects back to the original URL, closing the loop.
	respHeader.Set("Location", "https://example.com/a")
	_, err = p.Apply(next, resp)
	require.Error(t, err)
	var loopErr *httpstream.RedirectLoopError
	require.ErrorAs(t, err, &loopErr)
}
