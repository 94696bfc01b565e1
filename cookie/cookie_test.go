package cookie

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manax-dev/httpstream/protocol"
)

func TestJar_StoreThenAttach(t *testing.T) {
	j, err := NewJar()
	require.NoError(t, err)

	u, err := url.Parse("https://example.com/path")
	require.NoError(t, err)

	respHeader := make(http.Header)
	respHeader.Add("Set-Cookie", "session=abc123; Path=/")
	resp := &protocol.Response{Header: respHeader}
	storeReq := &protocol.Request{URL: u, Header: make(http.Header)}
	j.Store(storeReq, resp)

	attachReq := &protocol.Request{URL: u, Header: make(http.Header)}
	j.Attach(attachReq)
	require.Contains(t, attachReq.Header.Get("Cookie"), "session=abc123")
}

func TestJar_AttachWithNoCookiesIsNoop(t *testing.T) {
	j, err := NewJar()
	require.NoError(t, err)
	u, err := url.Parse("https://nothing-stored.example.com")
	require.NoError(t, err)

	req := &protocol.Request{URL: u, Header: make(http.Header)}
	j.Attach(req)
	require.Empty(t, req.Header.Get("Cookie"))
}

func TestJar_CookiesScopedToDomain(t *testing.T) {
	j, err := NewJar()
	require.NoError(t, err)

	uA, err := url.Parse("https://a.example.com/")
	require.NoError(t, err)
	uB, err := url.Parse("https://b.example.com/")
	require.NoError(t, err)

	respHeader := make(http.Header)
	respHeader.Add("Set-Cookie", "only_a=1; Path=/")
	resp := &protocol.Response{Header: respHeader}
	j.Store(&protocol.Request{URL: uA, Header: make(http.Header)}, resp)

	reqB := &protocol.Request{URL: uB, Header: make(http.Header)}
	j.Attach(reqB)
	require.Empty(t, reqB.Header.Get("Cookie"))
}
