package httpstream

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manax-dev/httpstream/auth"
)

func TestNewRequest_ParsesURL(t *testing.T) {
	r := NewRequest(http.MethodGet, "https://example.com/a?x=1")
	require.NoError(t, r.err)
	require.Equal(t, "example.com", r.URL.Host)
	require.Equal(t, "x=1", r.URL.RawQuery)
}

func TestNewRequest_InvalidURLRecordsError(t *testing.T) {
	r := NewRequest(http.MethodGet, "://bad")
	require.Error(t, r.err)
}

func TestRequest_WithHeaderAndQuery(t *testing.T) {
	r := NewRequest(http.MethodGet, "https://example.com/a").
		WithHeader("Accept", "application/json").
		WithQuery("page", "2")

	require.Equal(t, "application/json", r.Header.Get("Accept"))
	require.Equal(t, "2", r.URL.Query().Get("page"))
}

func TestRequest_WithAuthAppendsScheme(t *testing.T) {
	r := NewRequest(http.MethodGet, "https://example.com/a").
		WithAuth(auth.Bearer("token-a")).
		WithAuth(auth.Basic{Username: "u", Password: "p"})

	require.Len(t, r.auths, 2)
}

func TestRequest_WithJSONBody(t *testing.T) {
	r := NewRequest(http.MethodPost, "https://example.com/a").
		WithJSONBody(map[string]string{"k": "v"})

	require.Equal(t, "application/json", r.Header.Get("Content-Type"))
	require.Greater(t, r.ContentLength, int64(0))
}

func TestRequest_WithFormBody(t *testing.T) {
	values := url.Values{"a": {"1"}}
	r := NewRequest(http.MethodPost, "https://example.com/a").WithFormBody(values)

	require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
	require.Equal(t, int64(len(values.Encode())), r.ContentLength)
}

func TestNewRequest_ContentLengthDefaultsToUnknown(t *testing.T) {
	r := NewRequest(http.MethodPost, "https://example.com/a")
	require.Equal(t, int64(-1), r.ContentLength)
}
