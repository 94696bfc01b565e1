package protocol

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestH1Strategy_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	strat := NewH1Strategy(nil)
	resp, err := strat.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    u,
		Header: http.Header{},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "yes", resp.Header.Get("X-Test"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Equal(t, "h1", strat.ProtocolName())
	require.False(t, strat.SupportsPush())
	require.Equal(t, 1, strat.MaxConcurrentStreams())
}

func TestH1Strategy_ConnectionRefused(t *testing.T) {
	u, err := url.Parse("http://127.0.0.1:1")
	require.NoError(t, err)
	strat := NewH1Strategy(nil)
	_, err = strat.Execute(context.Background(), &Request{Method: http.MethodGet, URL: u, Header: http.Header{}})
	require.Error(t, err)
}
