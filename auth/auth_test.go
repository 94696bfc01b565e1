package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestBearer_Apply(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, Bearer("tok123").Apply(context.Background(), req))
	require.Equal(t, "Bearer tok123", req.Header.Get("Authorization"))
}

func TestBasic_Apply(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, Basic{Username: "u", Password: "p"}.Apply(context.Background(), req))
	require.Equal(t, "Basic "+encodeBasicAuth("u", "p"), req.Header.Get("Authorization"))
	require.Contains(t, req.Header.Get("Authorization"), "Basic ")
}

func TestAPIKey_Header(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	k := APIKey{Name: "X-Api-Key", Value: "secret", Location: APIKeyInHeader}
	require.NoError(t, k.Apply(context.Background(), req))
	require.Equal(t, "secret", req.Header.Get("X-Api-Key"))
}

func TestAPIKey_Query(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/path", nil)
	k := APIKey{Name: "api_key", Value: "secret", Location: APIKeyInQuery}
	require.NoError(t, k.Apply(context.Background(), req))
	require.Equal(t, "secret", req.URL.Query().Get("api_key"))
}

func TestOAuth2TokenSource_Apply(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "refreshed-token"})
	require.NoError(t, OAuth2TokenSource{Source: ts}.Apply(context.Background(), req))
	require.Equal(t, "Bearer refreshed-token", req.Header.Get("Authorization"))
}
