package transport

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolver_Override(t *testing.T) {
	r := NewResolver(nil, time.Minute)
	want := []netip.Addr{netip.MustParseAddr("203.0.113.10")}
	r.SetOverride("example.test", want)

	got, err := r.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	require.Equal(t, want, got)

	r.ClearOverride("example.test")
	_, err = r.Resolve(context.Background(), "example.test")
	require.Error(t, err)
}

func TestResolver_CachesUntilTTLExpires(t *testing.T) {
	r := NewResolver(nil, time.Minute)
	r.cache["cached.test"] = dnsCacheEntry{
		addrs:     []netip.Addr{netip.MustParseAddr("198.51.100.1")},
		expiresAt: time.Now().Add(time.Hour),
	}

	got, err := r.Resolve(context.Background(), "cached.test")
	require.NoError(t, err)
	require.Equal(t, []netip.Addr{netip.MustParseAddr("198.51.100.1")}, got)
}

func TestResolver_ExpiredCacheEntryIsIgnored(t *testing.T) {
	r := NewResolver(nil, time.Minute)
	r.cache["stale.test"] = dnsCacheEntry{
		addrs:     []netip.Addr{netip.MustParseAddr("198.51.100.2")},
		expiresAt: time.Now().Add(-time.Second),
	}

	_, err := r.Resolve(context.Background(), "stale.test")
	require.Error(t, err)
}

func TestResolver_OverrideBypassesCacheAndLookup(t *testing.T) {
	r := NewResolver(nil, time.Minute)
	r.cache["both.test"] = dnsCacheEntry{
		addrs:     []netip.Addr{netip.MustParseAddr("198.51.100.3")},
		expiresAt: time.Now().Add(time.Hour),
	}
	override := []netip.Addr{netip.MustParseAddr("203.0.113.20")}
	r.SetOverride("both.test", override)

	got, err := r.Resolve(context.Background(), "both.test")
	require.NoError(t, err)
	require.Equal(t, override, got)
}
