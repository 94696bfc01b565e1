package protocol

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDisallowedQUICPeer(t *testing.T) {
	cases := []struct {
		addr      string
		disallow  bool
	}{
		{"93.184.216.34", false},     // ordinary public IPv4
		{"127.0.0.1", true},          // loopback
		{"224.0.0.1", true},          // multicast
		{"169.254.1.1", true},        // link-local
		{"0.0.0.0", true},            // unspecified
		{"241.1.2.3", true},          // class E
		{"2001:db8::1", false},       // ordinary public IPv6 (documentation range, not reserved here)
		{"::1", true},                // IPv6 loopback
	}
	for _, c := range cases {
		addr := netip.MustParseAddr(c.addr)
		assert.Equal(t, c.disallow, isDisallowedQUICPeer(addr), "addr %s", c.addr)
	}
}

func TestIsDisallowedQUICPeer_Invalid(t *testing.T) {
	var zero netip.Addr
	assert.True(t, isDisallowedQUICPeer(zero))
}
