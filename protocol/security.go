package protocol

import "net/netip"

// isDisallowedQUICPeer reports whether addr is a target an H3 strategy must
// refuse to dial: UDP to reserved, multicast, link-local, or class-E ranges
// is a known amplification/SSRF vector that TCP-based strategies don't share
// (a TCP SYN to those ranges typically just fails; a QUIC handshake can be
// coaxed into reflecting traffic). Ported from the original client's
// protocols/h3 peer-address validation.
func isDisallowedQUICPeer(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	a := addr.Unmap()
	switch {
	case a.IsLoopback(),
		a.IsMulticast(),
		a.IsLinkLocalUnicast(),
		a.IsLinkLocalMulticast(),
		a.IsUnspecified():
		return true
	}
	if a.Is4() {
		b := a.As4()
		// 240.0.0.0/4 (class E, reserved) and 0.0.0.0/8.
		if b[0] >= 240 || b[0] == 0 {
			return true
		}
	}
	return false
}
