package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	httpstream "github.com/manax-dev/httpstream"
)

// ProxyDialer dials through an upstream proxy before handing back a plain
// net.Conn, so callers above it (protocol strategies) never need to know a
// proxy was involved.
type ProxyDialer struct {
	ProxyURL  *url.URL
	NetDialer *net.Dialer
}

// NewProxyDialer builds a ProxyDialer for proxyURL, whose scheme selects the
// handshake: "http"/"https" for CONNECT, "socks4"/"socks4a" for SOCKS4(a),
// "socks5"/"socks5h" for SOCKS5.
func NewProxyDialer(proxyURL *url.URL) *ProxyDialer {
	return &ProxyDialer{ProxyURL: proxyURL, NetDialer: &net.Dialer{}}
}

// DialContext connects to the proxy and negotiates access to targetHostPort,
// returning a net.Conn ready to speak the target protocol directly.
func (d *ProxyDialer) DialContext(ctx context.Context, targetHostPort string) (net.Conn, error) {
	conn, err := d.NetDialer.DialContext(ctx, "tcp", d.ProxyURL.Host)
	if err != nil {
		return nil, &httpstream.ProxyError{Wrapped: err}
	}

	switch scheme := strings.ToLower(d.ProxyURL.Scheme); scheme {
	case "http", "https":
		err = d.connectHTTP(conn, targetHostPort)
	case "socks5", "socks5h":
		err = d.connectSOCKS5(conn, targetHostPort)
	case "socks4", "socks4a":
		err = d.connectSOCKS4(conn, targetHostPort, scheme == "socks4a")
	default:
		conn.Close()
		return nil, &httpstream.ProxyError{Wrapped: fmt.Errorf("unsupported proxy scheme %q", d.ProxyURL.Scheme)}
	}
	if err != nil {
		conn.Close()
		return nil, &httpstream.ProxyError{Wrapped: err}
	}
	return conn, nil
}

func (d *ProxyDialer) connectHTTP(conn net.Conn, targetHostPort string) error {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: targetHostPort},
		Host:   targetHostPort,
		Header: make(http.Header),
	}
	if user := d.ProxyURL.User; user != nil {
		password, _ := user.Password()
		req.SetBasicAuth(user.Username(), password)
	}
	if err := req.Write(conn); err != nil {
		return err
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy CONNECT failed: %s", resp.Status)
	}
	return nil
}

// connectSOCKS5 implements the subset of RFC 1928 needed for outbound TCP
// CONNECT with no authentication or username/password authentication.
func (d *ProxyDialer) connectSOCKS5(conn net.Conn, targetHostPort string) error {
	authMethods := []byte{0x00} // no-auth
	hasAuth := d.ProxyURL.User != nil
	if hasAuth {
		authMethods = []byte{0x02, 0x00}
	}
	greeting := append([]byte{0x05, byte(len(authMethods))}, authMethods...)
	if _, err := conn.Write(greeting); err != nil {
		return err
	}
	reply := make([]byte, 2)
	if _, err := readFull(conn, reply); err != nil {
		return err
	}
	if reply[0] != 0x05 {
		return fmt.Errorf("socks5: unexpected version %d", reply[0])
	}
	switch reply[1] {
	case 0x00: // no auth required
	case 0x02:
		if err := d.socks5Auth(conn); err != nil {
			return err
		}
	default:
		return fmt.Errorf("socks5: no acceptable auth method (server chose %d)", reply[1])
	}

	host, portStr, err := net.SplitHostPort(targetHostPort)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	req := []byte{0x05, 0x01, 0x00, 0x03, byte(len(host))}
	req = append(req, []byte(host)...)
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, uint16(port))
	req = append(req, portBytes...)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	head := make([]byte, 4)
	if _, err := readFull(conn, head); err != nil {
		return err
	}
	if head[1] != 0x00 {
		return fmt.Errorf("socks5: connect request failed, code %d", head[1])
	}
	return discardSOCKS5Address(conn, head[3])
}

func (d *ProxyDialer) socks5Auth(conn net.Conn) error {
	password, _ := d.ProxyURL.User.Password()
	username := d.ProxyURL.User.Username()
	buf := []byte{0x01, byte(len(username))}
	buf = append(buf, []byte(username)...)
	buf = append(buf, byte(len(password)))
	buf = append(buf, []byte(password)...)
	if _, err := conn.Write(buf); err != nil {
		return err
	}
	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return err
	}
	if resp[1] != 0x00 {
		return fmt.Errorf("socks5: authentication failed")
	}
	return nil
}

// discardSOCKS5Address reads and discards the bound-address field of a
// SOCKS5 reply, whose length depends on addrType (IPv4, domain, or IPv6).
func discardSOCKS5Address(conn net.Conn, addrType byte) error {
	var n int
	switch addrType {
	case 0x01:
		n = 4
	case 0x03:
		lenByte := make([]byte, 1)
		if _, err := readFull(conn, lenByte); err != nil {
			return err
		}
		n = int(lenByte[0])
	case 0x04:
		n = 16
	default:
		return fmt.Errorf("socks5: unknown address type %d", addrType)
	}
	rest := make([]byte, n+2) // address plus 2-byte port
	_, err := readFull(conn, rest)
	return err
}

// connectSOCKS4 implements RFC 1928's predecessor for IPv4 targets (plus the
// SOCKS4a domain-name extension when domainExt is set).
func (d *ProxyDialer) connectSOCKS4(conn net.Conn, targetHostPort string, domainExt bool) error {
	host, portStr, err := net.SplitHostPort(targetHostPort)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	var ipBytes [4]byte
	var domain string
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		copy(ipBytes[:], ip.To4())
	} else if domainExt {
		ipBytes = [4]byte{0, 0, 0, 1} // invalid IP signals SOCKS4a domain mode
		domain = host
	} else {
		return fmt.Errorf("socks4: %q is not an IPv4 literal and SOCKS4a is not in use", host)
	}

	req := []byte{0x04, 0x01}
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, uint16(port))
	req = append(req, portBytes...)
	req = append(req, ipBytes[:]...)
	req = append(req, 0x00) // empty USERID
	if domain != "" {
		req = append(req, []byte(domain)...)
		req = append(req, 0x00)
	}
	if _, err := conn.Write(req); err != nil {
		return err
	}

	reply := make([]byte, 8)
	if _, err := readFull(conn, reply); err != nil {
		return err
	}
	if reply[1] != 0x5a {
		return fmt.Errorf("socks4: request rejected or failed, code %d", reply[1])
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
