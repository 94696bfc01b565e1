package transport

import (
	"context"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProxyDialer_ConnectHTTP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		_ = n
		conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	}()

	proxyURL := &url.URL{Scheme: "http", Host: ln.Addr().String()}
	d := NewProxyDialer(proxyURL)
	conn, err := d.DialContext(context.Background(), "upstream.example.com:443")
	require.NoError(t, err)
	defer conn.Close()
}

func TestProxyDialer_ConnectHTTPFailureStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
	}()

	proxyURL := &url.URL{Scheme: "http", Host: ln.Addr().String()}
	d := NewProxyDialer(proxyURL)
	_, err = d.DialContext(context.Background(), "upstream.example.com:443")
	require.Error(t, err)
}

func TestProxyDialer_ConnectSOCKS5NoAuth(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		greeting := make([]byte, 2)
		readFull(conn, greeting)
		nmethods := int(greeting[1])
		readFull(conn, make([]byte, nmethods))
		conn.Write([]byte{0x05, 0x00})

		head := make([]byte, 5)
		readFull(conn, head)
		hostLen := int(head[4])
		readFull(conn, make([]byte, hostLen+2))

		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}()

	proxyURL := &url.URL{Scheme: "socks5", Host: ln.Addr().String()}
	d := NewProxyDialer(proxyURL)
	conn, err := d.DialContext(context.Background(), "upstream.example.com:443")
	require.NoError(t, err)
	defer conn.Close()
}

func TestProxyDialer_ConnectSOCKS5AuthFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		greeting := make([]byte, 2)
		readFull(conn, greeting)
		nmethods := int(greeting[1])
		readFull(conn, make([]byte, nmethods))
		conn.Write([]byte{0x05, 0x02}) // server insists on user/pass auth

		authHead := make([]byte, 2)
		readFull(conn, authHead)
		ulen := int(authHead[1])
		readFull(conn, make([]byte, ulen))
		plenBuf := make([]byte, 1)
		readFull(conn, plenBuf)
		readFull(conn, make([]byte, int(plenBuf[0])))

		conn.Write([]byte{0x01, 0x01}) // auth failed
	}()

	proxyURL := &url.URL{Scheme: "socks5", Host: ln.Addr().String(), User: url.UserPassword("bob", "secret")}
	d := NewProxyDialer(proxyURL)
	_, err = d.DialContext(context.Background(), "upstream.example.com:443")
	require.Error(t, err)
}

func TestProxyDialer_ConnectSOCKS4a(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		head := make([]byte, 8)
		readFull(conn, head)
		// drain USERID\0 and domain\0
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil || buf[0] == 0 {
				break
			}
		}
		for {
			if _, err := conn.Read(buf); err != nil || buf[0] == 0 {
				break
			}
		}
		conn.Write([]byte{0x00, 0x5a, 0, 0, 0, 0, 0, 0})
	}()

	proxyURL := &url.URL{Scheme: "socks4a", Host: ln.Addr().String()}
	d := NewProxyDialer(proxyURL)
	conn, err := d.DialContext(context.Background(), "upstream.example.com:443")
	require.NoError(t, err)
	defer conn.Close()
}

func TestProxyDialer_UnsupportedScheme(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	proxyURL := &url.URL{Scheme: "ftp", Host: ln.Addr().String()}
	d := NewProxyDialer(proxyURL)
	_, err = d.DialContext(context.Background(), "upstream.example.com:443")
	require.Error(t, err)
}
