package transport

import (
	"crypto/tls"
	"crypto/x509"
	"sync"

	httpstream "github.com/manax-dev/httpstream"
)

// TLSManager owns the tls.Config used for outgoing connections and caches
// parsed client certificates so repeated dials to the same authority don't
// re-parse PEM material.
type TLSManager struct {
	rootCAs            *x509.CertPool
	insecureSkipVerify bool
	nextProtos         []string

	mu    sync.Mutex
	certs map[string]tls.Certificate
}

// NewTLSManager builds a TLSManager. A nil rootCAs uses the system pool.
func NewTLSManager(rootCAs *x509.CertPool) *TLSManager {
	return &TLSManager{rootCAs: rootCAs, certs: make(map[string]tls.Certificate)}
}

// WithInsecureSkipVerify disables certificate verification. Only meant for
// test fixtures against self-signed endpoints.
func (m *TLSManager) WithInsecureSkipVerify() *TLSManager {
	m.insecureSkipVerify = true
	return m
}

// WithNextProtos sets the ALPN protocol list advertised during handshake.
func (m *TLSManager) WithNextProtos(protos ...string) *TLSManager {
	m.nextProtos = protos
	return m
}

// LoadClientCert parses and caches a client certificate keyed by the
// (certFile, keyFile) pair, so
// a connection pool dialing the same mTLS-protected authority repeatedly
// doesn't re-parse the same PEM bytes.
func (m *TLSManager) LoadClientCert(certFile, keyFile string) (tls.Certificate, error) {
	key := certFile + "|" + keyFile
	m.mu.Lock()
	defer m.mu.Unlock()
	if cert, ok := m.certs[key]; ok {
		return cert, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, &httpstream.TLSError{Wrapped: err}
	}
	m.certs[key] = cert
	return cert, nil
}

// Config builds a fresh *tls.Config for serverName, reflecting whatever
// client certificates have been loaded so far.
func (m *TLSManager) Config(serverName string) *tls.Config {
	m.mu.Lock()
	certs := make([]tls.Certificate, 0, len(m.certs))
	for _, c := range m.certs {
		certs = append(certs, c)
	}
	m.mu.Unlock()
	return &tls.Config{
		ServerName:         serverName,
		RootCAs:            m.rootCAs,
		InsecureSkipVerify: m.insecureSkipVerify,
		NextProtos:         m.nextProtos,
		Certificates:       certs,
	}
}
