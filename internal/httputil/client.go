// Package httputil builds the shared hardened HTTP clients used by the
// thread API and the SSE stream transport.
// This package is internal and should not be imported by external projects.
package httputil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// hardenedTLSConfig returns a TLS 1.2+ config restricted to AEAD suites.
func hardenedTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

func transport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: hardenedTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// RequestClient returns a client for unary request/response calls.
func RequestClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport(),
	}
}

// StreamingClient returns a client for long-lived SSE connections. It
// carries no overall timeout: the connection stays open for the duration of
// a turn and is torn down by context cancellation, not by the client.
// openTimeout bounds only the wait for response headers.
func StreamingClient(openTimeout time.Duration) *http.Client {
	tr := transport()
	tr.ResponseHeaderTimeout = openTimeout
	return &http.Client{
		Transport: tr,
	}
}
