// Package httpclient builds the outbound HTTP clients the service
// uses to reach its upstreams: the embedding and rerank endpoints,
// the chat completion API and Qdrant. Every client shares the same
// hardened transport so connection pooling and TLS policy live in
// one place.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Upstream fan-out is small (four services), but multi-query
// expansion can put several Qdrant searches in flight per request.
const (
	maxIdleConns        = 64
	maxIdlePerHost      = 16
	idleConnTimeout     = 90 * time.Second
	dialTimeout         = 10 * time.Second
	keepAliveInterval   = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// New returns a client with the shared transport and the given
// overall request timeout. A zero timeout means no client-side
// deadline; callers then bound requests through the context.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAliveInterval,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsConfig(),
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

// tlsConfig requires TLS 1.2 and restricts TLS 1.2 connections to
// AEAD suites. TLS 1.3 suite selection is not configurable and is
// already AEAD-only.
func tlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}
