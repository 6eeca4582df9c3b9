package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// TransportConfig contains limits of the underlying connections.
// The request timeout itself is enforced by the caller through the context.
type TransportConfig struct {
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	MaxConnectionsPerHost int
	// HTTP2PingTimeout is used only by the HTTP2Transport.
	HTTP2PingTimeout time.Duration
}

// DefaultTransportConfig returns reasonable connection limits.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:           3 * time.Second,
		KeepAlive:             10 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxConnectionsPerHost: 32,
		HTTP2PingTimeout:      3 * time.Second,
	}
}

// DefaultTransport default transport with reasonable limits.
func DefaultTransport() http.RoundTripper {
	return NewTransport(DefaultTransportConfig())
}

// NewTransport creates a HTTP/1.1 transport which upgrades to HTTP2 when the server supports it.
func NewTransport(cfg TransportConfig) http.RoundTripper {
	dialer := NewDialer(cfg)
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		MaxConnsPerHost:       cfg.MaxConnectionsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxConnectionsPerHost,
	}
}

// HTTP2Transport forces HTTP2 protocol.
func HTTP2Transport() http.RoundTripper {
	cfg := DefaultTransportConfig()
	dialer := NewDialer(cfg)
	return &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
			tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsCfg}
			return tlsDialer.DialContext(ctx, network, addr)
		},
		ReadIdleTimeout:  cfg.HTTP2PingTimeout,
		PingTimeout:      cfg.HTTP2PingTimeout,
		WriteByteTimeout: cfg.HTTP2PingTimeout,
	}
}

// NewDialer creates a dialer with the configured timeouts.
func NewDialer(cfg TransportConfig) *net.Dialer {
	return &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}
}
