package proxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// TransportOptions configures the HTTP transport used to contact the
// upstream server.
type TransportOptions struct {
	// DialTimeout is the maximum time to wait for a TCP connection.
	DialTimeout time.Duration

	// ResponseHeaderTimeout is the maximum time to wait for the upstream
	// response headers after the request has been written. Zero means no
	// limit.
	ResponseHeaderTimeout time.Duration

	// IdleConnTimeout is the maximum time an idle upstream connection is kept.
	IdleConnTimeout time.Duration

	// TLSConfig is the TLS client configuration, or nil for the defaults.
	TLSConfig *tls.Config
}

// NewTransport returns an HTTP/2-capable transport for upstream requests.
//
// Automatic compression is disabled so that the client's Accept-Encoding
// header is forwarded as-is; response bodies are decoded by the handler.
func NewTransport(opts TransportOptions) (*http.Transport, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}

	if opts.IdleConnTimeout == 0 {
		opts.IdleConnTimeout = 90 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       opts.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		DisableCompression:    true,
		TLSClientConfig:       opts.TLSConfig,
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}

	return transport, nil
}
