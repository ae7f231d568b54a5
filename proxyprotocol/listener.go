package proxyprotocol

import (
	"net"
	"time"
)

// Listener is a net.Listener that accepts connections which may begin with a
// PROXY protocol header.
type Listener struct {
	net.Listener

	// HeaderTimeout bounds the time spent waiting for a PROXY header. Zero
	// means DefaultHeaderTimeout.
	HeaderTimeout time.Duration
}

// NewListener returns a Listener wrapping l.
func NewListener(l net.Listener) *Listener {
	return &Listener{Listener: l}
}

// Accept waits for and returns the next connection to the listener. The PROXY
// header is read lazily, so a slow client does not block other connections.
func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	timeout := l.HeaderTimeout
	if timeout == 0 {
		timeout = DefaultHeaderTimeout
	}

	return newConn(c, timeout), nil
}
