package proxyprotocol

import (
	"bufio"
	"net"
	"sync"
	"time"

	proxyproto "github.com/pires/go-proxyproto"
)

// DefaultHeaderTimeout is the maximum time to wait for a PROXY header when
// none is configured.
const DefaultHeaderTimeout = 5 * time.Second

// Conn is a net.Conn that reports the client addresses carried in an optional
// PROXY protocol (v1 or v2) header at the start of the stream.
//
// The header is parsed on the first call to Read, LocalAddr or RemoteAddr. A
// connection without a header is passed through unchanged.
type Conn struct {
	net.Conn

	reader        *bufio.Reader
	headerTimeout time.Duration

	once   sync.Once
	err    error
	local  net.Addr
	remote net.Addr
}

// NewConn wraps nc and parses its PROXY header immediately.
func NewConn(nc net.Conn) (*Conn, error) {
	c := newConn(nc, DefaultHeaderTimeout)
	if err := c.init(); err != nil {
		return nil, err
	}

	return c, nil
}

func newConn(nc net.Conn, headerTimeout time.Duration) *Conn {
	return &Conn{
		Conn:          nc,
		reader:        bufio.NewReader(nc),
		headerTimeout: headerTimeout,
	}
}

func (c *Conn) init() error {
	c.once.Do(func() {
		if c.headerTimeout > 0 {
			c.Conn.SetReadDeadline(time.Now().Add(c.headerTimeout))
			defer c.Conn.SetReadDeadline(time.Time{})
		}

		header, err := proxyproto.Read(c.reader)
		switch err {
		case nil:
			if header.Command == proxyproto.LOCAL {
				return
			}
			c.local = newProxyAddr(header.TransportProtocol, header.DestinationAddress, header.DestinationPort)
			c.remote = newProxyAddr(header.TransportProtocol, header.SourceAddress, header.SourcePort)
		case proxyproto.ErrNoProxyProtocol, proxyproto.ErrInvalidLength:
			// Not a PROXY connection, the buffered bytes are replayed by Read.
		default:
			c.err = err
		}
	})

	return c.err
}

// Read reads data from the connection, after any PROXY header.
func (c *Conn) Read(b []byte) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}

	return c.reader.Read(b)
}

// LocalAddr returns the destination address from the PROXY header, or the
// local address of the underlying connection.
func (c *Conn) LocalAddr() net.Addr {
	if c.init(); c.local != nil {
		return c.local
	}

	return c.Conn.LocalAddr()
}

// RemoteAddr returns the source address from the PROXY header, or the remote
// address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	if c.init(); c.remote != nil {
		return c.remote
	}

	return c.Conn.RemoteAddr()
}
