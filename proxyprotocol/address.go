package proxyprotocol

import (
	"net"

	proxyproto "github.com/pires/go-proxyproto"
)

// newProxyAddr returns the net.Addr described by a PROXY header address, or
// nil if the header carries no usable address.
func newProxyAddr(proto proxyproto.AddressFamilyAndProtocol, ip net.IP, port uint16) net.Addr {
	if ip == nil {
		return nil
	}

	switch {
	case proto.IsUnix():
		network := "unix"
		if !proto.IsStream() {
			network = "unixgram"
		}
		return &net.UnixAddr{Net: network, Name: ip.String()}
	case !proto.IsStream() && !proto.IsUnspec():
		return &net.UDPAddr{IP: ip, Port: int(port)}
	default:
		return &net.TCPAddr{IP: ip, Port: int(port)}
	}
}
