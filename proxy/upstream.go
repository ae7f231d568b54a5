package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultUpstreamURL is the upstream origin used when none is configured.
const DefaultUpstreamURL = "https://generativelanguage.googleapis.com"

// Upstream describes the fixed server that requests are forwarded to.
type Upstream struct {
	url      string
	base     string
	path     string
	origin   string
	hostname string
	host     string
}

// ParseUpstream parses the configured upstream URL. It must be an absolute
// http or https URL with a host.
func ParseUpstream(raw string) (*Upstream, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid upstream URL %q: scheme must be http or https", raw)
	}

	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: missing host", raw)
	}

	if u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: must not contain credentials, a query or a fragment", raw)
	}

	host := u.Host
	if port := u.Port(); isDefaultPort(u.Scheme, port) {
		host = u.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}

	base := strings.TrimRight(raw, "/")
	path := ""
	if _, rest, ok := strings.Cut(base, "://"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			path = rest[i:]
		}
	}

	return &Upstream{
		url:      raw,
		base:     base,
		path:     path,
		origin:   u.Scheme + "://" + host,
		hostname: u.Hostname(),
		host:     u.Host,
	}, nil
}

// MustParseUpstream is like ParseUpstream but panics on error.
func MustParseUpstream(raw string) *Upstream {
	upstream, err := ParseUpstream(raw)
	if err != nil {
		panic(err)
	}

	return upstream
}

// URL returns the upstream URL as configured. It is sent as the Referer.
func (upstream *Upstream) URL() string {
	return upstream.url
}

// Origin returns the scheme and host of the upstream, omitting a default
// port. It is sent as the Origin.
func (upstream *Upstream) Origin() string {
	return upstream.origin
}

// Hostname returns the upstream host name without a port. It is sent as the
// Host.
func (upstream *Upstream) Hostname() string {
	return upstream.hostname
}

// Address returns the upstream host, including the port if one was
// configured.
func (upstream *Upstream) Address() string {
	return upstream.host
}

// Target returns the URL to forward a request with the given request URI to.
// The request URI is appended verbatim, without any normalization.
func (upstream *Upstream) Target(requestURI string) string {
	return upstream.base + requestURI
}

// Opaque returns the URL.Opaque value that makes the request line sent
// upstream carry the path of requestURI exactly as received. net/url would
// otherwise re-escape characters such as '|' and '^'.
func (upstream *Upstream) Opaque(requestURI string) string {
	path, _, _ := strings.Cut(requestURI, "?")
	opaque := upstream.path + path

	// A leading "//" would be read as an authority.
	if strings.HasPrefix(opaque, "//") {
		return "//" + upstream.host + opaque
	}

	return opaque
}

func isDefaultPort(scheme, port string) bool {
	return port == "" ||
		(scheme == "http" && port == "80") ||
		(scheme == "https" && port == "443")
}

// splitHost returns the host portion of a "host:port" address, or the address
// itself if it has no port.
func splitHost(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}

	return host
}
