package proxy

import (
	"net/http"

	"github.com/golang/gddo/httputil/header"
	"github.com/zsjsll/gemini-proxy/credential"
)

// isHopByHopHeader checks if a given header name is a Hop-by-Hop header, and
// hence should not be forwarded to the upstream server. The name is matched
// case-insensitively.
func isHopByHopHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case
		"Connection",
		"Proxy-Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Te",
		"Trailer",
		"Trailers",
		"Transfer-Encoding",
		"Upgrade":
		return true
	default:
		return false
	}
}

// isExcludedResponseHeader checks if a given upstream response header must not
// be relayed to the client. Framing is owned by this server, and HSTS would
// otherwise be pinned to the proxy's own host name.
func isExcludedResponseHeader(name string) bool {
	switch name {
	case
		"Content-Encoding",
		"Transfer-Encoding",
		"Connection",
		"Strict-Transport-Security":
		return true
	default:
		return false
	}
}

// prepareUpstreamHeaders creates the set of headers that are forwarded to the
// upstream server for the given request.
//
// The inbound credential headers are always removed; if a credential was
// selected it is re-injected using the convention of src.
func prepareUpstreamHeaders(
	request *http.Request,
	upstream *Upstream,
	src credential.Source,
	selected string,
) http.Header {
	connectionHeaders := map[string]struct{}{}
	for _, name := range header.ParseList(request.Header, "Connection") {
		connectionHeaders[http.CanonicalHeaderKey(name)] = struct{}{}
	}

	headers := make(http.Header, len(request.Header)+4)
	for name, values := range request.Header {
		if isHopByHopHeader(name) {
			continue
		}
		if _, ok := connectionHeaders[http.CanonicalHeaderKey(name)]; ok {
			continue
		}
		headers[name] = append([]string(nil), values...)
	}

	credential.Strip(headers)
	src.Apply(headers, selected)

	headers.Set("Origin", upstream.Origin())
	headers.Set("Referer", upstream.URL())

	if headers.Get("X-Forwarded-For") == "" {
		headers.Set("X-Forwarded-For", splitHost(request.RemoteAddr))
	}

	if headers.Get("X-Forwarded-Proto") == "" {
		headers.Set("X-Forwarded-Proto", requestScheme(request))
	}

	return headers
}

// copyResponseHeaders copies the upstream response headers in src to dst,
// except for those that must not be relayed.
func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		if !isExcludedResponseHeader(name) {
			dst[name] = append([]string(nil), values...)
		}
	}
}

func requestScheme(request *http.Request) string {
	if request.TLS != nil {
		return "https"
	}

	return "http"
}
