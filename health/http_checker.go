package health

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"

	proxyproto "github.com/pires/go-proxyproto"
)

const requestHost = "localhost"

// HTTPChecker is a checker that requests the root path of the proxy listener
// to check its status.
type HTTPChecker struct {
	// Address is the "host:port" of the proxy listener. An empty host means
	// localhost.
	Address string

	// TLS is true if the listener serves HTTPS.
	TLS bool

	// Client is the HTTP client used for the check. If it is nil a client is
	// built by NewClient.
	Client *http.Client
}

// Check returns information about the health of the proxy listener.
func (checker *HTTPChecker) Check(ctx context.Context) Status {
	host, port, err := net.SplitHostPort(checker.Address)
	if err != nil {
		return Status{false, err.Error()}
	} else if host == "" {
		host = requestHost
	}

	client := checker.Client
	if client == nil {
		client = NewClient(false)
	}

	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, port),
		Path:   "/",
	}
	if checker.TLS {
		u.Scheme = "https"
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Status{false, err.Error()}
	}

	response, err := client.Do(request)
	if err != nil {
		return Status{false, err.Error()}
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return Status{false, err.Error()}
	}

	return Status{
		200 <= response.StatusCode && response.StatusCode <= 299,
		string(content),
	}
}

// NewClient returns an HTTP client suitable for checking the local proxy
// listener. Certificates are not verified. If proxyProtocol is true each
// connection starts with a PROXY v2 LOCAL header.
func NewClient(proxyProtocol bool) *http.Client {
	dialer := &net.Dialer{}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DialContext: dialer.DialContext,
	}

	if proxyProtocol {
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			header := proxyproto.Header{
				Command: proxyproto.LOCAL,
				Version: 2,
			}
			if _, err := header.WriteTo(conn); err != nil {
				conn.Close()
				return nil, err
			}

			return conn, nil
		}
	}

	return &http.Client{
		Transport: transport,
	}
}
