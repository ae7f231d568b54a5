package health_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/zsjsll/gemini-proxy/health"
	"github.com/zsjsll/gemini-proxy/proxyprotocol"
)

var _ = Describe("HTTPChecker", func() {
	var (
		server          *httptest.Server
		serverURL       *url.URL
		subject         *health.HTTPChecker
		requestedPath   string
		responseCode    int
		responseMessage string
	)

	handler := func(response http.ResponseWriter, request *http.Request) {
		requestedPath = request.URL.Path
		response.WriteHeader(responseCode)
		io.WriteString(response, responseMessage)
	}

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(handler))
		serverURL, _ = url.Parse(server.URL)

		subject = &health.HTTPChecker{
			Address: serverURL.Host,
		}
	})

	AfterEach(func() {
		server.Close()
	})

	DescribeTable(
		"Check",
		func(code int, message string, expected health.Status) {
			responseCode = code
			responseMessage = message
			Expect(subject.Check(context.Background())).To(Equal(expected))
			Expect(requestedPath).To(Equal("/"))
		},
		Entry(
			"healthy response",
			http.StatusOK,
			"<ok message>",
			health.Status{IsHealthy: true, Message: "<ok message>"},
		),
		Entry(
			"unhealthy response",
			http.StatusServiceUnavailable,
			"<error message>",
			health.Status{IsHealthy: false, Message: "<error message>"},
		),
	)

	Describe("Check", func() {
		It("defaults to localhost", func() {
			_, port, _ := net.SplitHostPort(serverURL.Host)
			subject.Address = fmt.Sprintf(":%s", port)

			responseCode = http.StatusOK
			responseMessage = "<message>"

			expected := health.Status{
				IsHealthy: true,
				Message:   "<message>",
			}

			Expect(subject.Check(context.Background())).To(Equal(expected))
		})

		It("returns an unhealthy status when the address is invalid", func() {
			subject.Address = "x"

			expected := health.Status{
				IsHealthy: false,
				Message:   "address x: missing port in address",
			}

			Expect(subject.Check(context.Background())).To(Equal(expected))
		})

		It("returns an unhealthy status when the check is too slow", func() {
			slowServer := httptest.NewServer(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
				select {
				case <-request.Context().Done():
				case <-time.After(time.Second):
				}
			}))
			defer slowServer.Close()

			slowURL, _ := url.Parse(slowServer.URL)
			subject.Address = slowURL.Host

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			result := subject.Check(ctx)

			Expect(result.IsHealthy).To(BeFalse())
			Expect(result.Message).To(ContainSubstring("context deadline exceeded"))
		})

		It("returns an unhealthy status when the server is unreachable", func() {
			server.Close()

			result := subject.Check(context.Background())

			Expect(result.IsHealthy).To(BeFalse())
			Expect(result.Message).To(ContainSubstring("connection refused"))
		})

		It("checks TLS listeners without verifying the certificate", func() {
			tlsServer := httptest.NewTLSServer(http.HandlerFunc(handler))
			defer tlsServer.Close()

			tlsURL, _ := url.Parse(tlsServer.URL)
			subject.Address = tlsURL.Host
			subject.TLS = true

			responseCode = http.StatusOK
			responseMessage = "<tls>"

			Expect(subject.Check(context.Background())).To(Equal(health.Status{IsHealthy: true, Message: "<tls>"}))
		})

		It("checks PROXY protocol listeners", func() {
			inner, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).ShouldNot(HaveOccurred())

			proxyServer := &httptest.Server{
				Listener: proxyprotocol.NewListener(inner),
				Config:   &http.Server{Handler: http.HandlerFunc(handler)},
			}
			proxyServer.Start()
			defer proxyServer.Close()

			subject.Address = inner.Addr().String()
			subject.Client = health.NewClient(true)

			responseCode = http.StatusOK
			responseMessage = "<proxied>"

			Expect(subject.Check(context.Background())).To(Equal(health.Status{IsHealthy: true, Message: "<proxied>"}))
		})
	})
})
