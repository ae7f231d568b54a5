package proxyprotocol_test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"

	proxyproto "github.com/pires/go-proxyproto"
	"github.com/zsjsll/gemini-proxy/proxyprotocol"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("PROXY Protocol", func() {
	Describe("Conn", func() {
		It("accepts PROXY v2 connections", func() {
			server, client := net.Pipe()

			go func() {
				defer GinkgoRecover()
				header := &proxyproto.Header{
					Command:            proxyproto.PROXY,
					DestinationAddress: net.ParseIP("127.0.0.1"),
					DestinationPort:    12345,
					SourceAddress:      net.ParseIP("127.127.127.127"),
					SourcePort:         31337,
					TransportProtocol:  proxyproto.TCPv4,
					Version:            2,
				}
				n, err := header.WriteTo(client)
				Expect(n).To(BeNumerically(">", 0))
				Expect(err).NotTo(HaveOccurred())
				err = client.Close()
				Expect(err).NotTo(HaveOccurred())
			}()

			pServer, err := proxyprotocol.NewConn(server)
			Expect(err).ShouldNot(HaveOccurred())
			defer pServer.Close()
			Expect(pServer.RemoteAddr().String()).To(Equal("127.127.127.127:31337"))
			Expect(pServer.LocalAddr().String()).To(Equal("127.0.0.1:12345"))
		})

		It("accepts PROXY v1 connections", func() {
			server, client := net.Pipe()

			go func() {
				defer GinkgoRecover()
				fmt.Fprint(client, "PROXY TCP4 127.127.127.127 127.0.0.1 31337 12345\r\ntest\n")
				err := client.Close()
				Expect(err).NotTo(HaveOccurred())
			}()

			pServer, err := proxyprotocol.NewConn(server)
			Expect(err).ShouldNot(HaveOccurred())
			defer pServer.Close()
			Expect(pServer.RemoteAddr().String()).To(Equal("127.127.127.127:31337"))
			Expect(pServer.LocalAddr().String()).To(Equal("127.0.0.1:12345"))

			data, err := io.ReadAll(pServer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(string(data)).To(Equal("test\n"))
		})

		It("accepts non-PROXY connections", func() {
			server, client := net.Pipe()

			go func() {
				defer GinkgoRecover()
				fmt.Fprint(client, "test\n")
				err := client.Close()
				Expect(err).NotTo(HaveOccurred())
			}()

			pServer, err := proxyprotocol.NewConn(server)
			Expect(err).ShouldNot(HaveOccurred())
			defer pServer.Close()
			Expect(pServer.RemoteAddr().String()).To(Equal("pipe"))
			Expect(pServer.LocalAddr().String()).To(Equal("pipe"))

			data, err := io.ReadAll(pServer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(string(data)).To(Equal("test\n"))
		})
	})

	Describe("Listener", func() {
		var (
			listener net.Listener
			server   *httptest.Server
			remote   chan string
		)

		BeforeEach(func() {
			remote = make(chan string, 1)

			inner, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).ShouldNot(HaveOccurred())
			listener = proxyprotocol.NewListener(inner)

			server = &httptest.Server{
				Listener: listener,
				Config: &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					remote <- r.RemoteAddr
				})},
			}
			server.Start()
		})

		AfterEach(func() {
			server.Close()
		})

		dial := func(header *proxyproto.Header) {
			conn, err := net.Dial("tcp", listener.Addr().String())
			Expect(err).ShouldNot(HaveOccurred())
			defer conn.Close()

			if header != nil {
				_, err = header.WriteTo(conn)
				Expect(err).ShouldNot(HaveOccurred())
			}

			fmt.Fprint(conn, "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
			io.ReadAll(conn)
		}

		It("reports the proxied client address to the HTTP server", func() {
			dial(&proxyproto.Header{
				Command:            proxyproto.PROXY,
				DestinationAddress: net.ParseIP("10.0.0.1"),
				DestinationPort:    8080,
				SourceAddress:      net.ParseIP("203.0.113.7"),
				SourcePort:         40000,
				TransportProtocol:  proxyproto.TCPv4,
				Version:            2,
			})

			Expect(<-remote).To(Equal("203.0.113.7:40000"))
		})

		It("reports the real client address for LOCAL connections", func() {
			dial(&proxyproto.Header{
				Command: proxyproto.LOCAL,
				Version: 2,
			})

			Expect(<-remote).To(HavePrefix("127.0.0.1:"))
		})

		It("reports the real client address without a header", func() {
			dial(nil)

			Expect(<-remote).To(HavePrefix("127.0.0.1:"))
		})
	})
})
