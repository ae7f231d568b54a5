package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/zsjsll/gemini-proxy/credential"
	"github.com/zsjsll/gemini-proxy/metrics"
	"github.com/zsjsll/gemini-proxy/statuspage"
	"go.uber.org/zap"
)

// copyBufferSize is the size of the buffer used to relay response bodies.
const copyBufferSize = 32 * 1024

// Handler is an http.Handler that forwards requests to the upstream server,
// selecting one credential from the list supplied by the client. A Handler
// with no Upstream forwards to DefaultUpstreamURL.
type Handler struct {
	Upstream         *Upstream
	Transport        http.RoundTripper
	Selector         credential.Selector
	StatusPageWriter statuspage.Writer
	Metrics          *metrics.Collectors
	Logger           *zap.Logger
}

// ServeHTTP forwards the request to the upstream server.
func (handler *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	logContext := &LogContext{Logger: handler.Logger, Request: request}
	logContext.Timer.Start()
	logContext.LogRequestHeaders()

	responseWriter := &ResponseWriter{
		Inner: writer,
		FirstWrite: func(int) {
			logContext.Timer.FirstByteSent()
		},
	}

	err := handler.forward(responseWriter, request, logContext)

	// If there was an error and no response has been sent, send an error page.
	// Otherwise the response is already under way, and nothing more can be
	// written.
	aborted := false
	if err != nil {
		if !responseWriter.HeadersSent() {
			handler.statusPage(responseWriter, request, err)
		} else {
			aborted = true
		}
	}

	logContext.Timer.LastByteSent()
	logContext.StatusCode = responseWriter.StatusCode
	logContext.BytesOut = responseWriter.Size
	logContext.Log(err)

	handler.Metrics.ObserveRequest(
		request.Method,
		responseWriter.StatusCode,
		logContext.Timer.Elapsed(),
		logContext.BytesIn,
		logContext.BytesOut,
	)

	if aborted {
		// The response is incomplete, abort the connection.
		panic(http.ErrAbortHandler)
	}
}

func (handler *Handler) forward(
	writer *ResponseWriter,
	request *http.Request,
	logContext *LogContext,
) error {
	upstreamRequest, err := handler.prepareRequest(request, logContext)
	if err != nil {
		return err
	}
	logContext.Upstream = handler.upstream()

	response, err := handler.transport().RoundTrip(upstreamRequest)
	if err != nil {
		handler.Metrics.ObserveUpstreamError(metrics.StageConnect)
		return statuspage.Error{
			Inner:      fmt.Errorf("could not contact upstream: %w", err),
			StatusCode: http.StatusBadGateway,
		}
	}

	body, decoded := decodeBody(response)
	defer body.Close()

	headers := writer.Header()
	copyResponseHeaders(headers, response.Header)
	if decoded {
		headers.Del("Content-Length")
	}

	writer.WriteHeader(response.StatusCode)

	if upstreamFailed, err := relay(writer, body); err != nil {
		if upstreamFailed {
			handler.Metrics.ObserveUpstreamError(metrics.StageStream)
		}
		return err
	}

	return nil
}

// prepareRequest produces the HTTP request that is sent to the upstream
// server.
func (handler *Handler) prepareRequest(
	request *http.Request,
	logContext *LogContext,
) (*http.Request, error) {
	upstream := handler.upstream()

	src, _ := credential.Extract(request.Header)
	set := src.Set()
	selected := handler.selector().Pick(set)

	logContext.CredentialSource = src
	logContext.CredentialCount = len(set)
	logContext.Credential = selected
	handler.Metrics.ObserveCredentialSource(src.Kind.String())

	uri := requestURI(request)
	target := upstream.Target(uri)

	var body io.Reader = http.NoBody
	if request.Method != http.MethodGet &&
		request.Method != http.MethodHead &&
		request.Body != nil &&
		request.Body != http.NoBody &&
		request.ContentLength != 0 {
		body = &countingReader{
			Reader: request.Body,
			count:  &logContext.BytesIn,
		}
	}

	upstreamRequest, err := http.NewRequestWithContext(
		request.Context(),
		request.Method,
		target,
		body,
	)
	if err != nil {
		return nil, statuspage.Error{
			Inner:      fmt.Errorf("could not build upstream request for %q: %w", target, err),
			StatusCode: http.StatusBadRequest,
		}
	}

	upstreamRequest.URL.Opaque = upstream.Opaque(uri)

	if body != http.NoBody {
		upstreamRequest.ContentLength = request.ContentLength
	}

	upstreamRequest.Header = prepareUpstreamHeaders(request, upstream, src, selected)
	upstreamRequest.Host = upstream.Hostname()

	return upstreamRequest, nil
}

func (handler *Handler) statusPage(
	writer http.ResponseWriter,
	request *http.Request,
	err error,
) {
	statusWriter := handler.StatusPageWriter
	if statusWriter == nil {
		statusWriter = statuspage.DefaultWriter
	}

	statusWriter.WriteError(writer, request, err)
}

func (handler *Handler) upstream() *Upstream {
	if handler.Upstream != nil {
		return handler.Upstream
	}

	return defaultUpstream()
}

var defaultUpstream = sync.OnceValue(func() *Upstream {
	return MustParseUpstream(DefaultUpstreamURL)
})

func (handler *Handler) transport() http.RoundTripper {
	if handler.Transport != nil {
		return handler.Transport
	}

	return defaultTransport()
}

// defaultTransport is the transport used when a Handler has none.
var defaultTransport = sync.OnceValue(func() http.RoundTripper {
	transport, err := NewTransport(TransportOptions{})
	if err != nil {
		return http.DefaultTransport
	}

	return transport
})

func (handler *Handler) selector() credential.Selector {
	if handler.Selector != nil {
		return handler.Selector
	}

	return credential.Random
}

// relay streams body to writer, flushing after every chunk so that streamed
// responses such as server-sent events reach the client as they arrive.
// upstreamFailed is true if err came from reading body.
func relay(writer *ResponseWriter, body io.Reader) (upstreamFailed bool, err error) {
	buffer := make([]byte, copyBufferSize)

	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			if _, err := writer.Write(buffer[:n]); err != nil {
				return false, fmt.Errorf("could not write response to client: %w", err)
			}
			writer.Flush()
		}

		if readErr == io.EOF {
			return false, nil
		} else if readErr != nil {
			return true, fmt.Errorf("could not read response from upstream: %w", readErr)
		}
	}
}

// requestURI returns the request-target of request, as sent by the client.
func requestURI(request *http.Request) string {
	if strings.HasPrefix(request.RequestURI, "/") {
		return request.RequestURI
	}

	return request.URL.RequestURI()
}

// countingReader counts the bytes read from the inner reader.
type countingReader struct {
	io.Reader
	count *int64
}

func (r *countingReader) Read(data []byte) (int, error) {
	n, err := r.Reader.Read(data)
	*r.count += int64(n)
	return n, err
}
