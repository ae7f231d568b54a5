package proxy

import "net/http"

// ResponseWriter wraps an http.ResponseWriter, trapping information about the
// response as it is written.
type ResponseWriter struct {
	Inner      http.ResponseWriter
	StatusCode int
	Size       int64

	// FirstWrite, if non-nil, is called with the status code when the response
	// headers are written.
	FirstWrite func(int)
}

// Header forwards to writer.Inner.Header()
func (writer *ResponseWriter) Header() http.Header {
	return writer.Inner.Header()
}

// Write forwards to writer.Inner.Write(). If the headers have not been sent a
// response code of 200 OK is used.
func (writer *ResponseWriter) Write(data []byte) (int, error) {
	if writer.StatusCode == 0 {
		writer.WriteHeader(http.StatusOK)
	}

	size, err := writer.Inner.Write(data)
	writer.Size += int64(size)

	return size, err
}

// WriteHeader forwards to writer.Inner.WriteHeader(). Only the first call has
// any effect.
func (writer *ResponseWriter) WriteHeader(statusCode int) {
	if writer.StatusCode != 0 {
		return
	}

	writer.StatusCode = statusCode
	if writer.FirstWrite != nil {
		writer.FirstWrite(statusCode)
	}
	writer.Inner.WriteHeader(statusCode)
}

// HeadersSent returns true if the response headers have been written.
func (writer *ResponseWriter) HeadersSent() bool {
	return writer.StatusCode != 0
}

// Flush forwards to writer.Inner.Flush() if it implements http.Flusher(),
// otherwise it does nothing.
func (writer *ResponseWriter) Flush() {
	if writer.StatusCode == 0 {
		writer.WriteHeader(http.StatusOK)
	}

	if flusher, ok := writer.Inner.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap returns the inner writer, for use by http.ResponseController.
func (writer *ResponseWriter) Unwrap() http.ResponseWriter {
	return writer.Inner
}
