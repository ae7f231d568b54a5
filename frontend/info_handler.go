package frontend

import (
	"io"
	"net/http"
	"strconv"
)

// DefaultInfoMessage is the message served at the root path when none is
// configured.
const DefaultInfoMessage = "proxy is running, you can see more at https://github.com/spectre-pro/gemini-proxy"

// InfoHandler is a ConditionalHandler that answers requests for the root path
// with a fixed informational message, without contacting the upstream.
type InfoHandler struct {
	Message string
}

// CanHandle returns true if the request-target is exactly "/". A root path with
// a query string is not intercepted.
func (handler *InfoHandler) CanHandle(request *http.Request) bool {
	if request.RequestURI != "" {
		return request.RequestURI == "/"
	}

	return request.URL.Path == "/" && request.URL.RawQuery == "" && !request.URL.ForceQuery
}

func (handler *InfoHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	message := handler.Message
	if message == "" {
		message = DefaultInfoMessage
	}

	headers := writer.Header()
	headers.Set("Content-Type", "text/plain; charset=utf-8")
	headers.Set("Content-Length", strconv.Itoa(len(message)))
	headers.Set("X-Content-Type-Options", "nosniff")
	writer.WriteHeader(http.StatusOK)

	if request.Method != http.MethodHead {
		io.WriteString(writer, message)
	}
}
