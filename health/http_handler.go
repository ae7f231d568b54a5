package health

import (
	"io"
	"net/http"

	"go.uber.org/zap"
)

// HTTPHandler is an http.Handler that returns health-check information.
type HTTPHandler struct {
	Checker Checker
	Logger  *zap.Logger
}

func (handler *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writer.Header().Set("Cache-Control", "no-store")

	status := Status{
		true,
		"The server is accepting requests, but no health-checker is configured.",
	}

	if handler.Checker != nil {
		status = handler.Checker.Check(request.Context())
	}

	if status.IsHealthy {
		writer.WriteHeader(http.StatusOK)
	} else {
		if handler.Logger != nil {
			handler.Logger.Warn(status.String())
		}

		writer.WriteHeader(http.StatusServiceUnavailable)
	}

	io.WriteString(writer, status.Message)
}
