package frontend

import "net/http"

// Handler provides the main http.Handler implementation.
type Handler struct {
	Proxy        http.Handler
	Interceptors []ConditionalHandler
}

func (handler *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	for _, interceptor := range handler.Interceptors {
		if interceptor.CanHandle(request) {
			interceptor.ServeHTTP(writer, request)
			return
		}
	}

	handler.Proxy.ServeHTTP(writer, request)
}
