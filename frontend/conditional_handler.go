package frontend

import "net/http"

// ConditionalHandler is an http.Handler that answers some requests itself,
// before they reach the proxy.
type ConditionalHandler interface {
	http.Handler

	// CanHandle returns true if request is answered by this handler.
	CanHandle(*http.Request) bool
}
