package statuspage

import "net/http"

// StatusMessage returns a short, human-readable description of the given HTTP
// status code, worded for API clients.
func StatusMessage(statusCode int) string {
	switch statusCode {
	// 4xx
	case http.StatusBadRequest:
		return "The request was malformed."
	case http.StatusNotFound:
		return "The requested resource could not be found."
	case http.StatusRequestEntityTooLarge:
		return "The request body is too large to process."
	case http.StatusRequestHeaderFieldsTooLarge:
		return "The request headers are too large to process."

	// 5xx
	case http.StatusInternalServerError:
		return "The proxy failed to process the request."
	case http.StatusBadGateway:
		return "The upstream API could not be contacted, please try again."
	case http.StatusServiceUnavailable:
		return "The proxy is temporarily unavailable, please try again."
	case http.StatusGatewayTimeout:
		return "The upstream API did not respond in a timely manner, please try again."
	}

	if 400 <= statusCode && statusCode <= 599 {
		return "We're sorry, something went wrong!"
	}

	return "That's all we know."
}
