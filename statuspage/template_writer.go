package statuspage

import (
	"bytes"
	"encoding/json"
	"errors"
	htmlTemplate "html/template"
	"net/http"
	textTemplate "text/template"

	"github.com/golang/gddo/httputil/header"
)

// TemplateWriter writes status pages using a template. API clients that ask
// for JSON get an error body in the format of the upstream API instead.
type TemplateWriter struct {
	HTMLTemplate *htmlTemplate.Template
	TextTemplate *textTemplate.Template
}

// TemplateContext holds the data needed to render a status page.
type TemplateContext struct {
	Code    int
	Text    string
	Message string
}

// Write outputs a status page for statusCode to writer, in response to request.
func (wr *TemplateWriter) Write(
	writer http.ResponseWriter,
	request *http.Request,
	statusCode int,
) (bodySize int64, err error) {
	return wr.WriteMessage(
		writer,
		request,
		statusCode,
		StatusMessage(statusCode),
	)
}

// WriteMessage outputs an HTTP status page for statusCode to writer, in
// response to request, including a custom message.
func (wr *TemplateWriter) WriteMessage(
	writer http.ResponseWriter,
	request *http.Request,
	statusCode int,
	message string,
) (int64, error) {
	var buf bytes.Buffer
	var contentType string
	context := TemplateContext{
		statusCode,
		http.StatusText(statusCode),
		message,
	}

	switch negotiate(request) {
	case formatJSON:
		if err := json.NewEncoder(&buf).Encode(newErrorBody(context)); err == nil {
			contentType = "application/json"
		}
	case formatHTML:
		tmpl := wr.HTMLTemplate
		if tmpl == nil {
			tmpl = defaultHTMLTemplate
		}

		if err := tmpl.Execute(&buf, context); err == nil {
			contentType = "text/html"
		}
	}

	if contentType == "" {
		tmpl := wr.TextTemplate
		if tmpl == nil {
			tmpl = defaultTextTemplate
		}
		contentType = "text/plain"
		buf.Reset()
		if err := tmpl.Execute(&buf, context); err != nil {
			buf.Reset()
			buf.WriteString(message)
		}
	}

	headers := writer.Header()
	headers.Set("Content-Type", contentType+"; charset=utf-8")
	headers.Set("X-Content-Type-Options", "nosniff")
	writer.WriteHeader(statusCode)
	return buf.WriteTo(writer)
}

// WriteError outputs an appropriate HTTP status page for the given error to
// writer, in response to request.
func (wr *TemplateWriter) WriteError(
	writer http.ResponseWriter,
	request *http.Request,
	statusErr error,
) (statusCode int, bodySize int64, err error) {
	var e Error
	if errors.As(statusErr, &e) {
		statusCode = e.StatusCode
		if e.Message != "" {
			bodySize, err = wr.WriteMessage(
				writer,
				request,
				statusCode,
				e.Message,
			)
			return
		}
	} else {
		statusCode = http.StatusInternalServerError
	}

	bodySize, err = wr.Write(writer, request, statusCode)
	return
}

const htmlSource = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Code}} {{.Text}}</title></head>
<body>
<h1>{{.Code}} {{.Text}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`

const textSource = "{{.Code}} {{.Text}}: {{.Message}}\n"

var defaultHTMLTemplate = htmlTemplate.Must(
	htmlTemplate.New("status-page").Parse(htmlSource),
)

var defaultTextTemplate = textTemplate.Must(
	textTemplate.New("status-page").Parse(textSource),
)

type format int

const (
	formatText format = iota
	formatHTML
	formatJSON
)

// negotiate picks the status page format preferred by the request's Accept
// header. Plain text wins ties, and "*/*" counts as plain text.
func negotiate(request *http.Request) format {
	textQ := 0.0
	htmlQ := -1.0
	jsonQ := -1.0

	for _, spec := range header.ParseAccept(request.Header, "Accept") {
		switch spec.Value {
		case "text/html", "application/xhtml+xml":
			htmlQ = max(htmlQ, spec.Q)
		case "application/json":
			jsonQ = max(jsonQ, spec.Q)
		case "text/plain", "*/*":
			textQ = max(textQ, spec.Q)
		}
	}

	switch {
	case jsonQ > textQ && jsonQ >= htmlQ:
		return formatJSON
	case htmlQ > textQ:
		return formatHTML
	default:
		return formatText
	}
}

// errorBody is the JSON error envelope used by Google APIs.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func newErrorBody(context TemplateContext) errorBody {
	return errorBody{
		Error: errorDetail{
			Code:    context.Code,
			Message: context.Message,
			Status:  canonicalStatus(context.Code),
		},
	}
}

// canonicalStatus maps an HTTP status code to the canonical error code name
// that Google APIs report alongside it.
func canonicalStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "ABORTED"
	case http.StatusRequestEntityTooLarge, http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusNotImplemented:
		return "UNIMPLEMENTED"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	}

	if 400 <= statusCode && statusCode <= 499 {
		return "FAILED_PRECONDITION"
	}

	return "INTERNAL"
}
