package frontend_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/zsjsll/gemini-proxy/frontend"
)

var _ = Describe("Handler", func() {
	var (
		proxied bool
		subject *frontend.Handler
	)

	BeforeEach(func() {
		proxied = false
		subject = &frontend.Handler{
			Proxy: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				proxied = true
				w.WriteHeader(http.StatusTeapot)
			}),
			Interceptors: []frontend.ConditionalHandler{
				&frontend.InfoHandler{Message: "<info>"},
			},
		}
	})

	It("serves the root path without proxying", func() {
		recorder := httptest.NewRecorder()
		subject.ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

		Expect(proxied).To(BeFalse())
		Expect(recorder.Body.String()).To(Equal("<info>"))
	})

	It("proxies every other request", func() {
		recorder := httptest.NewRecorder()
		subject.ServeHTTP(recorder, httptest.NewRequest("GET", "/v1beta/models", nil))

		Expect(proxied).To(BeTrue())
		Expect(recorder.Code).To(Equal(http.StatusTeapot))
	})

	It("proxies the root path when it has a query string", func() {
		recorder := httptest.NewRecorder()
		subject.ServeHTTP(recorder, httptest.NewRequest("GET", "/?alt=json", nil))

		Expect(proxied).To(BeTrue())
	})

	It("uses the first interceptor that can handle the request", func() {
		second := &frontend.InfoHandler{Message: "<second>"}
		subject.Interceptors = append(subject.Interceptors, second)

		recorder := httptest.NewRecorder()
		subject.ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

		Expect(recorder.Body.String()).To(Equal("<info>"))
	})
})
