package credential_test

import (
	"net/http"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/zsjsll/gemini-proxy/credential"
)

var _ = Describe("Extract", func() {
	It("prefers the x-goog-api-key header", func() {
		header := http.Header{}
		header.Set("x-goog-api-key", "K1,K2")
		header.Set("authorization", "Bearer TOKA")

		src, ok := credential.Extract(header)
		Expect(ok).To(BeTrue())
		Expect(src).To(Equal(credential.Source{Kind: credential.Direct, Raw: "K1,K2"}))
	})

	It("combines repeated x-goog-api-key headers", func() {
		header := http.Header{"X-Goog-Api-Key": []string{"K1", "K2"}}

		src, ok := credential.Extract(header)
		Expect(ok).To(BeTrue())
		Expect(src.Set()).To(Equal([]string{"K1", "K2"}))
	})

	It("falls back to the bearer authorization header", func() {
		header := http.Header{}
		header.Set("authorization", "Bearer TOKA, TOKB")

		src, ok := credential.Extract(header)
		Expect(ok).To(BeTrue())
		Expect(src).To(Equal(credential.Source{Kind: credential.Bearer, Raw: "TOKA, TOKB"}))
	})

	It("falls back to the authorization header when x-goog-api-key is empty", func() {
		header := http.Header{}
		header.Set("x-goog-api-key", "")
		header.Set("authorization", "Bearer TOKA")

		src, ok := credential.Extract(header)
		Expect(ok).To(BeTrue())
		Expect(src.Kind).To(Equal(credential.Bearer))
	})

	DescribeTable(
		"bearer prefix matching",
		func(value string, expectOK bool, expectRaw string) {
			header := http.Header{}
			header.Set("authorization", value)

			src, ok := credential.Extract(header)
			Expect(ok).To(Equal(expectOK))
			Expect(src.Raw).To(Equal(expectRaw))
		},
		Entry("canonical case", "Bearer abc", true, "abc"),
		Entry("lower case", "bearer abc", true, "abc"),
		Entry("upper case", "BEARER abc", true, "abc"),
		Entry("prefix only", "Bearer ", true, ""),
		Entry("basic scheme", "Basic dXNlcg==", false, ""),
		Entry("missing space", "Bearerabc", false, ""),
		Entry("too short", "Bear", false, ""),
	)

	It("returns false when no source is present", func() {
		src, ok := credential.Extract(http.Header{"Accept": []string{"*/*"}})
		Expect(ok).To(BeFalse())
		Expect(src.Kind).To(Equal(credential.None))
	})
})

var _ = Describe("Parse", func() {
	DescribeTable(
		"splits, trims and filters",
		func(raw string, expected []string) {
			Expect(credential.Parse(raw)).To(Equal(expected))
		},
		Entry("single", "a", []string{"a"}),
		Entry("whitespace", "a, b ,c", []string{"a", "b", "c"}),
		Entry("empty elements", ",a,,b,", []string{"a", "b"}),
		Entry("empty", "", nil),
		Entry("only separators and whitespace", " , ,  ", nil),
	)
})

var _ = Describe("Source", func() {
	Describe("Apply", func() {
		It("sets x-goog-api-key for direct sources", func() {
			header := http.Header{}
			credential.Source{Kind: credential.Direct}.Apply(header, "K1")
			Expect(header.Get("x-goog-api-key")).To(Equal("K1"))
			Expect(header).NotTo(HaveKey("Authorization"))
		})

		It("sets a bearer authorization header for bearer sources", func() {
			header := http.Header{}
			credential.Source{Kind: credential.Bearer}.Apply(header, "TOKA")
			Expect(header.Get("authorization")).To(Equal("Bearer TOKA"))
			Expect(header).NotTo(HaveKey("X-Goog-Api-Key"))
		})

		It("does nothing when the credential is empty", func() {
			header := http.Header{}
			credential.Source{Kind: credential.Direct}.Apply(header, "")
			Expect(header).To(BeEmpty())
		})

		It("does nothing when there is no source", func() {
			header := http.Header{}
			credential.Source{}.Apply(header, "K1")
			Expect(header).To(BeEmpty())
		})
	})
})

var _ = Describe("Strip", func() {
	It("removes both credential headers", func() {
		header := http.Header{}
		header.Set("x-goog-api-key", "K1")
		header.Set("authorization", "Bearer TOKA")
		header.Set("accept", "*/*")

		credential.Strip(header)
		Expect(header).To(Equal(http.Header{"Accept": []string{"*/*"}}))
	})
})

var _ = Describe("Kind", func() {
	DescribeTable(
		"String",
		func(kind credential.Kind, expected string) {
			Expect(kind.String()).To(Equal(expected))
		},
		Entry("none", credential.None, "none"),
		Entry("direct", credential.Direct, "direct"),
		Entry("bearer", credential.Bearer, "bearer"),
	)
})

var _ = Describe("Mask", func() {
	DescribeTable(
		"redacts credentials",
		func(value, expected string) {
			Expect(credential.Mask(value)).To(Equal(expected))
		},
		Entry("empty", "", ""),
		Entry("short", "abcd", "****"),
		Entry("eight characters", "abcdefgh", "********"),
		Entry("long", "AIzaSyExample1234", "*************1234"),
	)
})
