package credential

import (
	"net/http"
	"strings"
)

const (
	// DirectHeader is the header that carries a comma-separated list of API
	// keys, forwarded upstream as-is.
	DirectHeader = "X-Goog-Api-Key"

	// AuthorizationHeader carries a bearer-style list of API keys.
	AuthorizationHeader = "Authorization"

	bearerPrefix = "bearer "
)

// Kind identifies which header convention supplied the credential list.
type Kind int

const (
	// None indicates that the request carried no credential source.
	None Kind = iota

	// Direct indicates the credential list came from the X-Goog-Api-Key header.
	Direct

	// Bearer indicates the credential list came from an
	// "Authorization: Bearer" header.
	Bearer
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Bearer:
		return "bearer"
	default:
		return "none"
	}
}

// Source is the raw credential list extracted from an inbound request.
type Source struct {
	Kind Kind
	Raw  string
}

// Extract finds the credential source in header.
//
// A non-empty X-Goog-Api-Key takes precedence over Authorization; repeated
// X-Goog-Api-Key fields are combined into one list. An Authorization header is
// only honored if its value starts with "Bearer " (case-insensitively). ok is
// false if neither source is present.
func Extract(header http.Header) (src Source, ok bool) {
	if raw := strings.Join(header.Values(DirectHeader), ","); raw != "" {
		return Source{Kind: Direct, Raw: raw}, true
	}

	value := header.Get(AuthorizationHeader)
	if len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return Source{Kind: Bearer, Raw: value[len(bearerPrefix):]}, true
	}

	return Source{}, false
}

// Set returns the credential set described by the source.
func (src Source) Set() []string {
	return Parse(src.Raw)
}

// Apply writes credential to header using the convention of the source. It
// does nothing if credential is empty or the source kind is None.
func (src Source) Apply(header http.Header, credential string) {
	if credential == "" {
		return
	}

	switch src.Kind {
	case Direct:
		header.Set(DirectHeader, credential)
	case Bearer:
		header.Set(AuthorizationHeader, "Bearer "+credential)
	}
}

// Strip removes both credential headers from header.
func Strip(header http.Header) {
	header.Del(DirectHeader)
	header.Del(AuthorizationHeader)
}

// Parse splits a comma-separated credential list, trimming whitespace and
// discarding empty elements. It returns nil if no credentials remain.
func Parse(raw string) []string {
	var set []string

	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			set = append(set, item)
		}
	}

	return set
}

// Mask renders credential for logging, revealing at most its last four
// characters.
func Mask(credential string) string {
	if credential == "" {
		return ""
	}

	n := len(credential)
	if n <= 8 {
		return strings.Repeat("*", n)
	}

	return strings.Repeat("*", n-4) + credential[n-4:]
}
