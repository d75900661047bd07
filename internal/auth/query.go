// query.go -- Query string normalisation shared by both host adapters.
package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// parseQuery reads key=value pairs from the part of rawURI after the first '?'.
// Keys and values are percent-decoded individually; malformed escapes are kept
// verbatim instead of dropping the pair. Repeated keys keep every value.
func parseQuery(rawURI string) url.Values {
	values := url.Values{}

	_, query, found := strings.Cut(rawURI, "?")
	if !found {
		return values
	}
	query, _, _ = strings.Cut(query, "#")

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		values.Add(unescape(k), unescape(v))
	}
	return values
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

// requestQuery parses the query of r as sent on the wire.
func requestQuery(r *http.Request) url.Values {
	if r.RequestURI != "" {
		return parseQuery(r.RequestURI)
	}
	return parseQuery("?" + r.URL.RawQuery)
}
