package httpparse

import "strings"

// urlDecode returns a copy of s with %XX escapes and '+' (form-encoded
// space) decoded.
// Malformed escapes are passed through literally rather than rejected,
// matching the original implementation's lenient decoder.
func urlDecode(s string, plusAsSpace bool) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			if plusAsSpace {
				b.WriteByte(' ')
			} else {
				b.WriteByte('+')
			}
		case '%':
			if i+2 < len(s) {
				if hi, ok := hexVal(s[i+1]); ok {
					if lo, ok := hexVal(s[i+2]); ok {
						b.WriteByte(byte(hi<<4 | lo))
						i += 2
						continue
					}
				}
			}
			b.WriteByte('%')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// ParseQueryInto splits a query string (no leading '?') into Parameters
// and appends them to dst. Exported for router's rewrite-rule query
// appendix and any other package that needs to inject query parameters
// outside the normal request-line parse path.
func ParseQueryInto(dst []Parameter, query string) []Parameter {
	return parseQueryInto(dst, query)
}

// parseQueryInto splits a query string (no leading '?') into
// Parameters and appends them to dst.
func parseQueryInto(dst []Parameter, query string) []Parameter {
	if query == "" {
		return dst
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		dst = append(dst, Parameter{
			Name:  urlDecode(name, true),
			Value: urlDecode(value, true),
		})
	}
	return dst
}

// splitPathQuery splits a request-line URL into its path and raw query
// (without '?'), decoding %XX escapes in the path only.
func splitPathQuery(url string) (path, query string) {
	path, query, _ = strings.Cut(url, "?")
	path = urlDecode(path, false)
	return path, query
}
