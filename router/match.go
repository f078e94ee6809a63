// Package router implements request-to-handler dispatch (spec.md §4.3):
// an ordered handler chain, URL rewrite rules applied once at
// end-of-headers, and the CallbackHandler route-matching kinds (regex,
// extension wildcard, prefix wildcard, exact-or-prefix-with-slash).
// Grounded on the teacher's lowlevel/server/handler_chain.go (ordered
// handler list with first-match-wins dispatch) and highlevel/server.go's
// route registration surface.
package router

import (
	"regexp"
	"strings"
)

// MatchKind selects how CallbackHandler.Pattern is interpreted.
type MatchKind int

const (
	// MatchExact requires the URL to equal Pattern, or to begin with
	// Pattern followed by '/' at any depth (spec.md §4.3), e.g. a
	// handler registered at "/about" also matches "/about/" and
	// "/about/nested/path".
	MatchExact MatchKind = iota
	// MatchPrefix requires the URL to start with Pattern.
	MatchPrefix
	// MatchExtension requires the URL to end with Pattern (e.g. ".json").
	MatchExtension
	// MatchRegex compiles Pattern as a regexp and requires it to match
	// the URL; every capture group (named or not) becomes a PathParams
	// entry, in group order.
	MatchRegex
)

// matchURL reports whether url satisfies pattern under kind, and for
// MatchRegex also returns the capture groups (excluding group 0).
func matchURL(kind MatchKind, pattern string, re *regexp.Regexp, url string) (bool, []string) {
	switch kind {
	case MatchExact:
		if url == pattern || strings.HasPrefix(url, pattern+"/") {
			return true, nil
		}
		return false, nil
	case MatchPrefix:
		return strings.HasPrefix(url, pattern), nil
	case MatchExtension:
		return strings.HasSuffix(url, pattern), nil
	case MatchRegex:
		if re == nil {
			return false, nil
		}
		m := re.FindStringSubmatch(url)
		if m == nil {
			return false, nil
		}
		return true, m[1:]
	default:
		return false, nil
	}
}
