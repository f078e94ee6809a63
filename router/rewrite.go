package router

import (
	"regexp"
	"strings"

	"github.com/nullstream/asyncweb/httpparse"
)

// RewriteRule rewrites a request's URL before dispatch (spec.md §4.3,
// §12). Rules are evaluated in registration order and every matching
// rule is applied — not just the first — mirroring
// original_source/src/AsyncWebServer.cc's internalRewriteRequest, whose
// loop over rewrites_ never breaks on a match.
//
// A rule built by NewRegexRewriteRule matches when its from regexp
// matches the request URL; a rule built by NewRewriteRule has no regexp
// and matches only when fromExact equals the request URL (spec.md §3:
// "Matches when from == request.url"). query is any
// literal query-string suffix appended to To once the rule fires —
// parsed out of To at construction time (NewRewriteRule splits on the
// first '?'), rather than re-split on every request. Filter is an
// optional additional gate (spec.md §3's optionalFilter) consulted
// before the from/url comparison.
type RewriteRule struct {
	from      *regexp.Regexp
	fromExact string
	to        string
	query     string
	filter    FilterFunc
}

// NewRewriteRule builds an exact-match rewrite rule: a request whose URL
// equals from is rewritten to to, plus any "?query" suffix on to
// appended once, parsed here rather than
// on every matching request.
func NewRewriteRule(from, to string) RewriteRule {
	to, query, _ := strings.Cut(to, "?")
	return RewriteRule{fromExact: from, to: to, query: query}
}

// NewRegexRewriteRule builds a regexp-based rewrite rule; to may use
// "$1".."$9" to reference from's capture groups, per regexp.Expand.
func NewRegexRewriteRule(from *regexp.Regexp, to string) RewriteRule {
	to, query, _ := strings.Cut(to, "?")
	return RewriteRule{from: from, to: to, query: query}
}

// WithFilter attaches an additional gate that must accept req before the
// rule's from/url comparison is even evaluated.
func (rule RewriteRule) WithFilter(filter FilterFunc) RewriteRule {
	rule.filter = filter
	return rule
}

// apply rewrites req.URL in place if the rule matches, and reports
// whether it fired.
func (rule RewriteRule) apply(req *httpparse.Request) bool {
	if rule.filter != nil && !rule.filter(req) {
		return false
	}
	var newURL string
	switch {
	case rule.from != nil:
		loc := rule.from.FindStringSubmatchIndex(req.URL)
		if loc == nil {
			return false
		}
		newURL = string(rule.from.ExpandString(nil, rule.to, req.URL, loc))
	case rule.fromExact != "":
		if req.URL != rule.fromExact {
			return false
		}
		newURL = rule.to
	default:
		return false
	}
	req.URL = newURL
	if rule.query != "" {
		req.Params = httpparse.ParseQueryInto(req.Params, rule.query)
	}
	return true
}
