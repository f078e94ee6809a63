package httpparse

import "strings"

// methodFromToken maps the request-line method token to its bitmask,
// falling back to MethodAny for anything unrecognized so an
// otherwise-unknown verb can still reach a wildcard-method handler
// (spec.md §4.2's request-line method hash).
func methodFromToken(tok string) Method {
	switch tok {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "PATCH":
		return MethodPatch
	case "DELETE":
		return MethodDelete
	case "HEAD":
		return MethodHead
	case "OPTIONS":
		return MethodOptions
	default:
		return MethodAny
	}
}

// MethodName returns the canonical textual name for m, or "ANY" for the
// wildcard bit and any combination that doesn't isolate to one bit.
func MethodName(m Method) string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodPatch:
		return "PATCH"
	case MethodDelete:
		return "DELETE"
	case MethodHead:
		return "HEAD"
	case MethodOptions:
		return "OPTIONS"
	default:
		return "ANY"
	}
}

// ParseMethodList turns a comma-separated method list ("GET,POST") into
// a bitmask, used by router when a route is registered against several
// methods at once.
func ParseMethodList(s string) Method {
	var m Method
	for _, tok := range strings.Split(s, ",") {
		m |= methodFromToken(strings.ToUpper(trimSpace(tok)))
	}
	return m
}
