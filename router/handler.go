package router

import (
	"regexp"

	"github.com/nullstream/asyncweb/auth"
	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/response"
)

// RequestFunc handles a fully-parsed request with no body, or the
// end-of-headers point for a request whose body is handled separately.
type RequestFunc func(req *httpparse.Request)

// UploadFunc receives one fragment of a multipart file upload.
type UploadFunc func(req *httpparse.Request, filename string, index int64, data []byte, final bool)

// BodyFunc receives one fragment of a non-form request body.
type BodyFunc func(req *httpparse.Request, data []byte, index int64, total int64)

// FilterFunc gates whether a CallbackHandler is even considered for req
// (e.g. an auth check); returning false skips this handler entirely.
type FilterFunc func(req *httpparse.Request) bool

// CallbackHandler is the user-facing route: a method mask, a URL match
// rule, and the callbacks spec.md §4.3 describes. The zero value's
// OnRequest is a no-op, so a CallbackHandler built only for its side
// effects (filters, uploads) doesn't panic if dispatched directly.
type CallbackHandler struct {
	Method  httpparse.Method
	Kind    MatchKind
	Pattern string
	regex   *regexp.Regexp

	OnRequest RequestFunc
	OnUpload  UploadFunc
	OnBody    BodyFunc
	OnFilter  FilterFunc

	// InterestingHeaders lists header names this handler wants retained
	// on the Request once a match is confirmed ("*" retains all).
	InterestingHeaders []string

	// Username and Password, when Username is non-empty, require the
	// request carry a matching HTTP Basic Authorization header (spec.md
	// §4.3, §7). A mismatch sends 401 with a WWW-Authenticate challenge
	// instead of invoking OnRequest.
	Username string
	Password string

	// Realm names the protection space in the WWW-Authenticate
	// challenge; defaults to "Login Required" when empty.
	Realm string
}

// NewCallbackHandler builds a CallbackHandler for the given method mask,
// match kind, and pattern. For MatchRegex, pattern is compiled
// immediately; a bad pattern makes the handler permanently non-matching
// rather than panicking, since routes are normally registered at
// program startup where a panic would be preferable — callers that want
// that behavior should call regexp.MustCompile themselves and use
// NewRegexCallbackHandler.
func NewCallbackHandler(method httpparse.Method, kind MatchKind, pattern string, onRequest RequestFunc) *CallbackHandler {
	h := &CallbackHandler{Method: method, Kind: kind, Pattern: pattern, OnRequest: onRequest}
	if kind == MatchRegex {
		h.regex, _ = regexp.Compile(pattern)
	}
	return h
}

// NewRegexCallbackHandler builds a MatchRegex CallbackHandler from an
// already-compiled pattern, so callers get a compile-time panic on a bad
// pattern instead of a silently-dead route.
func NewRegexCallbackHandler(method httpparse.Method, re *regexp.Regexp, onRequest RequestFunc) *CallbackHandler {
	return &CallbackHandler{Method: method, Kind: MatchRegex, Pattern: re.String(), regex: re, OnRequest: onRequest}
}

func (h *CallbackHandler) Filter(req *httpparse.Request) bool {
	if h.OnFilter != nil {
		return h.OnFilter(req)
	}
	return true
}

func (h *CallbackHandler) CanHandle(req *httpparse.Request) bool {
	if h.Method != httpparse.MethodAny && h.Method&req.Method == 0 {
		return false
	}
	ok, captures := matchURL(h.Kind, h.Pattern, h.regex, req.URL)
	if !ok {
		return false
	}
	req.PathParams = append(req.PathParams[:0], captures...)
	for _, name := range h.InterestingHeaders {
		req.AddInterestingHeader(name)
	}
	// original_source/src/handler/AsyncCallbackWebHandler.cc:53: on a
	// match, every header is retained — OnRequest/OnFilter are arbitrary
	// user code that may read any header, not just the ones named in
	// InterestingHeaders.
	req.AddInterestingHeader("*")
	return true
}

func (h *CallbackHandler) HandleRequest(req *httpparse.Request) {
	if h.Username != "" && !h.authorized(req) {
		realm := h.Realm
		if realm == "" {
			realm = "Login Required"
		}
		resp := response.NewBasic(401, "text/plain", []byte("Unauthorized"))
		resp.AddHeader("WWW-Authenticate", auth.BasicChallenge(realm))
		req.Send(resp)
		return
	}
	if h.OnRequest != nil {
		h.OnRequest(req)
	}
}

// authorized checks req's Authorization header against Username/Password
// when Basic auth is configured.
func (h *CallbackHandler) authorized(req *httpparse.Request) bool {
	if req.AuthKind != httpparse.AuthBasic {
		return false
	}
	return auth.VerifyBasic(req.AuthToken, h.Username, h.Password)
}

func (h *CallbackHandler) HandleUpload(req *httpparse.Request, filename string, index int64, data []byte, final bool) {
	if h.OnUpload != nil {
		h.OnUpload(req, filename, index, data, final)
	}
}

func (h *CallbackHandler) HandleBody(req *httpparse.Request, data []byte, index int64, total int64) {
	if h.OnBody != nil {
		h.OnBody(req, data, index, total)
	}
}

func (h *CallbackHandler) IsTrivial() bool { return len(h.InterestingHeaders) == 0 }

var _ httpparse.Handler = (*CallbackHandler)(nil)
