// Package httpparse implements the incremental HTTP/1.x request-line,
// header, and body parser (spec.md §4.2), the Request/Header/Parameter
// data model (spec.md §3), and the lock-free request pool (spec.md
// §4.1). It is deliberately the lowest-level package in asyncweb: it
// depends only on transport, wsutil and wsaerr, and defines small consumer-side
// interfaces (Handler, Router, Response) so router, staticfs, wsocket,
// and response can each implement the piece they own without an import
// cycle back into httpparse.
package httpparse

import (
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wsutil"
)

// ParseState is the request's top-level parse state (spec.md §3).
type ParseState int

const (
	StateStart ParseState = iota
	StateHeaders
	StateBody
	StateEnd
	StateFail
)

// Method is a bitmask over the HTTP methods spec.md §3 names, so a route
// can be registered against more than one method at once.
type Method uint16

const (
	MethodGet Method = 1 << iota
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
	MethodHead
	MethodOptions
	// MethodAny matches any method; used both for unrecognized request
	// lines (spec.md §4.2's method hash falls back to ANY) and for
	// routes that don't filter by method.
	MethodAny
)

// ConnType is the request's negotiated connection type (spec.md §3).
type ConnType int

const (
	ConnHTTP ConnType = iota
	ConnWS
	ConnEvent
	ConnDefault
)

// AuthKind distinguishes Basic from Digest Authorization headers (spec.md §3).
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthDigest
)

// Header is a parsed (name, value) pair (spec.md §3). Value is the text
// after the first ':' in the wire header line, with surrounding spaces
// and tabs trimmed.
type Header struct {
	Name  string
	Value string
}

// Parameter is a query, form, or multipart-file parameter (spec.md §3).
// Size is meaningful only when IsFile is true.
type Parameter struct {
	Name   string
	Value  string
	IsForm bool
	IsFile bool
	Size   int64
}

// AckResult reports what the response pump (or the WebSocket upgrade
// responder) wants the connection driver to do after an Ack/Respond call.
type AckResult int

const (
	// AckContinue: more ACKs are expected before the response completes.
	AckContinue AckResult = iota
	// AckFinishedClose: the response is complete; the connection should
	// be closed (spec.md §4.5 — "responses always close the connection").
	AckFinishedClose
	// AckFinishedHandoff: the response is complete and has already taken
	// ownership of the transport (the WebSocket upgrade path, spec.md
	// §4.6); the connection driver must not close it.
	AckFinishedHandoff
)

// Response is the minimal surface the request/parser package needs from
// a response implementation; response.* packages implement this.
type Response interface {
	// Respond begins the response pump against req and performs the
	// equivalent of the spec's initial ack(0, 0) call.
	Respond(req *Request) AckResult
	// Ack accounts len newly-acknowledged bytes (at timeMs) and advances
	// the pump.
	Ack(req *Request, len int, timeMs int64) AckResult
}

// Handler is the capability set spec.md §3 assigns to route handlers
// (callback, static-file, websocket). router, staticfs, and wsocket each
// provide a concrete implementation.
type Handler interface {
	// CanHandle reports whether this handler accepts req, and — if so —
	// is expected to mark any headers it needs via req.AddInterestingHeader.
	CanHandle(req *Request) bool
	// HandleRequest is invoked exactly once per request, at end-of-headers
	// (if Content-Length is 0) or at end-of-body otherwise.
	HandleRequest(req *Request)
	// HandleUpload delivers one multipart file fragment.
	HandleUpload(req *Request, filename string, index int64, data []byte, final bool)
	// HandleBody delivers one opaque (non-form, non-multipart) body fragment.
	HandleBody(req *Request, data []byte, index int64, total int64)
	// Filter gates whether this handler is even considered for req,
	// independent of CanHandle (e.g. a basic-auth gate before route match).
	Filter(req *Request) bool
	// IsTrivial reports whether this handler needs no header filtering
	// (treated as "interesting in all headers", like the default handler).
	IsTrivial() bool
}

// Router binds a request to a Handler at end-of-headers: it applies URL
// rewrite rules (spec.md §4.2 "End of headers") and then selects the
// first handler whose Filter+CanHandle accept, or a default handler.
type Router interface {
	Rewrite(req *Request)
	Dispatch(req *Request) Handler
}

// Request represents exactly one in-flight HTTP request on one
// connection (spec.md §3). It is either on the pool's free-list (via
// poolNext) or bound to exactly one transport.Conn — never both.
type Request struct {
	poolNext *Request // free-list link; nil when bound to a connection

	conn   transport.Conn
	router Router

	State   ParseState
	Version int // 0 = HTTP/1.0, 1 = HTTP/1.1
	Method  Method
	URL     string
	Host    string

	ContentType string
	Boundary    string // multipart boundary as a delimiter line: "--" prepended, no trailing "--"

	AuthToken string
	AuthKind  AuthKind

	ConnType ConnType

	ContentLength     int64
	ParsedLength      int64
	ExpectingContinue bool

	headers            *wsutil.List[Header]
	interestingNames   map[string]bool
	interestingAny     bool
	Params             []Parameter
	PathParams         []string

	handler  Handler
	response Response
	lastAck  AckResult

	onDisconnect func()

	// line accumulation scratch (spec.md §4.2 "Line accumulation")
	scratch       []byte
	isFragmented  bool

	// body parsing sub-state
	isMultipart bool
	isPlainPost bool
	bodyTail    []byte // unterminated urlencoded token carried across chunks

	// multipart sub-state (spec.md §3, §4.2)
	mpState      multipartState
	mpBuf        []byte
	itemName     string
	itemFileName string
	itemType     string
	itemValue    []byte
	itemIsFile   bool
	itemSize     int64

	// Err holds the reason State became StateFail, if any.
	Err error
}

// New allocates a fresh, unbound Request. Most callers should use a Pool
// instead so requests are recycled.
func New() *Request {
	r := &Request{}
	r.resetForReuse()
	return r
}

// Conn returns the transport.Conn this request is currently bound to, or
// nil if the request is pooled.
func (r *Request) Conn() transport.Conn { return r.conn }

// Response returns the response bound to this request, or nil.
func (r *Request) Response() Response { return r.response }

// Send binds resp to the request and starts the response pump. Mirrors
// the original AsyncWebServerRequest::send(response).
func (r *Request) Send(resp Response) AckResult {
	r.response = resp
	result := resp.Respond(r)
	r.lastAck = result
	return result
}

// LastAck reports the most recent AckResult produced by Send or a
// connection-driven Ack, letting the driver loop that owns the
// transport.Conn decide whether to close it or, for a WebSocket
// upgrade, leave it alone after a handoff.
func (r *Request) LastAck() AckResult { return r.lastAck }

// SetOnDisconnect registers the user callback run when the underlying
// connection disconnects (spec.md §5).
func (r *Request) SetOnDisconnect(fn func()) { r.onDisconnect = fn }

// OnDisconnect invokes the registered disconnect callback, if any.
func (r *Request) OnDisconnect() {
	if r.onDisconnect != nil {
		r.onDisconnect()
	}
}

// AddInterestingHeader marks name (case-insensitive) as one to retain
// after end-of-headers filtering. The special value "*" disables
// filtering entirely for this request (spec.md §4.2).
func (r *Request) AddInterestingHeader(name string) {
	if name == "*" {
		r.interestingAny = true
		return
	}
	if r.interestingNames == nil {
		r.interestingNames = make(map[string]bool)
	}
	r.interestingNames[lowerASCII(name)] = true
}

// HasHeader reports whether a header with the given name (case-insensitive)
// was retained.
func (r *Request) HasHeader(name string) bool {
	_, ok := r.GetHeader(name)
	return ok
}

// GetHeader returns the first retained header matching name
// (case-insensitive).
func (r *Request) GetHeader(name string) (Header, bool) {
	want := lowerASCII(name)
	return r.headers.Find(func(h Header) bool { return lowerASCII(h.Name) == want })
}

// Headers returns all retained headers in arrival order.
func (r *Request) Headers() []Header { return r.headers.Snapshot() }
