package httpparse

import "github.com/nullstream/asyncweb/transport"

// Bind attaches a pooled Request to a live connection and router, ready
// to Feed incoming bytes.
func (r *Request) Bind(c transport.Conn, router Router) {
	r.conn = c
	r.router = router
	r.State = StateStart
}

// resetForReuse clears every field so a recycled Request is
// indistinguishable from a freshly allocated one. Slices are truncated
// rather than discarded so their backing arrays are reused across
// requests, the same trade the teacher's pool.ObjPool makes for its
// buffer slots.
func (r *Request) resetForReuse() {
	r.conn = nil
	r.router = nil

	r.State = StateStart
	r.Version = 1
	r.Method = 0
	r.URL = ""
	r.Host = ""

	r.ContentType = ""
	r.Boundary = ""

	r.AuthToken = ""
	r.AuthKind = AuthNone

	r.ConnType = ConnHTTP

	r.ContentLength = 0
	r.ParsedLength = 0
	r.ExpectingContinue = false

	if r.headers == nil {
		r.headers = newHeaderList()
	} else {
		r.headers.Free()
	}
	r.interestingNames = nil
	r.interestingAny = false
	r.Params = r.Params[:0]
	r.PathParams = r.PathParams[:0]

	r.handler = nil
	r.response = nil
	r.lastAck = AckContinue
	r.onDisconnect = nil

	r.scratch = r.scratch[:0]
	r.isFragmented = false

	r.isMultipart = false
	r.isPlainPost = false
	r.bodyTail = r.bodyTail[:0]

	r.mpState = mpBoundary
	r.mpBuf = r.mpBuf[:0]
	r.itemName = ""
	r.itemFileName = ""
	r.itemType = ""
	r.itemValue = r.itemValue[:0]
	r.itemIsFile = false
	r.itemSize = 0

	r.Err = nil
}
