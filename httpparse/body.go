package httpparse

import "github.com/nullstream/asyncweb/wsaerr"

// feedBody consumes as much of data as belongs to the current request's
// body (bounded by ContentLength - ParsedLength), dispatches it to the
// appropriate body-parsing path, and returns the number of bytes
// consumed from data. It never looks past the request's declared
// Content-Length, so trailing bytes from a pipelined write are left for
// the caller (there is no next request on this connection — spec.md's
// "responses always close the connection" — but transport reads can
// still arrive batched).
func (r *Request) feedBody(data []byte) int {
	remaining := r.ContentLength - r.ParsedLength
	if remaining <= 0 {
		r.finishRequest()
		return 0
	}
	n := int64(len(data))
	if n > remaining {
		n = remaining
	}
	chunk := data[:n]

	switch {
	case r.isMultipart:
		r.feedMultipart(chunk)
	case r.isPlainPost:
		if r.handler != nil {
			r.handler.HandleBody(r, chunk, r.ParsedLength, r.ContentLength)
		}
	default:
		r.feedURLEncoded(chunk)
	}

	r.ParsedLength += n
	if r.ParsedLength >= r.ContentLength {
		r.finishRequest()
	}
	return int(n)
}

// feedURLEncoded accumulates application/x-www-form-urlencoded bytes,
// splitting complete "name=value" tokens off on '&' boundaries as they
// arrive and carrying any incomplete trailing token in bodyTail.
func (r *Request) feedURLEncoded(chunk []byte) {
	buf := append(r.bodyTail, chunk...)
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] == '&' {
			r.addURLEncodedToken(string(buf[start:i]))
			start = i + 1
		}
	}
	r.bodyTail = append(r.bodyTail[:0], buf[start:]...)
	if r.ParsedLength+int64(len(chunk)) >= r.ContentLength && len(r.bodyTail) > 0 {
		r.addURLEncodedToken(string(r.bodyTail))
		r.bodyTail = r.bodyTail[:0]
	}
}

func (r *Request) addURLEncodedToken(tok string) {
	if tok == "" {
		return
	}
	r.Params = parseQueryInto(r.Params, tok)
	if len(r.Params) > 0 {
		r.Params[len(r.Params)-1].IsForm = true
	}
}

// finishRequest runs the bound handler's HandleRequest exactly once and
// marks the parser done. Safe to call whether or not there was a body.
func (r *Request) finishRequest() {
	if r.State == StateEnd || r.State == StateFail {
		return
	}
	if r.handler == nil {
		r.State = StateFail
		r.Err = wsaerr.ErrNoBodyHandler
		return
	}
	r.handler.HandleRequest(r)
	r.State = StateEnd
}
