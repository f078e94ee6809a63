package httpparse

import (
	"bytes"
	"strings"

	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wsaerr"
)

// maxLineLength bounds the request-line and each header line, preventing
// a slow-loris-style client from growing scratch unboundedly (spec.md
// §4.2 "Line accumulation").
const maxLineLength = 8192

// Feed drives the incremental parser with the next chunk of bytes read
// from the connection. It is safe to call repeatedly with arbitrarily
// fragmented reads — at most one partial line, or one partial body
// chunk, is ever held across calls.
func (r *Request) Feed(data []byte) {
	for len(data) > 0 {
		switch r.State {
		case StateStart, StateHeaders:
			line, rest, found := r.scanLine(data)
			if r.State == StateFail {
				return
			}
			if !found {
				return
			}
			data = rest
			r.handleLine(line)
		case StateBody:
			n := r.feedBody(data)
			if n == 0 {
				return
			}
			data = data[n:]
		default: // StateEnd, StateFail
			return
		}
	}
}

// scanLine extracts the next CRLF- or LF-terminated line from the
// combination of any previously fragmented scratch bytes and data. When
// no newline is present yet, the combined bytes are stashed in scratch
// and found is false.
func (r *Request) scanLine(data []byte) (line string, rest []byte, found bool) {
	combined := data
	if len(r.scratch) > 0 {
		combined = make([]byte, 0, len(r.scratch)+len(data))
		combined = append(combined, r.scratch...)
		combined = append(combined, data...)
	}
	idx := bytes.IndexByte(combined, '\n')
	if idx < 0 {
		if len(combined) > maxLineLength {
			r.State = StateFail
			r.Err = wsaerr.ErrHeaderTooLong
			return "", nil, false
		}
		r.scratch = append(r.scratch[:0], combined...)
		r.isFragmented = true
		return "", nil, false
	}
	lineBytes := combined[:idx]
	if len(lineBytes) > 0 && lineBytes[len(lineBytes)-1] == '\r' {
		lineBytes = lineBytes[:len(lineBytes)-1]
	}
	line = string(lineBytes)
	rest = combined[idx+1:]
	r.scratch = r.scratch[:0]
	r.isFragmented = false
	return line, rest, true
}

func (r *Request) handleLine(line string) {
	switch r.State {
	case StateStart:
		r.parseRequestLine(line)
	case StateHeaders:
		if line == "" {
			r.endOfHeaders()
			return
		}
		h, ok := parseHeaderLine(line)
		if !ok {
			r.State = StateFail
			r.Err = wsaerr.ErrParseFailed
			return
		}
		r.applyHeader(h)
	}
}

// parseRequestLine parses "METHOD URL HTTP/1.x" (spec.md §4.2).
func (r *Request) parseRequestLine(line string) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		r.State = StateFail
		r.Err = wsaerr.ErrParseFailed
		return
	}
	r.Method = methodFromToken(parts[0])

	path, query := splitPathQuery(parts[1])
	r.URL = path
	r.Params = parseQueryInto(r.Params, query)

	switch parts[2] {
	case "HTTP/1.1":
		r.Version = 1
	case "HTTP/1.0":
		r.Version = 0
	default:
		r.State = StateFail
		r.Err = wsaerr.ErrParseFailed
		return
	}
	r.State = StateHeaders
	r.prescanInterestingHeaders()
}

// prescanInterestingHeaders runs route dispatch against the
// request-line fields alone (method and URL — the only fields a
// CanHandle implementation is expected to match on), purely so any
// handler matched along the way gets to call AddInterestingHeader
// before the header lines it cares about actually arrive. The dispatch
// performed here is provisional and re-run for real at endOfHeaders,
// once Host/Content-Type/etc. are available.
func (r *Request) prescanInterestingHeaders() {
	if r.router == nil {
		return
	}
	r.router.Dispatch(r)
}

// endOfHeaders runs route dispatch, handles the 100-continue handshake,
// and transitions to body parsing or straight to HandleRequest when
// there is no body (spec.md §4.2 "End of headers").
func (r *Request) endOfHeaders() {
	if r.router != nil {
		r.router.Rewrite(r)
		// Dispatch is expected to call CanHandle on each candidate handler
		// itself (to find the first match) and return the winner; any
		// match-side-effects (PathParams, interesting headers) the
		// winning handler needs are expected to happen during that call.
		r.handler = r.router.Dispatch(r)
	}

	if r.ExpectingContinue && r.handler != nil && r.ContentLength > 0 {
		if r.conn != nil {
			_, _ = r.conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"), transport.CopyBuffer)
		}
	}

	if r.ContentLength <= 0 {
		r.finishRequest()
		return
	}
	r.State = StateBody
}
