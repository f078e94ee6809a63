// Package response implements the abstract response pump (spec.md
// §4.5): a small state machine that feeds a body — in-memory, streamed
// from an io.Reader, or chunked when the length is unknown — through a
// transport.Conn's transmit window one ACK at a time. Grounded on the
// original AsyncWebServerResponse's SETUP/HEADERS/CONTENT/WAIT_ACK/END
// state machine, reimagined around Go's io.Reader instead of the
// original's raw fill-callback-plus-offset signature.
package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wsaerr"
)

type pumpPhase int

const (
	phaseHeaders pumpPhase = iota
	phaseBody
	phaseTrailer
	phaseWaitAck
	phaseDone
)

// Response is the concrete httpparse.Response used for everything
// except a WebSocket upgrade (which wsocket implements directly, since
// its final ACK hands the connection off instead of closing it).
type Response struct {
	Code        int
	Status      string
	ContentType string
	Headers     []httpparse.Header

	contentLength int64 // -1 means unknown: use chunked transfer-encoding
	body          io.Reader
	closer        io.Closer

	placeholder byte
	maxNameLen  int
	processor   Processor

	phase    pumpPhase
	pending  []byte // bytes already built but not yet accepted by the transport
	readBuf  []byte
	finished bool

	// unacked counts bytes handed to conn.Write but not yet confirmed by
	// a real Ack: transport.Conn.Write only queues onto the connection's
	// send buffer (transport/tcp/conn.go hands the actual socket write
	// off to a background goroutine), so reaching phaseDone on a Write's
	// return alone would let the caller close the connection before the
	// bytes actually hit the wire. phaseWaitAck blocks completion until
	// unacked drains back to zero via real Ack(n, ...) calls.
	unacked int64
}

// readChunkSize bounds how much of the body Reader is pulled per pump
// step, so one slow producer doesn't block the connection's dispatcher
// goroutine for long.
const readChunkSize = 16 * 1024

// NewBasic builds a Response whose entire body is already in memory.
// Covers what the original distinguishes as "basic" and PROGMEM/flash
// literal responses — Go has no separate flash address space, so both
// collapse to the same in-memory byte slice here.
func NewBasic(code int, contentType string, body []byte) *Response {
	return &Response{
		Code: code, ContentType: contentType,
		Headers:       snapshotDefaultHeaders(),
		contentLength: int64(len(body)),
		body:          newByteReader(body),
		placeholder:   byte(defaultPlaceholder.Load()),
		maxNameLen:    int(defaultParamNameLen.Load()),
	}
}

// NewStream builds a Response backed by body, which contentLength bytes
// will be read from before the response completes. If closer is
// non-nil, it is closed once the pump reaches completion (success or
// failure) — used by staticfs to close the underlying *os.File.
func NewStream(code int, contentType string, contentLength int64, body io.Reader, closer io.Closer) *Response {
	if contentLength >= 0 {
		body = io.LimitReader(body, contentLength)
	}
	return &Response{
		Code: code, ContentType: contentType,
		Headers:       snapshotDefaultHeaders(),
		contentLength: contentLength,
		body:          body,
		closer:        closer,
		placeholder:   byte(defaultPlaceholder.Load()),
		maxNameLen:    int(defaultParamNameLen.Load()),
	}
}

// NewChunked builds a Response of unknown length: the body is sent with
// Transfer-Encoding: chunked until body returns io.EOF.
func NewChunked(code int, contentType string, body io.Reader, closer io.Closer) *Response {
	return &Response{
		Code: code, ContentType: contentType,
		Headers:       snapshotDefaultHeaders(),
		contentLength: -1,
		body:          body,
		closer:        closer,
		placeholder:   byte(defaultPlaceholder.Load()),
		maxNameLen:    int(defaultParamNameLen.Load()),
	}
}

// WithTemplate enables %NAME% placeholder expansion via proc. Only
// meaningful for NewBasic responses: streamed and chunked bodies are
// never buffered in full, so they are sent through unexpanded.
func (resp *Response) WithTemplate(proc Processor) *Response {
	resp.processor = proc
	if resp.contentLength >= 0 {
		if br, ok := resp.body.(*byteReader); ok {
			expanded := expandTemplate(br.remaining(), resp.placeholder, resp.maxNameLen, proc)
			resp.body = newByteReader(expanded)
			resp.contentLength = int64(len(expanded))
		}
	}
	return resp
}

// AddHeader appends an extra response header, sent after the
// well-known ones and after any process-wide default headers
// (AddDefaultHeader) this Response was seeded with at construction.
func (resp *Response) AddHeader(name, value string) *Response {
	resp.Headers = append(resp.Headers, httpparse.Header{Name: name, Value: value})
	return resp
}

func (resp *Response) buildHeaderBytes(req *httpparse.Request) []byte {
	status := resp.Status
	if status == "" {
		status = statusText(resp.Code)
	}
	var b strings.Builder
	httpVersion := "HTTP/1.1"
	if req.Version == 0 {
		httpVersion = "HTTP/1.0"
	}
	fmt.Fprintf(&b, "%s %d %s\r\n", httpVersion, resp.Code, status)
	if resp.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", resp.ContentType)
	}
	if resp.contentLength >= 0 {
		fmt.Fprintf(&b, "Content-Length: %s\r\n", strconv.FormatInt(resp.contentLength, 10))
	} else {
		b.WriteString("Transfer-Encoding: chunked\r\n")
	}
	// spec.md §4.5: every response closes the connection; there is no
	// persistent-connection support.
	b.WriteString("Connection: close\r\n")
	for _, h := range resp.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Respond implements httpparse.Response.
func (resp *Response) Respond(req *httpparse.Request) httpparse.AckResult {
	resp.phase = phaseHeaders
	resp.pending = resp.buildHeaderBytes(req)
	if resp.readBuf == nil {
		resp.readBuf = make([]byte, readChunkSize)
	}
	return resp.pumpOnce(req)
}

// Ack implements httpparse.Response. n is the number of bytes the
// transport has actually confirmed written (not merely queued); it is
// subtracted from unacked before the pump is allowed to progress past
// phaseWaitAck.
func (resp *Response) Ack(req *httpparse.Request, n int, _ int64) httpparse.AckResult {
	resp.unacked -= int64(n)
	if resp.unacked < 0 {
		resp.unacked = 0
	}
	return resp.pumpOnce(req)
}

// pumpOnce writes as much of the current phase's pending bytes as the
// transport will accept, advancing pending by what was written; once
// pending drains it produces the next phase's bytes (request a fresh
// body chunk, or the chunked trailer), and finally reports completion.
func (resp *Response) pumpOnce(req *httpparse.Request) httpparse.AckResult {
	conn := req.Conn()
	for {
		if len(resp.pending) > 0 {
			n, err := conn.Write(resp.pending, transport.CopyBuffer)
			if err != nil {
				resp.fail()
				return httpparse.AckFinishedClose
			}
			resp.unacked += int64(n)
			resp.pending = resp.pending[n:]
			if len(resp.pending) > 0 {
				return httpparse.AckContinue // wait for the next Ack to retry the remainder
			}
		}

		switch resp.phase {
		case phaseHeaders:
			resp.phase = phaseBody
		case phaseBody:
			chunk, eof := resp.nextBodyChunk()
			if len(chunk) == 0 && !eof {
				return httpparse.AckContinue
			}
			if eof {
				resp.phase = phaseTrailer
			}
			resp.pending = chunk
			if len(resp.pending) == 0 {
				continue // zero-length final read; go straight to trailer/done
			}
		case phaseTrailer:
			resp.phase = phaseWaitAck
			if resp.contentLength < 0 {
				resp.pending = []byte("0\r\n\r\n")
			}
		case phaseWaitAck:
			if resp.unacked > 0 {
				return httpparse.AckContinue // real write still in flight; wait for the next Ack
			}
			resp.phase = phaseDone
		case phaseDone:
			resp.finish()
			return httpparse.AckFinishedClose
		}
	}
}

// nextBodyChunk reads the next slice from body, wrapping it in chunked
// framing when the response length is unknown.
func (resp *Response) nextBodyChunk() (chunk []byte, eof bool) {
	n, err := resp.body.Read(resp.readBuf)
	if errors.Is(err, wsaerr.ErrTryAgain) {
		err = nil // no data yet: pumpOnce retries on the next Ack
	}
	if n == 0 {
		return nil, err != nil
	}
	data := resp.readBuf[:n]
	if resp.contentLength >= 0 {
		out := append([]byte(nil), data...)
		return out, err != nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%x\r\n", n)
	b.Write(data)
	b.WriteString("\r\n")
	return []byte(b.String()), err != nil
}

func (resp *Response) finish() {
	if resp.finished {
		return
	}
	resp.finished = true
	if resp.closer != nil {
		_ = resp.closer.Close()
	}
}

func (resp *Response) fail() {
	resp.finish()
}

var _ httpparse.Response = (*Response)(nil)
