package response_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/response"
	"github.com/nullstream/asyncweb/transport"
)

// fakeConn is a minimal transport.Conn that accepts every Write
// synchronously and records everything sent, for exercising the
// response pump without a real socket.
type fakeConn struct {
	out    bytes.Buffer
	closed bool
}

func (f *fakeConn) Close() error { f.closed = true; return nil }
func (f *fakeConn) Send() error  { return nil }
func (f *fakeConn) Add(buf []byte, _ transport.AddFlag) error {
	f.out.Write(buf)
	return nil
}
func (f *fakeConn) Write(buf []byte, _ transport.AddFlag) (int, error) {
	f.out.Write(buf)
	return len(buf), nil
}
func (f *fakeConn) SendBufferFree() int             { return 1 << 20 }
func (f *fakeConn) TaskID() uint64                  { return 1 }
func (f *fakeConn) RemoteIP() string                { return "127.0.0.1" }
func (f *fakeConn) RemotePort() int                 { return 1234 }
func (f *fakeConn) SetRxTimeoutSeconds(int)         {}
func (f *fakeConn) SetDeferAck(bool)                {}
func (f *fakeConn) OnDataReceived(func([]byte))     {}
func (f *fakeConn) OnAck(func(int, int64))          {}
func (f *fakeConn) OnError(func(int))               {}
func (f *fakeConn) OnPoll(func())                   {}
func (f *fakeConn) OnTimeout(func(int64))           {}
func (f *fakeConn) OnDisconnected(func())           {}

var _ transport.Conn = (*fakeConn)(nil)

func newBoundRequest(c transport.Conn) *httpparse.Request {
	r := httpparse.New()
	r.Bind(c, nil)
	r.Version = 1
	return r
}

func TestBasicResponseWritesFullMessage(t *testing.T) {
	conn := &fakeConn{}
	req := newBoundRequest(conn)

	resp := response.NewBasic(200, "text/plain", []byte("hello world"))
	result := req.Send(resp)
	require.Equal(t, httpparse.AckContinue, result) // WAIT_ACK: the transport hasn't confirmed the write yet

	result = req.Response().Ack(req, conn.out.Len(), 1)
	assert.Equal(t, httpparse.AckFinishedClose, result)
	out := conn.out.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
	assert.Contains(t, out, "Content-Length: 11\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "hello world"))
}

func TestChunkedResponseFramesEachChunk(t *testing.T) {
	conn := &fakeConn{}
	req := newBoundRequest(conn)

	resp := response.NewChunked(200, "text/plain", strings.NewReader("abc"), nil)
	result := req.Send(resp)
	require.Equal(t, httpparse.AckContinue, result) // WAIT_ACK: the transport hasn't confirmed the write yet

	result = req.Response().Ack(req, conn.out.Len(), 1)
	require.Equal(t, httpparse.AckFinishedClose, result)
	out := conn.out.String()
	assert.Contains(t, out, "Transfer-Encoding: chunked\r\n")
	assert.Contains(t, out, "3\r\nabc\r\n")
	assert.True(t, strings.HasSuffix(out, "0\r\n\r\n"))
}

func TestTemplateExpansion(t *testing.T) {
	conn := &fakeConn{}
	req := newBoundRequest(conn)

	resp := response.NewBasic(200, "text/html", []byte("hi %NAME%, you are %AGE%")).
		WithTemplate(func(name string) string {
			switch name {
			case "NAME":
				return "Ada"
			case "AGE":
				return "36"
			}
			return ""
		})
	req.Send(resp)
	req.Response().Ack(req, conn.out.Len(), 1)

	out := conn.out.String()
	assert.Contains(t, out, "hi Ada, you are 36")
}

func TestStreamResponseClosesUnderlyingReader(t *testing.T) {
	conn := &fakeConn{}
	req := newBoundRequest(conn)

	rc := &closeTrackingReader{Reader: strings.NewReader("streamed body")}
	resp := response.NewStream(200, "application/octet-stream", int64(len("streamed body")), rc, rc)
	req.Send(resp)
	req.Response().Ack(req, conn.out.Len(), 1)

	assert.True(t, rc.closed)
	assert.Contains(t, conn.out.String(), "streamed body")
}

func TestDefaultHeadersSeedEveryResponse(t *testing.T) {
	response.ClearDefaultHeaders()
	defer response.ClearDefaultHeaders()
	response.AddDefaultHeader("Server", "asyncweb")
	response.AddDefaultHeader("X-Frame-Options", "SAMEORIGIN")

	conn := &fakeConn{}
	req := newBoundRequest(conn)

	resp := response.NewBasic(200, "text/plain", []byte("hi")).AddHeader("X-Custom", "1")
	req.Send(resp)
	req.Response().Ack(req, conn.out.Len(), 1)

	out := conn.out.String()
	assert.Contains(t, out, "Server: asyncweb\r\n")
	assert.Contains(t, out, "X-Frame-Options: SAMEORIGIN\r\n")
	assert.Contains(t, out, "X-Custom: 1\r\n")
	// defaults precede the response's own headers.
	assert.True(t, strings.Index(out, "Server: asyncweb") < strings.Index(out, "X-Custom: 1"))
}

func TestResponseWaitsForRealAckBeforeClosing(t *testing.T) {
	conn := &fakeConn{}
	req := newBoundRequest(conn)

	resp := response.NewBasic(200, "text/plain", []byte("hello world"))
	result := req.Send(resp)
	require.Equal(t, httpparse.AckContinue, result)

	total := conn.out.Len()
	require.Greater(t, total, 1)

	// A partial real ack (fewer bytes confirmed than were queued) must
	// not be mistaken for completion — the remainder is still in flight
	// on the transport's async flush.
	result = req.Response().Ack(req, total-1, 1)
	assert.Equal(t, httpparse.AckContinue, result)

	result = req.Response().Ack(req, 1, 1)
	assert.Equal(t, httpparse.AckFinishedClose, result)
}

type closeTrackingReader struct {
	*strings.Reader
	closed bool
}

func (c *closeTrackingReader) Close() error {
	c.closed = true
	return nil
}
