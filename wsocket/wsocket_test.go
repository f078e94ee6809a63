package wsocket_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullstream/asyncweb/httpparse"
	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wsocket"
)

// fakeConn is a minimal synchronous transport.Conn double recording
// everything written and letting a test drive the registered callbacks
// directly.
type fakeConn struct {
	out        bytes.Buffer
	closed     bool
	onData     func([]byte)
	onAck      func(int, int64)
	onDisc     func()
	rxTimeout  int
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
func (f *fakeConn) SendBufferFree() int          { return 1 << 20 }
func (f *fakeConn) TaskID() uint64               { return 7 }
func (f *fakeConn) RemoteIP() string             { return "127.0.0.1" }
func (f *fakeConn) RemotePort() int              { return 4321 }
func (f *fakeConn) SetRxTimeoutSeconds(s int)    { f.rxTimeout = s }
func (f *fakeConn) SetDeferAck(bool)             {}
func (f *fakeConn) OnDataReceived(fn func([]byte)) { f.onData = fn }
func (f *fakeConn) OnAck(fn func(int, int64))      { f.onAck = fn }
func (f *fakeConn) OnError(func(int))              {}
func (f *fakeConn) OnPoll(func())                  {}
func (f *fakeConn) OnTimeout(func(int64))          {}
func (f *fakeConn) OnDisconnected(fn func())       { f.onDisc = fn }

var _ transport.Conn = (*fakeConn)(nil)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	encoded := wsocket.EncodeFrame(true, wsocket.OpText, []byte("hello"), false)

	var dec wsocket.Decoder
	frames, err := dec.Feed(encoded)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, wsocket.OpText, frames[0].Opcode)
	assert.True(t, frames[0].Fin)
	assert.Equal(t, "hello", string(frames[0].Payload))
}

func TestDecoderHandlesFragmentedFeed(t *testing.T) {
	encoded := wsocket.EncodeFrame(true, wsocket.OpBinary, bytes.Repeat([]byte{0xAB}, 200), false)

	var dec wsocket.Decoder
	frames, err := dec.Feed(encoded[:3])
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = dec.Feed(encoded[3:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 200, len(frames[0].Payload))
}

func TestAcceptKeyMatchesRFC6455Example(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	got := wsocket.AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

func TestClientSendTextWritesEncodedFrame(t *testing.T) {
	conn := &fakeConn{}
	c := wsocket.NewClient(conn, 8)
	require.NoError(t, c.SendText("hi"))

	var dec wsocket.Decoder
	frames, err := dec.Feed(conn.out.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "hi", string(frames[0].Payload))
}

func TestClientRepliesPongToPing(t *testing.T) {
	conn := &fakeConn{}
	wsocket.NewClient(conn, 8)

	ping := wsocket.EncodeFrame(true, wsocket.OpPing, []byte("ping"), false)
	conn.onData(ping)

	var dec wsocket.Decoder
	frames, err := dec.Feed(conn.out.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, wsocket.OpPong, frames[0].Opcode)
	assert.Equal(t, "ping", string(frames[0].Payload))
}

func TestClientReassemblesFragmentedMessage(t *testing.T) {
	conn := &fakeConn{}
	c := wsocket.NewClient(conn, 8)

	var got []byte
	c.OnMessage = func(_ *wsocket.Client, opcode wsocket.Opcode, payload []byte) {
		assert.Equal(t, wsocket.OpText, opcode)
		got = append([]byte(nil), payload...)
	}

	conn.onData(wsocket.EncodeFrame(false, wsocket.OpText, []byte("hello "), false))
	conn.onData(wsocket.EncodeFrame(true, wsocket.OpContinuation, []byte("world"), false))

	assert.Equal(t, "hello world", string(got))
}

func TestHandlerUpgradeHandshakeAndBroadcast(t *testing.T) {
	h := wsocket.NewHandler("/ws", 0, 16)

	var connected *wsocket.Client
	h.OnConnect = func(c *wsocket.Client) { connected = c }

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, nil)
	req.Method = httpparse.MethodGet
	req.URL = "/ws"
	req.Version = 1

	ok := h.CanHandle(req)
	require.True(t, ok)

	// Simulate the Sec-WebSocket-Key and Upgrade headers having arrived.
	req.State = httpparse.StateHeaders
	feedHeader(req, "Upgrade: websocket")
	feedHeader(req, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==")
	feedHeader(req, "Sec-WebSocket-Version: 13")

	h.HandleRequest(req)

	require.NotNil(t, connected)
	assert.Contains(t, conn.out.String(), "101 Switching Protocols")
	assert.Contains(t, conn.out.String(), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
	assert.Equal(t, 1, len(h.Clients()))

	conn.out.Reset()
	h.Broadcast(wsocket.OpText, []byte("hi all"))

	var dec wsocket.Decoder
	frames, err := dec.Feed(conn.out.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "hi all", string(frames[0].Payload))
}

func TestHandlerRejectsMissingOrWrongWebSocketVersion(t *testing.T) {
	h := wsocket.NewHandler("/ws", 0, 16)

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, nil)
	req.Method = httpparse.MethodGet
	req.URL = "/ws"
	req.Version = 1
	require.True(t, h.CanHandle(req))

	req.State = httpparse.StateHeaders
	feedHeader(req, "Upgrade: websocket")
	feedHeader(req, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==")
	feedHeader(req, "Sec-WebSocket-Version: 8")

	h.HandleRequest(req)

	assert.Contains(t, conn.out.String(), "400 Bad Request")
	assert.Equal(t, 0, len(h.Clients()))
}

func TestHandlerRequiresBasicAuthWhenConfigured(t *testing.T) {
	h := wsocket.NewHandler("/ws", 0, 16)
	h.Username = "admin"
	h.Password = "secret"

	conn := &fakeConn{}
	req := httpparse.New()
	req.Bind(conn, nil)
	req.Method = httpparse.MethodGet
	req.URL = "/ws"
	req.Version = 1
	require.True(t, h.CanHandle(req))

	req.State = httpparse.StateHeaders
	feedHeader(req, "Upgrade: websocket")
	feedHeader(req, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==")
	feedHeader(req, "Sec-WebSocket-Version: 13")

	h.HandleRequest(req)

	out := conn.out.String()
	assert.Contains(t, out, "401")
	assert.Contains(t, out, `WWW-Authenticate: Basic realm="Login Required"`)
	assert.Equal(t, 0, len(h.Clients()))
}

// feedHeader applies a single "Name: Value" header line to req without
// going through the line-oriented parser, for tests that only need the
// header side effects (AddInterestingHeader retention) exercised.
func feedHeader(req *httpparse.Request, line string) {
	req.Feed([]byte(line + "\r\n"))
}
