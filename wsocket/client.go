package wsocket

import (
	"github.com/eapache/queue"

	"github.com/nullstream/asyncweb/transport"
	"github.com/nullstream/asyncweb/wsaerr"
	"github.com/nullstream/asyncweb/wsutil"
)

// Client is one upgraded WebSocket connection: incremental frame
// decoding on receive, and a priority send queue (control frames ahead
// of data frames) pumped one frame at a time through the connection's
// ACK callback, serialized by a wsutil.ReentrantLock keyed on the
// connection's TaskID.
type Client struct {
	conn     transport.Conn
	lock     wsutil.ReentrantLock
	maxQueue int

	controlQ *queue.Queue
	dataQ    *queue.Queue
	pending  []byte // unencoded-but-for-the-current-in-flight-frame's remaining bytes

	decoder    Decoder
	fragOpcode Opcode
	fragBuf    []byte

	OnMessage func(c *Client, opcode Opcode, payload []byte)
	OnClose   func(c *Client)

	closing bool
	closed  bool
}

// NewClient wraps conn as a WebSocket client, bounding each of the
// control and data queues at maxQueue entries (spec.md §6's
// WSMaxQueueMessages).
func NewClient(conn transport.Conn, maxQueue int) *Client {
	c := &Client{
		conn:     conn,
		maxQueue: maxQueue,
		controlQ: queue.New(),
		dataQ:    queue.New(),
	}
	conn.SetRxTimeoutSeconds(0) // WebSocket liveness is ping/pong, not an RX timeout
	conn.OnDataReceived(c.handleData)
	conn.OnAck(c.handleAck)
	conn.OnDisconnected(c.handleDisconnect)
	return c
}

// Conn returns the underlying transport connection.
func (c *Client) Conn() transport.Conn { return c.conn }

// SendText enqueues a complete text message.
func (c *Client) SendText(s string) error {
	return c.enqueue(OpText, NewMessageBuffer(EncodeFrame(true, OpText, []byte(s), false), 1))
}

// SendBinary enqueues a complete binary message.
func (c *Client) SendBinary(b []byte) error {
	return c.enqueue(OpBinary, NewMessageBuffer(EncodeFrame(true, OpBinary, b, false), 1))
}

// SendBuffer enqueues a pre-encoded, possibly shared MessageBuffer —
// the path Broadcast uses so N clients share one encoded frame.
func (c *Client) SendBuffer(opcode Opcode, buf *MessageBuffer) error {
	return c.enqueue(opcode, buf)
}

// Ping enqueues a control ping frame.
func (c *Client) Ping(payload []byte) error {
	return c.enqueueControl(OpPing, EncodeFrame(true, OpPing, payload, false))
}

// Close enqueues a close frame and marks the client as closing; the
// connection is torn down once the close frame and anything queued
// ahead of it have been written.
func (c *Client) Close(reason []byte) error {
	c.lockGuard()(func() { c.closing = true })
	return c.enqueueControl(OpClose, EncodeFrame(true, OpClose, reason, false))
}

func (c *Client) enqueue(opcode Opcode, buf *MessageBuffer) error {
	g := c.lock.LockGuard(c.conn.TaskID())
	defer g.Unlock()
	if c.closed {
		return wsaerr.New(wsaerr.CodeProtocol, "client is closed")
	}
	if c.dataQ.Length() >= c.maxQueue {
		return wsaerr.ErrQueueFull
	}
	c.dataQ.Add(frameJob{opcode: opcode, buf: buf})
	c.pumpLocked()
	return nil
}

func (c *Client) enqueueControl(opcode Opcode, encoded []byte) error {
	g := c.lock.LockGuard(c.conn.TaskID())
	defer g.Unlock()
	if c.closed {
		return wsaerr.New(wsaerr.CodeProtocol, "client is closed")
	}
	if c.controlQ.Length() >= c.maxQueue {
		return wsaerr.ErrQueueFull
	}
	c.controlQ.Add(frameJob{opcode: opcode, buf: NewMessageBuffer(encoded, 1)})
	c.pumpLocked()
	return nil
}

// lockGuard is a small helper so one-off mutations under the lock read
// naturally at call sites (used by Close, above).
func (c *Client) lockGuard() func(func()) {
	return func(fn func()) {
		g := c.lock.LockGuard(c.conn.TaskID())
		defer g.Unlock()
		fn()
	}
}

func (c *Client) handleAck(int, int64) {
	g := c.lock.LockGuard(c.conn.TaskID())
	defer g.Unlock()
	c.pumpLocked()
}

// pumpLocked writes the current in-flight remainder, or dequeues the
// next frame (control before data) once nothing is in flight. Must be
// called with c.lock held.
func (c *Client) pumpLocked() {
	if len(c.pending) > 0 {
		n, err := c.conn.Write(c.pending, transport.NoCopyBuffer)
		if err != nil {
			c.teardownLocked()
			return
		}
		c.pending = c.pending[n:]
		if len(c.pending) > 0 {
			return
		}
	}

	job, ok := c.dequeueLocked()
	if !ok {
		if c.closing {
			c.teardownLocked()
		}
		return
	}
	c.pending = job.buf.Bytes()
	n, err := c.conn.Write(c.pending, transport.NoCopyBuffer)
	job.buf.Release()
	if err != nil {
		c.teardownLocked()
		return
	}
	c.pending = c.pending[n:]
}

func (c *Client) dequeueLocked() (frameJob, bool) {
	if c.controlQ.Length() > 0 {
		return c.controlQ.Remove().(frameJob), true
	}
	if c.dataQ.Length() > 0 {
		return c.dataQ.Remove().(frameJob), true
	}
	return frameJob{}, false
}

func (c *Client) handleData(data []byte) {
	frames, err := c.decoder.Feed(data)
	if err != nil {
		c.lockGuard()(c.teardownLocked)
		return
	}
	for _, f := range frames {
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f Frame) {
	switch f.Opcode {
	case OpText, OpBinary:
		if !f.Fin {
			c.fragOpcode = f.Opcode
			c.fragBuf = append(c.fragBuf[:0], f.Payload...)
			return
		}
		if c.OnMessage != nil {
			c.OnMessage(c, f.Opcode, f.Payload)
		}
	case OpContinuation:
		c.fragBuf = append(c.fragBuf, f.Payload...)
		if f.Fin {
			if c.OnMessage != nil {
				c.OnMessage(c, c.fragOpcode, c.fragBuf)
			}
			c.fragBuf = nil
		}
	case OpPing:
		_ = c.enqueueControl(OpPong, EncodeFrame(true, OpPong, f.Payload, false))
	case OpPong:
		// liveness only; nothing to do
	case OpClose:
		wasClosing := c.closing
		c.lockGuard()(func() { c.closing = true })
		if !wasClosing {
			_ = c.enqueueControl(OpClose, EncodeFrame(true, OpClose, f.Payload, false))
		}
	}
}

func (c *Client) handleDisconnect() {
	g := c.lock.LockGuard(c.conn.TaskID())
	c.closed = true
	g.Unlock()
	if c.OnClose != nil {
		c.OnClose(c)
	}
}

// teardownLocked must be called with c.lock held.
func (c *Client) teardownLocked() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
