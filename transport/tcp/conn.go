// Package tcp provides a concrete, runnable transport.Conn over real TCP
// sockets. It gives the "external collaborator" transport spec.md §6
// describes a working body: a default goroutine-driven implementation
// that runs on every platform, and (build tag linux) an epoll-backed
// Listener that multiplexes reads across many connections on a single
// poller goroutine, grounded on the teacher's reactor/epoll_reactor.go
// and reactor/reactor_linux.go.
//
// Regardless of which Listener produced it, every Conn serializes its
// own callback invocations onto one dispatcher goroutine (via the
// internal events channel), which is what gives asyncweb's core state
// machines spec.md §5's "callbacks strictly serialised" guarantee.
package tcp

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nullstream/asyncweb/transport"
)

// defaultSendWindow approximates the transmit window a real non-blocking
// socket would report via its kernel send buffer size.
const defaultSendWindow = 64 * 1024

var nextTaskID uint64

type conn struct {
	nc net.Conn

	mu          sync.Mutex
	pending     []byte
	outstanding int
	window      int

	events chan func()
	once   sync.Once
	closed atomic.Bool

	taskID uint64

	dataCb         func([]byte)
	ackCb          func(int, int64)
	errCb          func(int)
	pollCb         func()
	timeoutCb      func(int64)
	disconnectedCb func()

	// internalDisconnectHooks run before disconnectedCb on teardown. Used
	// by a Listener (e.g. EpollListener) to clean up its own bookkeeping
	// for this fd without fighting the single public OnDisconnected slot.
	internalDisconnectHooks []func()

	rxTimeoutMu      sync.Mutex
	rxTimer          *time.Timer
	rxTimeoutSeconds int

	pollTicker *time.Ticker
	pollStop   chan struct{}

	externallyDriven bool // true when an epoll Listener feeds reads directly
}

// newConn wraps nc in a transport.Conn. When externallyDriven is true the
// caller (an epoll-backed Listener) is responsible for calling deliver()
// as bytes arrive; otherwise conn starts its own read loop goroutine.
func newConn(nc net.Conn, externallyDriven bool) *conn {
	c := &conn{
		nc:               nc,
		window:           defaultSendWindow,
		events:           make(chan func(), 256),
		taskID:           atomic.AddUint64(&nextTaskID, 1),
		externallyDriven: externallyDriven,
	}
	go c.dispatchLoop()
	if !externallyDriven {
		go c.readLoop()
	}
	return c
}

// NewConn adapts an arbitrary net.Conn (e.g. from net.Dial, or a test
// pipe) into a transport.Conn using the goroutine-driven read loop.
func NewConn(nc net.Conn) transport.Conn {
	return newConn(nc, false)
}

func (c *conn) dispatchLoop() {
	for fn := range c.events {
		fn()
	}
}

func (c *conn) postEvent(fn func()) {
	if c.closed.Load() {
		return
	}
	defer func() { _ = recover() }() // events may be closed concurrently with teardown
	c.events <- fn
}

func (c *conn) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			c.deliver(data)
		}
		if err != nil {
			c.postEvent(c.teardown)
			return
		}
	}
}

// deliver is called with a freshly read chunk, either by readLoop or by
// an epoll-backed Listener's poller goroutine.
func (c *conn) deliver(data []byte) {
	c.postEvent(func() {
		c.rearmRxTimer()
		if c.dataCb != nil {
			c.dataCb(data)
		}
	})
}

func (c *conn) Close() error {
	c.postEvent(c.teardown)
	return nil
}

func (c *conn) teardown() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.nc.Close()
	c.rxTimeoutMu.Lock()
	if c.rxTimer != nil {
		c.rxTimer.Stop()
	}
	c.rxTimeoutMu.Unlock()
	if c.pollStop != nil {
		close(c.pollStop)
	}
	for _, hook := range c.internalDisconnectHooks {
		hook()
	}
	if c.disconnectedCb != nil {
		c.disconnectedCb()
	}
	close(c.events)
}

// addInternalDisconnectHook registers fn to run on teardown, before the
// public disconnectedCb. Unexported: only a Listener in this package may
// call it, so it never competes with the user-facing OnDisconnected slot.
func (c *conn) addInternalDisconnectHook(fn func()) {
	c.internalDisconnectHooks = append(c.internalDisconnectHooks, fn)
}

func prepareBuf(buf []byte, flags transport.AddFlag) []byte {
	if flags == transport.CopyBuffer {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		return cp
	}
	return buf
}

func (c *conn) Add(buf []byte, flags transport.AddFlag) error {
	b := prepareBuf(buf, flags)
	c.mu.Lock()
	c.pending = append(c.pending, b...)
	c.outstanding += len(b)
	c.mu.Unlock()
	return nil
}

func (c *conn) Send() error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	data := c.pending
	c.pending = nil
	c.mu.Unlock()
	go c.flush(data)
	return nil
}

func (c *conn) flush(data []byte) {
	start := time.Now()
	n, err := c.nc.Write(data)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		c.postEvent(func() {
			c.mu.Lock()
			c.outstanding -= n
			c.mu.Unlock()
			if c.errCb != nil {
				c.errCb(1)
			}
			c.teardown()
		})
		return
	}
	c.postEvent(func() {
		c.mu.Lock()
		c.outstanding -= n
		c.mu.Unlock()
		if c.ackCb != nil {
			c.ackCb(n, elapsed)
		}
	})
}

func (c *conn) Write(buf []byte, flags transport.AddFlag) (int, error) {
	free := c.SendBufferFree()
	n := len(buf)
	if n > free {
		n = free
	}
	if n <= 0 {
		return 0, nil
	}
	if err := c.Add(buf[:n], flags); err != nil {
		return 0, err
	}
	if err := c.Send(); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *conn) SendBufferFree() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	free := c.window - c.outstanding
	if free < 0 {
		return 0
	}
	return free
}

func (c *conn) TaskID() uint64 { return c.taskID }

func (c *conn) RemoteIP() string {
	host, _, err := net.SplitHostPort(c.nc.RemoteAddr().String())
	if err != nil {
		return c.nc.RemoteAddr().String()
	}
	return host
}

func (c *conn) RemotePort() int {
	_, port, err := net.SplitHostPort(c.nc.RemoteAddr().String())
	if err != nil {
		return 0
	}
	p, _ := strconv.Atoi(port)
	return p
}

func (c *conn) SetRxTimeoutSeconds(seconds int) {
	c.rxTimeoutMu.Lock()
	defer c.rxTimeoutMu.Unlock()
	if c.rxTimer != nil {
		c.rxTimer.Stop()
		c.rxTimer = nil
	}
	c.rxTimeoutSeconds = seconds
	if seconds <= 0 {
		return
	}
	c.rxTimer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		now := time.Now().UnixMilli()
		c.postEvent(func() {
			if c.timeoutCb != nil {
				c.timeoutCb(now)
			}
		})
	})
}

func (c *conn) rearmRxTimer() {
	c.rxTimeoutMu.Lock()
	defer c.rxTimeoutMu.Unlock()
	if c.rxTimer != nil && c.rxTimeoutSeconds > 0 {
		c.rxTimer.Reset(time.Duration(c.rxTimeoutSeconds) * time.Second)
	}
}

func (c *conn) SetDeferAck(bool) {}

func (c *conn) OnDataReceived(fn func([]byte))  { c.dataCb = fn }
func (c *conn) OnAck(fn func(int, int64))       { c.ackCb = fn }
func (c *conn) OnError(fn func(int))            { c.errCb = fn }
func (c *conn) OnTimeout(fn func(int64))        { c.timeoutCb = fn }
func (c *conn) OnDisconnected(fn func())        { c.disconnectedCb = fn }

func (c *conn) OnPoll(fn func()) {
	c.pollCb = fn
	if c.pollTicker != nil {
		return
	}
	c.pollTicker = time.NewTicker(time.Second)
	c.pollStop = make(chan struct{})
	go func() {
		for {
			select {
			case <-c.pollTicker.C:
				c.postEvent(func() {
					if c.pollCb != nil {
						c.pollCb()
					}
				})
			case <-c.pollStop:
				c.pollTicker.Stop()
				return
			}
		}
	}()
}

var _ transport.Conn = (*conn)(nil)
