// Package transport defines the non-blocking byte-stream abstraction the
// asyncweb core is built against (spec.md §6). The core never touches a
// socket directly: it is handed a Conn and driven entirely by the
// callbacks Conn invokes. transport/tcp provides a concrete, runnable
// implementation; server.Server accepts any Conn, including test doubles.
package transport

// AddFlag controls whether Add should copy the supplied buffer or may
// keep a reference to it (no-copy hint), mirroring spec.md §6's
// `add(buffer, len[, flags])`.
type AddFlag int

const (
	// CopyBuffer requests the transport copy the bytes before returning.
	CopyBuffer AddFlag = iota
	// NoCopyBuffer hints the transport may retain a reference to buffer
	// without copying; the caller must not mutate buffer afterwards.
	NoCopyBuffer
)

// Conn is the per-connection, non-blocking transport abstraction spec.md
// §6 specifies as an external collaborator. All methods are expected to
// be invoked from the single cooperative callback stream for this
// connection; Conn implementations are not required to be safe for
// concurrent use from multiple goroutines beyond that.
type Conn interface {
	// Close closes the connection from the server side.
	Close() error

	// Send flushes any buffer queued via Add/Write to the wire.
	Send() error

	// Add queues buf for transmission, returning an error if the
	// transport's outgoing buffer is exhausted. flags controls whether
	// buf is copied or referenced (NoCopyBuffer).
	Add(buf []byte, flags AddFlag) error

	// Write queues buf and immediately flushes, returning the number of
	// bytes actually accepted by the transport and any error.
	Write(buf []byte, flags AddFlag) (int, error)

	// SendBufferFree reports the transmit window: bytes the transport
	// currently reports it can accept without blocking.
	SendBufferFree() int

	// TaskID returns a stable, non-zero identifier for this connection's
	// cooperative task, used as the owner token for wsutil.ReentrantLock.
	TaskID() uint64

	// RemoteIP and RemotePort report the peer address.
	RemoteIP() string
	RemotePort() int

	// SetRxTimeoutSeconds arms (or, with 0, disables) the receive
	// timeout; spec.md §5 uses 3s for HTTP requests and disables it for
	// WebSocket clients.
	SetRxTimeoutSeconds(seconds int)

	// SetDeferAck hints that ACK callbacks may be coalesced.
	SetDeferAck(defer_ bool)

	// OnDataReceived registers the callback invoked with each inbound
	// chunk, in wire order, for this connection's lifetime.
	OnDataReceived(fn func(data []byte))

	// OnAck registers the callback invoked when len previously queued
	// bytes have been acknowledged, timeMs after Send.
	OnAck(fn func(len int, timeMs int64))

	// OnError registers the callback invoked on a transport-level error.
	OnError(fn func(errno int))

	// OnPoll registers a periodic callback used for idle-timer work
	// (e.g. WebSocket keepalive pings).
	OnPoll(fn func())

	// OnTimeout registers the callback invoked when the armed receive
	// timeout elapses without data.
	OnTimeout(fn func(timeMs int64))

	// OnDisconnected registers the callback invoked once the connection
	// has been torn down, for either peer- or server-initiated closure.
	OnDisconnected(fn func())
}

// Listener accepts new Conn values, one per inbound TCP connection.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() string
}
