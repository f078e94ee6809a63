package wsocket

import "sync/atomic"

// MessageBuffer is a reference-counted encoded frame, letting Broadcast
// encode one frame once and hand every client's send queue a reference
// to the same bytes (written via transport.NoCopyBuffer) instead of
// copying the payload once per client. Grounded on the original
// AsyncWebSocketMessageBuffer's manual refcounting, reworked here with
// sync/atomic instead of a hand-rolled counter.
type MessageBuffer struct {
	data refcountedBytes
}

type refcountedBytes struct {
	bytes []byte
	refs  int32
}

// NewMessageBuffer wraps data with an initial reference count of refs
// (one per client it will be queued to).
func NewMessageBuffer(data []byte, refs int32) *MessageBuffer {
	return &MessageBuffer{data: refcountedBytes{bytes: data, refs: refs}}
}

// Bytes returns the encoded frame. Callers must not mutate it.
func (b *MessageBuffer) Bytes() []byte { return b.data.bytes }

// Retain increments the reference count; used when a buffer already
// queued to some clients needs to also be queued to a newly connected
// one before the original broadcast's sends complete.
func (b *MessageBuffer) Retain() {
	atomic.AddInt32(&b.data.refs, 1)
}

// Release decrements the reference count and reports whether this was
// the last reference (in which case the caller may drop it for GC).
func (b *MessageBuffer) Release() bool {
	return atomic.AddInt32(&b.data.refs, -1) == 0
}
