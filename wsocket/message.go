package wsocket

// frameJob is one queued outbound frame. Control frames (ping/pong/
// close) are always drained ahead of data frames (text/binary), per
// spec.md §4.7's priority queue requirement. buf is already the fully
// encoded wire frame (see MessageBuffer) so the send pump never
// re-encodes or copies it beyond what transport.NoCopyBuffer allows.
type frameJob struct {
	opcode Opcode
	buf    *MessageBuffer
}
