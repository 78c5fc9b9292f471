// Package rsp implements GDB Remote Serial Protocol framing: packet
// assembly, checksum computation, and the ack/no-ack handshake.
package rsp

const hexDigits = "0123456789abcdef"

// ByteBuffer is a growable, append-only byte sequence used to assemble
// RSP payloads one piece at a time.
type ByteBuffer struct {
	data []byte
}

// NewByteBuffer returns an empty buffer.
func NewByteBuffer() *ByteBuffer {
	return &ByteBuffer{}
}

// Push appends a single byte.
func (b *ByteBuffer) Push(v byte) {
	b.data = append(b.data, v)
}

// PushBytes appends a slice verbatim.
func (b *ByteBuffer) PushBytes(v []byte) {
	b.data = append(b.data, v...)
}

// PushHexU8 appends the two lowercase hex digits of v.
func (b *ByteBuffer) PushHexU8(v uint8) {
	b.data = append(b.data, hexDigits[v>>4], hexDigits[v&0xF])
}

// PushHexU32LE appends the byte-reversed (little-endian), 8-digit
// lowercase hex encoding of v, matching GDB's register wire format.
func (b *ByteBuffer) PushHexU32LE(v uint32) {
	b.PushHexU8(uint8(v))
	b.PushHexU8(uint8(v >> 8))
	b.PushHexU8(uint8(v >> 16))
	b.PushHexU8(uint8(v >> 24))
}

// Bytes returns the accumulated contents. The slice aliases the buffer's
// own storage; a later Clear followed by pushes may overwrite it.
func (b *ByteBuffer) Bytes() []byte {
	return b.data
}

// String renders the accumulated contents as a string.
func (b *ByteBuffer) String() string {
	return string(b.data)
}

// Len reports the number of bytes pushed so far.
func (b *ByteBuffer) Len() int {
	return len(b.data)
}

// Clear empties the buffer without releasing its backing array.
func (b *ByteBuffer) Clear() {
	b.data = b.data[:0]
}
