// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package buffer provides an append-only byte store with a monotonic
// read cursor. It is used to stage raw socket reads and to accumulate
// message body bytes before a consumer pulls them.
package buffer

// Buffer owns a contiguous byte sequence and a read cursor. Bytes before
// the cursor have been consumed and are never re-served unless Rewind is
// called. The zero value is ready to use.
type Buffer struct {
	data []byte
	pos  int
}

// New returns a Buffer pre-sized to hold capacity bytes without growing.
func New(capacity int) *Buffer {
	return &Buffer{
		data: make([]byte, 0, capacity),
	}
}

// Append adds p to the end of the store. The cursor is unaffected.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Fill copies up to len(p) unread bytes into p and advances the cursor.
// It returns the number of bytes copied, which may be less than len(p)
// and is zero when no unread bytes remain. Short fills are not errors;
// callers loop until Len reports zero.
func (b *Buffer) Fill(p []byte) int {
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n
}

// Drain returns all unread bytes and advances the cursor to the end.
// The returned slice aliases the store and is only valid until the
// next Append or Reset.
func (b *Buffer) Drain() []byte {
	p := b.data[b.pos:]
	b.pos = len(b.data)
	return p
}

// Rewind moves the cursor back to the start without discarding data.
func (b *Buffer) Rewind() {
	b.pos = 0
}

// Reset clears the store and the cursor. The underlying capacity is
// retained for reuse across fill/drain cycles of one connection.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
}

// Len reports the number of unread bytes between the cursor and the
// end of the store.
func (b *Buffer) Len() int {
	return len(b.data) - b.pos
}
