// File: core/buffer/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package buffer implements the auto-compacting byte buffer used for
// send staging inside the runtime. It favors reuse of one contiguous
// region over allocation: the readable window slides forward on Advance
// and is shifted back to offset zero once it passes half the capacity.
package buffer

// Buffer is a contiguous region with readPos <= writePos <= cap(buf).
// Readable bytes live in buf[readPos:writePos].
//
// Buffer is single-owner: callers provide external synchronisation.
// The runtime serialises the send side with a per-connection mutex.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New returns a Buffer with the given initial capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Write appends all of p, compacting or growing the region as needed.
// It never performs a partial append.
func (b *Buffer) Write(p []byte) {
	n := len(p)
	if n == 0 {
		return
	}
	if cap(b.buf)-b.writePos < n {
		b.makeRoom(n)
	}
	b.buf = b.buf[:b.writePos+n]
	copy(b.buf[b.writePos:], p)
	b.writePos += n
}

// Advance consumes n readable bytes. n must not exceed Len.
// An emptied buffer resets both positions to zero without freeing the
// region; otherwise the window is compacted once readPos passes half
// the capacity.
func (b *Buffer) Advance(n int) {
	if n < 0 || n > b.Len() {
		panic("buffer: advance past readable window")
	}
	b.readPos += n
	if b.readPos == b.writePos {
		b.readPos = 0
		b.writePos = 0
		b.buf = b.buf[:0]
		return
	}
	if b.readPos > cap(b.buf)/2 {
		b.compact()
	}
}

// Bytes returns the readable window. The slice aliases the internal
// region and is invalidated by the next Write or Advance.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.readPos:b.writePos]
}

// Len reports the number of readable bytes.
func (b *Buffer) Len() int {
	return b.writePos - b.readPos
}

// Empty reports whether no readable bytes remain.
func (b *Buffer) Empty() bool {
	return b.readPos == b.writePos
}

// Cap reports the capacity of the underlying region.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// makeRoom ensures at least n writable bytes past writePos.
// Compaction is tried before reallocation.
func (b *Buffer) makeRoom(n int) {
	if b.readPos > 0 {
		b.compact()
		if cap(b.buf)-b.writePos >= n {
			return
		}
	}
	need := b.writePos + n
	newCap := 2 * cap(b.buf)
	if newCap < need {
		newCap = need
	}
	grown := make([]byte, b.writePos, newCap)
	copy(grown, b.buf[:b.writePos])
	b.buf = grown
}

// compact shifts the readable window to offset zero.
func (b *Buffer) compact() {
	length := b.writePos - b.readPos
	copy(b.buf[:length], b.buf[b.readPos:b.writePos])
	b.readPos = 0
	b.writePos = length
	b.buf = b.buf[:length]
}
