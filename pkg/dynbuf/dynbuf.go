// Package dynbuf implements the dynamic buffer: an append-only,
// front-consumable sequence of fixed-size byte chunks. Unlike a growable
// contiguous buffer, appending never moves the bytes already present, so
// consumers may hold slices into previously-appended data across an I/O
// suspension point. It doubles as a scatter-gather read target and as the
// accumulator for HTTP response bodies.
package dynbuf

import (
	"encoding/binary"
	"sync"
)

// ChunkSize is the fixed size of each internal chunk.
const ChunkSize = 64 * 1024

// Buffer is a mutex-guarded sequence of boxed chunks. The zero value is an
// empty, ready-to-use buffer.
type Buffer struct {
	mu      sync.Mutex
	chunks  []*[]byte // each points to a fixed ChunkSize-capacity slice
	head    int       // consumed offset within chunks[0]
	tail    int       // write offset within the last chunk
	length  int       // total unconsumed bytes
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Len returns the number of unconsumed bytes currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Append copies p into the buffer, allocating new chunks as needed. The
// address of bytes already appended is never invalidated.
func (b *Buffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(p) > 0 {
		if len(b.chunks) == 0 || b.tail == ChunkSize {
			chunk := make([]byte, ChunkSize)
			b.chunks = append(b.chunks, &chunk)
			b.tail = 0
		}
		last := *b.chunks[len(b.chunks)-1]
		n := copy(last[b.tail:ChunkSize], p)
		b.tail += n
		p = p[n:]
		b.length += n
	}
}

// Consume drops the first n bytes (n must be <= Len()).
func (b *Buffer) Consume(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumeLocked(n)
}

func (b *Buffer) consumeLocked(n int) {
	if n > b.length {
		n = b.length
	}
	b.length -= n
	for n > 0 && len(b.chunks) > 0 {
		chunkLen := ChunkSize
		if len(b.chunks) == 1 {
			chunkLen = b.tail
		}
		avail := chunkLen - b.head
		if n < avail {
			b.head += n
			return
		}
		n -= avail
		b.chunks = b.chunks[1:]
		b.head = 0
	}
}

// Clear drops every chunk, resetting the buffer to empty.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.head, b.tail, b.length = 0, 0, 0
}

// Data returns a gather-write view ([][]byte) over the unconsumed bytes.
// The returned slices alias the buffer's internal storage and must not be
// retained past the next mutating call.
func (b *Buffer) Data() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataRangeLocked(0, b.length)
}

// DataRange returns a gather view over [offset, offset+n) of the
// unconsumed bytes.
func (b *Buffer) DataRange(offset, n int) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataRangeLocked(offset, n)
}

func (b *Buffer) dataRangeLocked(offset, n int) [][]byte {
	if offset < 0 {
		offset = 0
	}
	if offset+n > b.length {
		n = b.length - offset
	}
	if n <= 0 {
		return nil
	}
	var out [][]byte
	pos := 0
	remaining := n
	skip := offset
	for i, cp := range b.chunks {
		chunk := *cp
		start := 0
		if i == 0 {
			start = b.head
		}
		end := ChunkSize
		if i == len(b.chunks)-1 {
			end = b.tail
		}
		segLen := end - start
		if skip >= segLen {
			skip -= segLen
			continue
		}
		start += skip
		skip = 0
		segLen = end - start
		if segLen > remaining {
			segLen = remaining
		}
		out = append(out, chunk[start:start+segLen])
		remaining -= segLen
		pos += segLen
		if remaining <= 0 {
			break
		}
	}
	return out
}

// TakeFront removes and returns the first internal chunk (trimmed to its
// valid range), transferring ownership to the caller for zero-copy
// handoff. Returns false if the buffer is empty.
func (b *Buffer) TakeFront() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chunks) == 0 || b.length == 0 {
		return nil, false
	}
	chunk := *b.chunks[0]
	end := ChunkSize
	if len(b.chunks) == 1 {
		end = b.tail
	}
	front := chunk[b.head:end]
	b.length -= len(front)
	b.chunks = b.chunks[1:]
	b.head = 0
	return front, true
}

// Clone returns an independent copy of this buffer: every chunk's bytes
// are copied into a new chunk, so the clone shares no storage with the
// original and its cost grows with the number of chunks held. It is not a
// handle-copy.
func (b *Buffer) Clone() *Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	clone := &Buffer{
		chunks: make([]*[]byte, len(b.chunks)),
		head:   b.head,
		tail:   b.tail,
		length: b.length,
	}
	for i, cp := range b.chunks {
		c := make([]byte, len(*cp))
		copy(c, *cp)
		clone.chunks[i] = &c
	}
	return clone
}

// Bytes materializes the unconsumed contents into one contiguous slice.
// Convenience for callers that don't need the scatter-gather view.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, 0, b.length)
	for _, seg := range b.dataRangeLocked(0, b.length) {
		out = append(out, seg...)
	}
	return out
}

// ReadUint16LE reads a little-endian uint16 at the given offset within the
// unconsumed region.
func (b *Buffer) ReadUint16LE(offset int) (uint16, bool) {
	buf := make([]byte, 2)
	if !b.readAt(offset, buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(buf), true
}

// ReadUint32LE reads a little-endian uint32 at the given offset within the
// unconsumed region.
func (b *Buffer) ReadUint32LE(offset int) (uint32, bool) {
	buf := make([]byte, 4)
	if !b.readAt(offset, buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf), true
}

// ReadUint64LE reads a little-endian uint64 at the given offset within the
// unconsumed region.
func (b *Buffer) ReadUint64LE(offset int) (uint64, bool) {
	buf := make([]byte, 8)
	if !b.readAt(offset, buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf), true
}

func (b *Buffer) readAt(offset int, dst []byte) bool {
	segs := b.DataRange(offset, len(dst))
	pos := 0
	for _, seg := range segs {
		pos += copy(dst[pos:], seg)
	}
	return pos == len(dst)
}
