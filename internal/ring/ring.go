// Package ring implements the fixed-size, UTF-8-safe byte ring buffer used
// by the subordinate PTY daemon (spec.md §4.7, §8). Grounded directly on
// the SessionManager's ring usage and its incompleteUTF8Tail helper in the
// original spaceterm pty-daemon (other_examples/chriswa-spaceterm).
package ring

// DefaultSize is the subordinate daemon's default ring capacity.
const DefaultSize = 1024 * 1024

// Buffer is a fixed-capacity byte ring. Writes past capacity silently
// overwrite the oldest bytes. It is not safe for concurrent use; callers
// serialize access themselves (the subordinate daemon owns one per
// session, written only from its PTY reader goroutine).
type Buffer struct {
	data     []byte
	writePos int
	filled   int // bytes written so far, capped at len(data) once wrapped
}

// New returns a Buffer with the given capacity.
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{data: make([]byte, size)}
}

// Write copies p into the ring, wrapping and overwriting the oldest bytes
// as needed. A p longer than the capacity retains only its final
// capacity-sized tail.
func (b *Buffer) Write(p []byte) {
	n := len(b.data)
	if n == 0 {
		return
	}
	if len(p) >= n {
		copy(b.data, p[len(p)-n:])
		b.writePos = 0
		b.filled = n
		return
	}
	end := b.writePos + len(p)
	if end <= n {
		copy(b.data[b.writePos:end], p)
	} else {
		first := n - b.writePos
		copy(b.data[b.writePos:], p[:first])
		copy(b.data[:end-n], p[first:])
	}
	b.writePos = end % n
	if b.filled < n {
		b.filled += len(p)
		if b.filled > n {
			b.filled = n
		}
	}
}

// Contents returns the linearized buffer contents, oldest byte first. If
// the buffer has wrapped, up to four leading UTF-8 continuation bytes
// (10xxxxxx) are skipped so the result begins on a character boundary,
// per spec.md §4.7/§8.
func (b *Buffer) Contents() []byte {
	n := len(b.data)
	if n == 0 || b.filled == 0 {
		return nil
	}
	var out []byte
	if b.filled < n {
		out = append(out, b.data[:b.filled]...)
	} else {
		out = make([]byte, 0, n)
		out = append(out, b.data[b.writePos:]...)
		out = append(out, b.data[:b.writePos]...)
		out = skipLeadingContinuation(out)
	}
	return out
}

// skipLeadingContinuation drops up to 4 leading UTF-8 continuation bytes
// (10xxxxxx) so the result starts on a character boundary.
func skipLeadingContinuation(b []byte) []byte {
	max := 4
	if max > len(b) {
		max = len(b)
	}
	i := 0
	for i < max && b[i]&0xC0 == 0x80 {
		i++
	}
	return b[i:]
}

// IncompleteUTF8Tail inspects up to the last 4 bytes of p for a UTF-8
// start byte (11xxxxxx) whose declared sequence length runs past the end
// of p, and returns the length of that dangling tail (0 if p ends on a
// complete codepoint or contains no multi-byte start byte in range).
// Grounded on the original pty-daemon's incompleteUTF8Tail.
func IncompleteUTF8Tail(p []byte) int {
	max := 4
	if max > len(p) {
		max = len(p)
	}
	for i := 1; i <= max; i++ {
		b := p[len(p)-i]
		if b&0xC0 == 0x80 { // continuation byte, keep looking further back
			continue
		}
		seqLen := utf8SeqLen(b)
		if seqLen == 0 {
			// Not a valid start byte at all; nothing to hold back.
			return 0
		}
		if seqLen > i {
			return i
		}
		return 0
	}
	return 0
}

// utf8SeqLen returns the total byte length of a UTF-8 sequence starting
// with b, or 0 if b is not a valid single-byte or multi-byte start byte.
func utf8SeqLen(b byte) int {
	switch {
	case b&0x80 == 0x00:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}
