// Package scrollback implements the per-session trimmed scrollback buffer
// (spec.md §4.7, §8). Grounded on the teacher's append-and-trim replay
// buffer (internal/egg/server.go's replayBuffer and findSafeCut), but
// simplified to the exact rule spec.md states: evict down to a target size
// at a cut point chosen by scanning forward for the next newline, rather
// than the teacher's ANSI-mode-preamble-aware trim.
package scrollback

import "bytes"

// DefaultCap is the scrollback size at which eviction begins.
const DefaultCap = 1024 * 1024

// DefaultTrimTo is the target size chosen after eviction: the cut point
// starts at total-trimTo bytes from the end.
const DefaultTrimTo = 512 * 1024

// NewlineScanWindow bounds how far past the chosen cut point the trimmer
// scans for a newline before giving up and cutting exactly there.
const NewlineScanWindow = 10000

// Buffer is an append-only scrollback: chunks are appended in order and,
// once the total exceeds Cap, trimmed down toward TrimTo at a
// newline-aligned cut point. Not safe for concurrent use; the owning
// session serializes access.
type Buffer struct {
	Cap    int
	TrimTo int

	chunks []string
	total  int
}

// New returns a Buffer using the default cap/trim-to sizes.
func New() *Buffer {
	return &Buffer{Cap: DefaultCap, TrimTo: DefaultTrimTo}
}

// Write appends data to the buffer, trimming if the new total exceeds Cap.
func (b *Buffer) Write(data string) {
	if data == "" {
		return
	}
	b.chunks = append(b.chunks, data)
	b.total += len(data)
	if b.total <= b.Cap {
		return
	}
	b.trim()
}

// trim concatenates all chunks, picks a cut point at total-TrimTo, scans
// forward up to NewlineScanWindow bytes for the next '\n' and cuts there
// if found, otherwise cuts at the chosen point exactly.
func (b *Buffer) trim() {
	all := []byte(b.join())
	cut := len(all) - b.TrimTo
	if cut < 0 {
		cut = 0
	}
	limit := cut + NewlineScanWindow
	if limit > len(all) {
		limit = len(all)
	}
	if idx := bytes.IndexByte(all[cut:limit], '\n'); idx >= 0 {
		cut += idx + 1
	}
	remaining := all[cut:]
	b.chunks = nil
	if len(remaining) > 0 {
		b.chunks = []string{string(remaining)}
	}
	b.total = len(remaining)
}

func (b *Buffer) join() string {
	if len(b.chunks) == 1 {
		return b.chunks[0]
	}
	var buf bytes.Buffer
	buf.Grow(b.total)
	for _, c := range b.chunks {
		buf.WriteString(c)
	}
	return buf.String()
}

// Contents returns the current scrollback as a single string.
func (b *Buffer) Contents() string {
	return b.join()
}

// Len returns the current total byte length.
func (b *Buffer) Len() int {
	return b.total
}
