// Package streaming implements a byte-level, resumable JSON parse over
// arbitrarily chunked input, matching subtrees against a compiled
// jsonpath.Expression without ever holding the whole document in memory.
package streaming

import (
	"fmt"

	httpstream "github.com/manax-dev/httpstream"
)

// defaultMaxBufferedBytes bounds how much of the stream a buffer will hold
// before AppendChunk refuses more input. A caller must Compact (advance the
// low-water mark) to make room once a boundary has been fully consumed.
const defaultMaxBufferedBytes = 16 * 1024 * 1024

// buffer is a bounded byte arena addressed by absolute stream offsets. Bytes
// already consumed past the low-water mark are discarded on Compact so
// memory use tracks the longest still-open frame, not the whole stream.
type buffer struct {
	data   []byte
	base   int64 // absolute offset of data[0]
	maxLen int64
}

func newBuffer(maxLen int64) *buffer {
	if maxLen <= 0 {
		maxLen = defaultMaxBufferedBytes
	}
	return &buffer{maxLen: maxLen}
}

// Position returns the absolute offset one past the last buffered byte —
// i.e. the offset the next AppendChunk call will start writing at.
func (b *buffer) Position() int64 { return b.base + int64(len(b.data)) }

// Base returns the absolute offset of the first byte still held in memory.
func (b *buffer) Base() int64 { return b.base }

// AppendChunk appends data to the buffer, returning a *httpstream.BufferError
// if doing so would exceed the configured byte budget.
func (b *buffer) AppendChunk(chunk []byte) error {
	if int64(len(b.data))+int64(len(chunk)) > b.maxLen {
		return &httpstream.BufferError{
			Operation: "append",
			Requested: int64(len(chunk)),
			Available: b.maxLen - int64(len(b.data)),
		}
	}
	b.data = append(b.data, chunk...)
	return nil
}

// ByteAt returns the byte at absolute offset off, or ok=false if off has
// already been compacted away or is past what's been appended so far.
func (b *buffer) ByteAt(off int64) (byte, bool) {
	idx := off - b.base
	if idx < 0 || idx >= int64(len(b.data)) {
		return 0, false
	}
	return b.data[idx], true
}

// Slice returns the bytes in [start, end) (absolute offsets). ok is false if
// either bound falls outside what's currently buffered.
func (b *buffer) Slice(start, end int64) ([]byte, bool) {
	lo, hi := start-b.base, end-b.base
	if lo < 0 || hi > int64(len(b.data)) || lo > hi {
		return nil, false
	}
	return b.data[lo:hi], true
}

// Compact discards every byte strictly before lowWaterMark. Callers must
// never later reference an offset below lowWaterMark; ByteAt/Slice will
// report it as unavailable.
func (b *buffer) Compact(lowWaterMark int64) {
	idx := lowWaterMark - b.base
	if idx <= 0 {
		return
	}
	if idx >= int64(len(b.data)) {
		b.base += int64(len(b.data))
		b.data = b.data[:0]
		return
	}
	copy(b.data, b.data[idx:])
	b.data = b.data[:int64(len(b.data))-idx]
	b.base += idx
}

func (b *buffer) String() string {
	return fmt.Sprintf("buffer{base=%d len=%d max=%d}", b.base, len(b.data), b.maxLen)
}
