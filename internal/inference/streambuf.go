package inference

import (
	"strings"
	"time"
)

// StreamBuffer batches streamed fragments between flushes. Everything
// appended is returned by exactly one Drain, in order:
// Emitted()+Pending() always equals Received().
type StreamBuffer struct {
	interval time.Duration
	last     time.Time
	pending  strings.Builder
	received int
	emitted  int
}

// NewStreamBuffer returns a buffer whose first flush becomes due interval
// after start.
func NewStreamBuffer(interval time.Duration, start time.Time) *StreamBuffer {
	return &StreamBuffer{interval: interval, last: start}
}

// Append adds a raw fragment.
func (b *StreamBuffer) Append(frag string) {
	b.pending.WriteString(frag)
	b.received += len(frag)
}

// Due reports whether buffered text exists and at least the flush interval
// has elapsed since the previous flush.
func (b *StreamBuffer) Due(now time.Time) bool {
	return b.pending.Len() > 0 && now.Sub(b.last) >= b.interval
}

// Drain returns and clears the buffered text and marks now as the flush time.
func (b *StreamBuffer) Drain(now time.Time) string {
	s := b.pending.String()
	b.pending.Reset()
	b.emitted += len(s)
	b.last = now
	return s
}

// Received is the byte length of everything appended so far.
func (b *StreamBuffer) Received() int { return b.received }

// Emitted is the byte length of everything drained so far.
func (b *StreamBuffer) Emitted() int { return b.emitted }

// Pending is the byte length of buffered, not yet drained text.
func (b *StreamBuffer) Pending() int { return b.pending.Len() }
