// Package response implements the fixed-capacity text buffer that holds a
// single client response.
//
// The buffer mirrors the classic bounded snprintf idiom: an append that does
// not fit copies what it can, pins the cursor one byte short of the capacity
// and marks the response as truncated. Once truncated, every further append is
// a no-op until the buffer is reset for the next connection.
package response

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// DefaultCapacity is the response size cap used by the daemon.
const DefaultCapacity = 1000

var (
	// ErrTruncated reports that an append did not fit. It is never fatal.
	ErrTruncated = errors.New("output truncated")

	// ErrIncompleteLine reports an attempt to append text that does not end
	// with a newline.
	ErrIncompleteLine = errors.New("response line is not newline terminated")
)

// Buffer accumulates newline-terminated response lines up to a fixed capacity.
// It is not safe for concurrent use.
type Buffer struct {
	data      []byte
	cursor    int
	truncated bool
}

// New returns an empty buffer holding at most capacity-1 bytes of text.
// Capacities below 2 are raised to 2.
func New(capacity int) *Buffer {
	if capacity < 2 {
		capacity = 2
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Appendf formats a single line into the buffer. The formatted text must end
// with a newline.
//
// When the line does not fit, as much as fits is copied, the cursor is pinned
// at Cap()-1 and ErrTruncated is returned. Callers should log the truncation
// and carry on.
func (b *Buffer) Appendf(format string, args ...any) error {
	if b.truncated {
		return ErrTruncated
	}

	line := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		return fmt.Errorf("%w: %q", ErrIncompleteLine, line)
	}

	// One byte is always held back, as a C string terminator would be.
	limit := len(b.data) - 1
	if len(line) >= limit-b.cursor {
		copy(b.data[b.cursor:limit], line)
		b.cursor = limit
		b.truncated = true
		return ErrTruncated
	}

	b.cursor += copy(b.data[b.cursor:], line)
	return nil
}

// Reset empties the buffer and clears the truncated flag.
func (b *Buffer) Reset() {
	b.cursor = 0
	b.truncated = false
}

// Bytes returns the raw buffer contents up to the cursor. After truncation the
// tail may be a partial line.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.cursor]
}

// Response returns the text to send to a client: every complete line written
// before the pin point. It never ends with a partial line.
func (b *Buffer) Response() []byte {
	if !b.truncated {
		return b.data[:b.cursor]
	}
	end := bytes.LastIndexByte(b.data[:b.cursor], '\n')
	return b.data[:end+1]
}

// Len returns the cursor position.
func (b *Buffer) Len() int { return b.cursor }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Truncated reports whether an append has overflowed since the last Reset.
func (b *Buffer) Truncated() bool { return b.truncated }
