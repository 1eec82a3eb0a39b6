// Package buffer provides the fixed-capacity byte buffer that decouples
// network ingress from the hardware-paced playback loop.
//
// StreamBuffer is restricted to exactly one producer and one consumer
// goroutine. The producer uses TryWrite, which either accepts a whole
// logical unit or rejects it outright; the consumer uses bounded-wait
// reads so it always returns in time to feed the audio output.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	// ErrNoSpace is returned by TryWrite when the buffer cannot accept
	// the whole write. Nothing is written in that case.
	ErrNoSpace = errors.New("buffer: insufficient space")

	// ErrTimeout is returned by bounded reads when the deadline expires
	// before the requested data arrived.
	ErrTimeout = errors.New("buffer: read timeout")
)

// StreamBuffer is a fixed-capacity circular byte buffer for a single
// producer and a single consumer. Capacity is fixed at creation.
type StreamBuffer struct {
	writeNotify chan struct{}

	mu       sync.Mutex
	buf      []byte
	head     int64
	tail     int64
	closeErr error
}

// NewStream creates a StreamBuffer with the given capacity in bytes.
func NewStream(size int) *StreamBuffer {
	return &StreamBuffer{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]byte, size),
	}
}

// Cap returns the fixed capacity of the buffer.
func (sb *StreamBuffer) Cap() int {
	return len(sb.buf)
}

// Len returns the number of bytes currently buffered.
func (sb *StreamBuffer) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return int(sb.tail - sb.head)
}

// Free returns the number of bytes that can be written without rejection.
func (sb *StreamBuffer) Free() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.buf) - int(sb.tail-sb.head)
}

// TryWrite writes all given chunks as one logical unit, or nothing at
// all. If the combined length exceeds the free space, ErrNoSpace is
// returned and the buffer content is unchanged.
func (sb *StreamBuffer) TryWrite(chunks ...[]byte) error {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", sb.closeErr)
	}
	if total > len(sb.buf)-int(sb.tail-sb.head) {
		return ErrNoSpace
	}

	for _, c := range chunks {
		t := int(sb.tail % int64(len(sb.buf)))
		n := copy(sb.buf[t:], c)
		if n < len(c) {
			copy(sb.buf, c[n:])
		}
		sb.tail += int64(len(c))
	}

	select {
	case sb.writeNotify <- struct{}{}:
	default:
	}
	return nil
}

// ReadFull reads exactly len(p) bytes, waiting up to timeout for data to
// arrive. It returns the number of bytes actually read; on deadline
// expiry the error is ErrTimeout and any bytes already copied out are
// consumed (the caller decides how to treat the partial read).
func (sb *StreamBuffer) ReadFull(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	n := 0

	sb.mu.Lock()
	defer sb.mu.Unlock()
	for {
		if sb.closeErr != nil {
			return n, fmt.Errorf("buffer: read from closed buffer: %w", sb.closeErr)
		}

		if avail := int(sb.tail - sb.head); avail > 0 && n < len(p) {
			want := len(p) - n
			if want > avail {
				want = avail
			}
			h := int(sb.head % int64(len(sb.buf)))
			c := copy(p[n:n+want], sb.buf[h:min(h+want, len(sb.buf))])
			if c < want {
				c += copy(p[n+c:n+want], sb.buf[:want-c])
			}
			sb.head += int64(want)
			n += want
		}
		if n == len(p) {
			return n, nil
		}

		remain := time.Until(deadline)
		if remain <= 0 {
			return n, ErrTimeout
		}
		sb.mu.Unlock()
		select {
		case <-sb.writeNotify:
		case <-time.After(remain):
		}
		sb.mu.Lock()
	}
}

// Reset discards all buffered content and zeroes the cursors. It is
// called when a new streaming session begins.
func (sb *StreamBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.head = 0
	sb.tail = 0
}

// CloseWithError closes the buffer; pending and future operations fail
// with the given error.
func (sb *StreamBuffer) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.closeErr != nil {
		return nil
	}
	sb.closeErr = err
	close(sb.writeNotify)
	return nil
}

// Close closes the buffer. Equivalent to CloseWithError(io.ErrClosedPipe).
func (sb *StreamBuffer) Close() error {
	return sb.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (sb *StreamBuffer) Error() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.closeErr
}
