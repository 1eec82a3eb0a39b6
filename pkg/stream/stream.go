// Package stream implements the real-time streaming playback pipeline: a
// network-facing producer that frames compressed audio datagrams into the
// shared ring buffer, and a decode-side consumer that drains it one frame
// per tick with pre-roll gating and silence fallback.
//
// Framing is a 2-byte unsigned little-endian length prefix followed by the
// payload. A length of zero or above MaxPacketSize is invalid.
package stream

import "time"

const (
	// MaxPacketSize is the largest legal framed payload.
	MaxPacketSize = 512

	// HeaderSize is the length-prefix size in bytes.
	HeaderSize = 2

	// DefaultBufferSize is the ring buffer capacity shared by producer
	// and consumer.
	DefaultBufferSize = 8192

	// DefaultReadTimeout bounds consumer-side buffer reads so the decode
	// tick always returns to feed the audio sink.
	DefaultReadTimeout = 10 * time.Millisecond

	// FrameDuration is the nominal audio duration of one streamed frame.
	FrameDuration = 20 * time.Millisecond
)

// PreRollThreshold returns the buffered-byte level at which pre-roll
// completes for a ring of the given capacity: half full.
func PreRollThreshold(capacity int) int {
	return capacity / 2
}

// FrameDecoder turns one compressed payload into 16-bit little-endian PCM
// bytes. Implementations are stateful and owned by a single consumer.
type FrameDecoder interface {
	Decode(frame []byte) ([]byte, error)
	Close() error
}
