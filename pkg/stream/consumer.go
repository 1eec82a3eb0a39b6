package stream

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/chimebox/chimebox/pkg/buffer"
)

// Consumer drains the ring buffer one frame per tick. Every recoverable
// failure — pre-roll still filling, read timeout, invalid length, short
// payload, decode error — substitutes one frame of silence so the audio
// sink is always fed.
type Consumer struct {
	buf     *buffer.StreamBuffer
	dec     FrameDecoder
	silence []byte

	preRollBytes int
	preRollDone  bool
	readTimeout  time.Duration
	log          *slog.Logger

	header [HeaderSize]byte
	packet [MaxPacketSize]byte
}

// NewConsumer creates a consumer reading framed packets from buf and
// decoding them with dec. silence is the frame emitted on every fallback
// path; its length defines the sink's per-tick granularity.
func NewConsumer(buf *buffer.StreamBuffer, dec FrameDecoder, silence []byte) *Consumer {
	return &Consumer{
		buf:          buf,
		dec:          dec,
		silence:      silence,
		preRollBytes: PreRollThreshold(buf.Cap()),
		readTimeout:  DefaultReadTimeout,
		log:          slog.Default(),
	}
}

// SetLogger replaces the consumer logger.
func (c *Consumer) SetLogger(log *slog.Logger) { c.log = log }

// SetReadTimeout overrides the bounded wait on buffer reads.
func (c *Consumer) SetReadTimeout(d time.Duration) { c.readTimeout = d }

// PreRollComplete reports whether the initial buffering phase finished.
// It latches true for the rest of the stream session even if the buffer
// later drains below the threshold.
func (c *Consumer) PreRollComplete() bool { return c.preRollDone }

// Reset discards buffered data and re-enters the pre-roll phase. Called
// when a new stream session begins.
func (c *Consumer) Reset() {
	c.buf.Reset()
	c.preRollDone = false
}

// Next produces the PCM for one decode tick: a decoded frame, or silence
// on any fallback path. The returned slice must be consumed before the
// next call.
func (c *Consumer) Next() []byte {
	if !c.preRollDone {
		if c.buf.Len() < c.preRollBytes {
			return c.silence
		}
		c.preRollDone = true
		c.log.Debug("stream: pre-roll complete", "buffered", c.buf.Len())
	}

	n, err := c.buf.ReadFull(c.header[:], c.readTimeout)
	if n < HeaderSize {
		// Underrun is expected under jitter; not an error.
		return c.silence
	}
	length := int(binary.LittleEndian.Uint16(c.header[:]))
	if length == 0 || length > MaxPacketSize {
		c.log.Error("stream: invalid frame length", "length", length)
		return c.silence
	}

	n, err = c.buf.ReadFull(c.packet[:length], c.readTimeout)
	if n < length {
		c.log.Warn("stream: short payload read", "got", n, "want", length, "err", err)
		return c.silence
	}

	pcmBytes, err := c.dec.Decode(c.packet[:length])
	if err != nil {
		c.log.Warn("stream: frame decode failed", "err", err)
		return c.silence
	}
	return pcmBytes
}
