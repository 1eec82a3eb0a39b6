package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chimebox/chimebox/pkg/buffer"
)

// ErrPacketTooLarge is returned for datagrams above MaxPacketSize.
var ErrPacketTooLarge = errors.New("stream: packet exceeds maximum size")

// Producer frames compressed audio datagrams into the ring buffer. It runs
// in the network task and never blocks: when the buffer lacks space for
// header plus payload, the whole datagram is dropped.
type Producer struct {
	buf     *buffer.StreamBuffer
	log     *slog.Logger
	dropped uint64
}

// NewProducer creates a producer over the shared ring buffer.
func NewProducer(buf *buffer.StreamBuffer) *Producer {
	return &Producer{buf: buf, log: slog.Default()}
}

// SetLogger replaces the producer logger.
func (p *Producer) SetLogger(log *slog.Logger) { p.log = log }

// Dropped returns the number of datagrams dropped for lack of space.
func (p *Producer) Dropped() uint64 { return p.dropped }

// Ingest frames one datagram into the buffer. The length prefix and
// payload are written as a single atomic unit, so the consumer can never
// observe a header without its payload. A full buffer drops the datagram
// and returns buffer.ErrNoSpace; an oversized or empty one returns
// ErrPacketTooLarge.
func (p *Producer) Ingest(datagram []byte) error {
	if len(datagram) == 0 || len(datagram) > MaxPacketSize {
		p.log.Warn("stream: invalid datagram size", "size", len(datagram))
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(datagram))
	}
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[:], uint16(len(datagram)))
	if err := p.buf.TryWrite(header[:], datagram); err != nil {
		p.dropped++
		p.log.Debug("stream: buffer full, datagram dropped",
			"size", len(datagram), "dropped", p.dropped)
		return err
	}
	return nil
}
