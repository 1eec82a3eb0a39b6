package opusdec

import (
	"errors"
	"fmt"

	"github.com/hraban/opus"

	"github.com/chimebox/chimebox/pkg/audio/pcm"
)

// ErrInvalidFrame is returned for packets rejected before reaching the
// codec: empty input or a TOC carrying an invalid configuration.
var ErrInvalidFrame = errors.New("opusdec: invalid opus frame")

// maxFrameSamples covers the largest legal Opus frame: 120 ms at 48 kHz.
const maxFrameSamples = 5760

// Decoder decodes one Opus packet at a time into 16-bit little-endian PCM.
// It is stateful (the codec carries inter-frame prediction) and not safe
// for concurrent use.
type Decoder struct {
	dec    *opus.Decoder
	format pcm.Format
	buf    []int16
}

// New creates a decoder producing PCM in the given format.
func New(format pcm.Format) (*Decoder, error) {
	dec, err := opus.NewDecoder(format.SampleRate(), format.Channels())
	if err != nil {
		return nil, fmt.Errorf("opusdec: create decoder: %w", err)
	}
	return &Decoder{
		dec:    dec,
		format: format,
		buf:    make([]int16, maxFrameSamples*format.Channels()),
	}, nil
}

// Format returns the PCM output format.
func (d *Decoder) Format() pcm.Format { return d.format }

// Decode decodes one packet and returns the PCM bytes. The returned slice
// is valid until the next call.
func (d *Decoder) Decode(frame []byte) ([]byte, error) {
	if d.dec == nil {
		return nil, fmt.Errorf("opusdec: decoder is closed")
	}
	if len(frame) == 0 {
		return nil, ErrInvalidFrame
	}
	toc := TOC(frame[0])
	if toc.IsStereo() && d.format.Channels() == 1 {
		return nil, fmt.Errorf("%w: stereo packet on mono stream", ErrInvalidFrame)
	}
	if toc.FrameCode() == 3 && len(frame) < 2 {
		return nil, fmt.Errorf("%w: truncated frame-count header", ErrInvalidFrame)
	}
	n, err := d.dec.Decode(frame, d.buf)
	if err != nil {
		return nil, fmt.Errorf("opusdec: decode: %w", err)
	}
	return pcm.SamplesToBytes(d.buf[:n*d.format.Channels()]), nil
}

// Close releases the decoder. Further Decode calls fail.
func (d *Decoder) Close() error {
	d.dec = nil
	return nil
}
