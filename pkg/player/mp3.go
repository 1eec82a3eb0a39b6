package player

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/chimebox/chimebox/pkg/audio/pcm"
)

// mp3Reader streams 16-bit mono PCM from an MP3 bitstream. The underlying
// decoder always emits interleaved stereo, so the two channels are
// averaged down to the device's mono output.
type mp3Reader struct {
	dec    *mp3.Decoder
	format pcm.Format
	stereo []byte
}

func newMP3Reader(r io.Reader) (*mp3Reader, error) {
	src, err := skipID3v2(r)
	if err != nil {
		return nil, err
	}
	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("player: open mp3: %w", err)
	}
	var format pcm.Format
	switch dec.SampleRate() {
	case 16000:
		format = pcm.L16Mono16K
	case 44100:
		format = pcm.L16Mono44K1
	case 48000:
		format = pcm.L16Mono48K
	default:
		return nil, fmt.Errorf("%w: mp3 sample rate %d", ErrUnsupportedFormat, dec.SampleRate())
	}
	return &mp3Reader{dec: dec, format: format}, nil
}

// Read fills p with mono samples, downmixing the decoder's stereo output.
func (m *mp3Reader) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	need := len(p) / 2 * 4 // stereo bytes for len(p) mono bytes
	if cap(m.stereo) < need {
		m.stereo = make([]byte, need)
	}
	n, err := io.ReadFull(m.dec, m.stereo[:need])
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	n -= n % 4 // whole stereo sample pairs only
	out := 0
	for i := 0; i+3 < n; i += 4 {
		l := int16(binary.LittleEndian.Uint16(m.stereo[i:]))
		r := int16(binary.LittleEndian.Uint16(m.stereo[i+2:]))
		binary.LittleEndian.PutUint16(p[out:], uint16((int32(l)+int32(r))/2))
		out += 2
	}
	if out > 0 && err == io.EOF {
		// Deliver the final samples; EOF surfaces on the next call.
		return out, nil
	}
	return out, err
}
