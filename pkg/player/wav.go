package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chimebox/chimebox/pkg/audio/pcm"
)

// ErrUnsupportedFormat is returned for files the decode chain cannot play.
var ErrUnsupportedFormat = errors.New("player: unsupported audio format")

// wavReader streams 16-bit mono PCM out of a RIFF/WAVE container. It
// parses the header sequentially, so it works over any io.Reader.
type wavReader struct {
	r         io.Reader
	format    pcm.Format
	remaining int64 // bytes left in the data chunk
}

func newWAVReader(r io.Reader) (*wavReader, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("player: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var (
		format    pcm.Format
		haveFmt   bool
		chunkHead [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunkHead[:]); err != nil {
			return nil, fmt.Errorf("player: read chunk header: %w", err)
		}
		id := string(chunkHead[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHead[4:8]))

		switch id {
		case "fmt ":
			var fmtChunk [16]byte
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small", ErrUnsupportedFormat)
			}
			if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
				return nil, fmt.Errorf("player: read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtChunk[0:2])
			channels := binary.LittleEndian.Uint16(fmtChunk[2:4])
			rate := binary.LittleEndian.Uint32(fmtChunk[4:8])
			depth := binary.LittleEndian.Uint16(fmtChunk[14:16])
			if audioFormat != 1 || depth != 16 || channels != 1 {
				return nil, fmt.Errorf("%w: want PCM16 mono, got format=%d depth=%d channels=%d",
					ErrUnsupportedFormat, audioFormat, depth, channels)
			}
			switch rate {
			case 16000:
				format = pcm.L16Mono16K
			case 44100:
				format = pcm.L16Mono44K1
			case 48000:
				format = pcm.L16Mono48K
			default:
				return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, rate)
			}
			haveFmt = true
			if _, err := io.CopyN(io.Discard, r, size-16); err != nil {
				return nil, fmt.Errorf("player: skip fmt extra: %w", err)
			}

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt", ErrUnsupportedFormat)
			}
			return &wavReader{r: r, format: format, remaining: size}, nil

		default:
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return nil, fmt.Errorf("player: skip %q chunk: %w", id, err)
			}
		}
	}
}

// Read returns raw 16-bit mono samples, io.EOF once the data chunk ends.
func (w *wavReader) Read(p []byte) (int, error) {
	if w.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > w.remaining {
		p = p[:w.remaining]
	}
	n, err := w.r.Read(p)
	w.remaining -= int64(n)
	if err == nil && w.remaining == 0 {
		err = io.EOF
	}
	return n, err
}
