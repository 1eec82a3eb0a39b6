package player

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/chimebox/chimebox/pkg/audio/pcm"
	"github.com/chimebox/chimebox/pkg/stream"
)

// chainKind tags the active file decoder variant.
type chainKind int

const (
	chainWAV chainKind = iota + 1
	chainMP3
)

// fileChain is the file-playback decode chain: the storage reader, the
// format decoder selected by extension, and the per-tick frame buffer.
// Exactly one decoder variant is active per chain.
type fileChain struct {
	kind   chainKind
	name   string
	src    io.ReadCloser
	format pcm.Format
	frame  []byte

	wav *wavReader
	mp3 *mp3Reader
}

// newFileChain builds the decode chain for name over src. The format is
// determined by extension; unknown extensions fail with
// ErrUnsupportedFormat and src stays owned by the caller.
func newFileChain(name string, src io.ReadCloser) (*fileChain, error) {
	c := &fileChain{name: name, src: src}
	switch strings.ToLower(path.Ext(name)) {
	case ".wav":
		w, err := newWAVReader(src)
		if err != nil {
			return nil, err
		}
		c.kind = chainWAV
		c.wav = w
		c.format = w.format
	case ".mp3":
		m, err := newMP3Reader(src)
		if err != nil {
			return nil, err
		}
		c.kind = chainMP3
		c.mp3 = m
		c.format = m.format
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	c.frame = make([]byte, c.format.BytesInDuration(stream.FrameDuration))
	return c, nil
}

// readFrame returns the next frame of PCM, or io.EOF when the file ends.
// A short final frame is returned as-is.
func (c *fileChain) readFrame() ([]byte, error) {
	var r io.Reader
	switch c.kind {
	case chainWAV:
		r = c.wav
	case chainMP3:
		r = c.mp3
	}
	n, err := io.ReadFull(r, c.frame)
	if n > 0 {
		return c.frame[:n], nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, err
}

// close releases the storage reader.
func (c *fileChain) close() error {
	return c.src.Close()
}
