package player

import (
	"bufio"
	"fmt"
	"io"
)

// skipID3v2 returns a reader positioned past any leading ID3v2 tag.
// MP3 files commonly carry one before the first audio frame.
func skipID3v2(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(10)
	if err != nil {
		// Too short for a tag; let the decoder report the real problem.
		return br, nil
	}
	if head[0] != 'I' || head[1] != 'D' || head[2] != '3' {
		return br, nil
	}
	// Tag size is a 28-bit synchsafe integer in bytes 6..9, excluding the
	// 10-byte header.
	size := int64(head[6]&0x7F)<<21 | int64(head[7]&0x7F)<<14 |
		int64(head[8]&0x7F)<<7 | int64(head[9]&0x7F)
	if _, err := io.CopyN(io.Discard, br, 10+size); err != nil {
		return nil, fmt.Errorf("player: skip ID3v2 tag: %w", err)
	}
	return br, nil
}
