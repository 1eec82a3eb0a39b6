// Package opusdec decodes Opus frames for the streaming playback path.
// It validates each packet's TOC (table-of-contents) byte per RFC 6716
// before handing it to libopus, so obviously-corrupt frames are rejected
// cheaply and the caller can substitute silence.
package opusdec

// TOC is the first byte of every Opus packet:
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	| config  |s| c |
//	+-+-+-+-+-+-+-+-+
//
// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
type TOC byte

// Configuration is the 5-bit configuration number selecting mode,
// bandwidth, and frame size.
type Configuration byte

// Configuration returns the configuration number from the TOC byte.
func (t TOC) Configuration() Configuration {
	return Configuration(t >> 3)
}

// IsStereo reports whether the packet carries stereo audio.
func (t TOC) IsStereo() bool {
	return t&0b00000100 != 0
}

// FrameCode returns the 2-bit frame count code (0: one frame, 1: two
// equal, 2: two different, 3: arbitrary count).
func (t TOC) FrameCode() byte {
	return byte(t & 0b00000011)
}

// samplesAt48k maps configuration numbers to per-frame sample counts at
// 48 kHz.
var samplesAt48k = [32]int{
	/* SILK   NB   0...3 */ 480, 960, 1920, 2880,
	/* SILK   MB   4...7 */ 480, 960, 1920, 2880,
	/* SILK   WB   8..11 */ 480, 960, 1920, 2880,
	/* Hybrid SWB 12..13 */ 480, 960,
	/* Hybrid FB  14..15 */ 480, 960,
	/* CELT   NB  16..19 */ 120, 240, 480, 960,
	/* CELT   WB  20..23 */ 120, 240, 480, 960,
	/* CELT   SWB 24..27 */ 120, 240, 480, 960,
	/* CELT   FB  28..31 */ 120, 240, 480, 960,
}

// Samples48k returns the per-frame sample count at 48 kHz for this
// configuration.
func (c Configuration) Samples48k() int {
	if c > 31 {
		return 0
	}
	return samplesAt48k[c]
}
