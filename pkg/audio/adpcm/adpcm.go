// Package adpcm implements the IMA ADPCM predictive delta codec used as
// the low-bitrate streaming mode: 4 bits per sample, an adaptive step size
// drawn from a fixed 89-entry table, and a running predictor.
//
// The codec is stateful and strictly order-dependent: codes must be applied
// in sequence, and the (predictor, step index) state is reset only at
// stream start. Dropping or reordering codes desynchronizes the decoder
// until the next reset.
package adpcm

// stepTable is the fixed non-linear quantizer step table.
var stepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// indexTable gives the per-code step-index adjustment.
var indexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

// Decoder reconstructs 16-bit samples from a sequence of 4-bit codes.
// The zero value is ready to use and equals the reset state.
type Decoder struct {
	predictor int32
	stepIndex int32
}

// NewDecoder returns a decoder in the initial (zero) state.
func NewDecoder() *Decoder { return &Decoder{} }

// Reset returns the decoder to the initial state. Called at every stream
// (re)start.
func (d *Decoder) Reset() {
	d.predictor = 0
	d.stepIndex = 0
}

// DecodeSample applies one 4-bit code and returns the reconstructed sample.
func (d *Decoder) DecodeSample(code byte) int16 {
	code &= 0x0F
	step := stepTable[d.stepIndex]

	diff := step >> 3
	if code&1 != 0 {
		diff += step >> 2
	}
	if code&2 != 0 {
		diff += step >> 1
	}
	if code&4 != 0 {
		diff += step
	}
	if code&8 != 0 {
		d.predictor -= diff
	} else {
		d.predictor += diff
	}
	d.predictor = clamp16(d.predictor)

	d.stepIndex += indexTable[code]
	if d.stepIndex < 0 {
		d.stepIndex = 0
	} else if d.stepIndex > int32(len(stepTable))-1 {
		d.stepIndex = int32(len(stepTable)) - 1
	}
	return int16(d.predictor)
}

// Decode expands packed codes, low nibble first, two samples per byte.
func (d *Decoder) Decode(packed []byte) []int16 {
	out := make([]int16, 0, len(packed)*2)
	for _, b := range packed {
		out = append(out, d.DecodeSample(b&0x0F))
		out = append(out, d.DecodeSample(b>>4))
	}
	return out
}

// Encoder produces 4-bit codes from 16-bit samples. The zero value is
// ready to use and mirrors the decoder's reset state.
type Encoder struct {
	predictor int32
	stepIndex int32
}

// NewEncoder returns an encoder in the initial (zero) state.
func NewEncoder() *Encoder { return &Encoder{} }

// Reset returns the encoder to the initial state.
func (e *Encoder) Reset() {
	e.predictor = 0
	e.stepIndex = 0
}

// EncodeSample quantizes one sample to a 4-bit code, updating the
// predictor the same way the decoder will.
func (e *Encoder) EncodeSample(sample int16) byte {
	step := stepTable[e.stepIndex]
	diff := int32(sample) - e.predictor

	var code byte
	if diff < 0 {
		code = 8
		diff = -diff
	}
	if diff >= step {
		code |= 4
		diff -= step
	}
	if diff >= step>>1 {
		code |= 2
		diff -= step >> 1
	}
	if diff >= step>>2 {
		code |= 1
	}

	// Track the decoder's reconstruction exactly.
	delta := step >> 3
	if code&1 != 0 {
		delta += step >> 2
	}
	if code&2 != 0 {
		delta += step >> 1
	}
	if code&4 != 0 {
		delta += step
	}
	if code&8 != 0 {
		e.predictor -= delta
	} else {
		e.predictor += delta
	}
	e.predictor = clamp16(e.predictor)

	e.stepIndex += indexTable[code]
	if e.stepIndex < 0 {
		e.stepIndex = 0
	} else if e.stepIndex > int32(len(stepTable))-1 {
		e.stepIndex = int32(len(stepTable)) - 1
	}
	return code
}

// Encode packs samples into codes, low nibble first, two samples per byte.
// An odd trailing sample is padded with a zero code.
func (e *Encoder) Encode(samples []int16) []byte {
	out := make([]byte, 0, (len(samples)+1)/2)
	for i := 0; i < len(samples); i += 2 {
		b := e.EncodeSample(samples[i])
		if i+1 < len(samples) {
			b |= e.EncodeSample(samples[i+1]) << 4
		}
		out = append(out, b)
	}
	return out
}

func clamp16(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
