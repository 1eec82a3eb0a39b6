// Package audio is an umbrella for the audio sub-packages:
//
//   - pcm: PCM format math, silence frames, and gain
//   - adpcm: 4-bit predictive delta codec
//   - opusdec: Opus frame decoding for the streaming path
package audio
