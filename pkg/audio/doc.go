// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides fundamental audio types shared by the decoder,
// the streaming engine and the output devices.
//
//   - Format: Describes a PCM stream (codec, sample rate, channels, bit depth)
//   - Buffer: Decoded per-channel samples placed at a start time on an output clock
//
// Samples are carried as float32 in [-1, 1). 16-bit integers are divided by
// 32768 on the way in and clamped on the way out.
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "pcm",
//	    SampleRate: 24000,
//	    Channels:   1,
//	    BitDepth:   16,
//	}
//
//	seconds := format.BytesToSeconds(48000) // 1.0
package audio
