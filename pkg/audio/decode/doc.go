// ABOUTME: Audio decoder package for streamed PCM payloads
// ABOUTME: Provides the Decoder interface and the 16-bit PCM implementation
// Package decode converts interleaved payload bytes into per-channel float32
// samples ready for scheduling.
//
// Only 16-bit little-endian PCM is supported; other bit depths return
// audio.ErrUnsupportedFormat.
//
// Example:
//
//	decoder, err := decode.NewPCM(format)
//	channels, err := decoder.Decode(wholeFrames)
package decode
