// ABOUTME: Canonical WAV header parsing and encoding
// ABOUTME: Supports incremental header accumulation for streamed containers
// Package wav reads and writes the canonical 44-byte RIFF/WAVE header used
// by streaming TTS services.
//
// A HeaderReader accumulates bytes across arbitrarily split chunks and hands
// back the payload that followed the header in the completing chunk:
//
//	var hr wav.HeaderReader
//	payload, done, err := hr.Feed(chunk)
//	if done {
//	    h, _ := hr.Header()
//	    // payload is interleaved PCM in h.Format()
//	}
package wav
