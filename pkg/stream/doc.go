// ABOUTME: Streaming WAV playback engine
// ABOUTME: Turns an incrementally delivered WAV response into gapless scheduled audio
// Package stream plays a canonical WAV byte stream while it is still arriving.
//
// The first 44 bytes are parsed as the header, however the stream is split.
// Payload accumulates until at least MinBufferBytes of whole frames are
// available; those are decoded and scheduled back to back on the output clock
// so consecutive buffers play without gaps. Complete schedules what is left
// and resolves the single Outcome.
//
// Example:
//
//	p, err := stream.New(stream.Config{Output: out})
//	for chunk := range chunks {
//	    p.AddChunk(chunk)
//	}
//	p.Complete()
//	outcome := <-p.Result()
//	err = p.WaitForPlaybackEnd(ctx)
//	p.Stop()
package stream
