// ABOUTME: Producer-facing interface of the streaming player
// ABOUTME: Lets audio sources push chunks without depending on the player type
package stream

// Sink receives an ordered byte stream. Chunks may be reused by the caller
// after AddChunk returns.
type Sink interface {
	AddChunk(chunk []byte) error
	Complete() error
}

var _ Sink = (*Player)(nil)
