// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for payload decoders feeding the scheduler
package decode

// Decoder turns whole frames of encoded payload into per-channel samples
type Decoder interface {
	// Decode converts encoded audio data to one float32 slice per channel
	Decode(data []byte) ([][]float32, error)

	// Close releases decoder resources
	Close() error
}
