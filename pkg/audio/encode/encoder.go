// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for converting float samples to device bytes
package encode

// Encoder encodes interleaved float32 samples to a wire format
type Encoder interface {
	// Encode converts interleaved samples to encoded audio data
	Encode(samples []float32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
