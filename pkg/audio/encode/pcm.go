// ABOUTME: PCM audio encoder
// ABOUTME: Encodes float32 samples to clamped 16-bit little-endian PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/harperreed/narrator-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct{}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("%w: %d-bit PCM (supported: 16)", audio.ErrUnsupportedFormat, format.BitDepth)
	}

	return &PCMEncoder{}, nil
}

// Encode converts interleaved samples to PCM bytes
func (e *PCMEncoder) Encode(samples []float32) ([]byte, error) {
	output := make([]byte, len(samples)*2)
	PutPCM16(output, samples)
	return output, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

// PutPCM16 writes samples into dst as s16le and returns the bytes written.
// dst must hold at least 2*len(samples) bytes.
func PutPCM16(dst []byte, samples []float32) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(s)))
	}
	return len(samples) * 2
}
