// ABOUTME: PCM audio decoder
// ABOUTME: Deinterleaves 16-bit little-endian PCM into normalised per-channel samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/harperreed/narrator-go/pkg/audio"
)

// PCMDecoder decodes interleaved 16-bit PCM
type PCMDecoder struct {
	channels  int
	frameSize int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("%w: %d-bit PCM (supported: 16)", audio.ErrUnsupportedFormat, format.BitDepth)
	}

	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	return &PCMDecoder{
		channels:  format.Channels,
		frameSize: format.FrameSize(),
	}, nil
}

// Decode deinterleaves whole frames; data must be a multiple of the frame size
func (d *PCMDecoder) Decode(data []byte) ([][]float32, error) {
	if len(data)%d.frameSize != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a whole number of %d-byte frames", len(data), d.frameSize)
	}

	frames := len(data) / d.frameSize
	out := make([][]float32, d.channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	offset := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < d.channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(data[offset:]))
			out[ch][i] = audio.SampleFromInt16(s)
			offset += 2
		}
	}

	return out, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
