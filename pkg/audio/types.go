// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, decoded buffers and 16-bit sample conversion
package audio

import "errors"

const (
	// 16-bit audio range constants
	Max16Bit = 32767
	Min16Bit = -32768

	// Scale normalises 16-bit integers to [-1, 1)
	Scale = 32768.0
)

// ErrUnsupportedFormat is returned for encodings the engine cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// FrameSize returns the number of bytes in one interleaved frame.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesToSeconds converts a payload length to a playback duration.
func (f Format) BytesToSeconds(n int) float64 {
	fs := f.FrameSize()
	if fs <= 0 || f.SampleRate <= 0 {
		return 0
	}
	return float64(n/fs) / float64(f.SampleRate)
}

// Buffer represents decoded PCM audio placed on an output clock
type Buffer struct {
	StartAt float64     // Output clock time in seconds
	Samples [][]float32 // One slice per channel, normalised to [-1, 1)
	Format  Format
}

// Frames returns the number of frames per channel.
func (b Buffer) Frames() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration returns the playback length in seconds.
func (b Buffer) Duration() float64 {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Format.SampleRate)
}

// EndAt returns the output clock time at which the buffer finishes.
func (b Buffer) EndAt() float64 {
	return b.StartAt + b.Duration()
}

// SampleFromInt16 converts a 16-bit sample to a normalised float
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / Scale
}

// SampleToInt16 converts a normalised float to a clamped 16-bit sample
func SampleToInt16(sample float32) int16 {
	v := sample * Scale
	if v > Max16Bit {
		return Max16Bit
	}
	if v < Min16Bit {
		return Min16Bit
	}
	return int16(v)
}
