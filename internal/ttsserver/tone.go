// ABOUTME: Sine tone generator standing in for a speech model
// ABOUTME: Produces s16le PCM frames whose count scales with the input text
package ttsserver

import (
	"math"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/encode"
)

// Tone generates a fixed-frequency sine wave
type Tone struct {
	format    audio.Format
	frequency float64
	remaining int // frames left to produce
	index     uint64
	scratch   []float32
}

// NewTone creates a tone lasting d at the given format
func NewTone(format audio.Format, frequency float64, d time.Duration) *Tone {
	return &Tone{
		format:    format,
		frequency: frequency,
		remaining: int(d.Seconds() * float64(format.SampleRate)),
	}
}

// Remaining returns the number of frames not yet produced
func (t *Tone) Remaining() int {
	return t.remaining
}

// Read fills p with whole s16le frames and returns the bytes written. It
// returns 0 once the tone has finished.
func (t *Tone) Read(p []byte) int {
	frameSize := t.format.FrameSize()
	frames := min(len(p)/frameSize, t.remaining)
	if frames <= 0 {
		return 0
	}

	n := frames * t.format.Channels
	if cap(t.scratch) < n {
		t.scratch = make([]float32, n)
	}
	samples := t.scratch[:n]

	for i := 0; i < frames; i++ {
		ts := float64(t.index+uint64(i)) / float64(t.format.SampleRate)
		v := float32(0.5 * math.Sin(2*math.Pi*t.frequency*ts))
		for ch := 0; ch < t.format.Channels; ch++ {
			samples[i*t.format.Channels+ch] = v
		}
	}

	t.index += uint64(frames)
	t.remaining -= frames
	return encode.PutPCM16(p, samples)
}
