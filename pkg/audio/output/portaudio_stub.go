//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"

	"github.com/harperreed/narrator-go/pkg/audio"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format) error {
	return errPortAudioDisabled
}

// Now always reports zero
func (p *PortAudio) Now() float64 {
	return 0
}

// Schedule outputs audio samples
func (p *PortAudio) Schedule(buf audio.Buffer) error {
	return errPortAudioDisabled
}

func (p *PortAudio) Suspend() error  { return errPortAudioDisabled }
func (p *PortAudio) Resume() error   { return errPortAudioDisabled }
func (p *PortAudio) Suspended() bool { return false }
func (p *PortAudio) Close() error    { return nil }
func (p *PortAudio) SetVolume(int)   {}
func (p *PortAudio) SetMuted(bool)   {}
