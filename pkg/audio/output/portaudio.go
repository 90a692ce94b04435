//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: The PortAudio stream callback pulls float32 frames from a scheduling timeline
package output

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/harperreed/narrator-go/pkg/audio"
)

// PortAudio output implementation
type PortAudio struct {
	mu        sync.Mutex
	stream    *portaudio.Stream
	timeline  *Timeline
	suspended bool
	volume    int
	muted     bool
	closed    atomic.Bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{volume: 100}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if p.stream != nil {
		return fmt.Errorf("output already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.timeline = NewTimeline(format.SampleRate, format.Channels)
	p.timeline.SetVolume(p.volume)
	p.timeline.SetMuted(p.muted)

	timeline := p.timeline
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), 0, func(out []float32) {
		timeline.Render(out)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	logger().Info("audio output initialized", "backend", BackendPortAudio, "rate", format.SampleRate,
		"channels", format.Channels)
	return nil
}

// Now returns the clock time of the last rendered frame
func (p *PortAudio) Now() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timeline == nil {
		return 0
	}
	return p.timeline.Now(0)
}

// Schedule queues a buffer on the timeline
func (p *PortAudio) Schedule(buf audio.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if p.timeline == nil {
		return ErrNotOpen
	}
	p.timeline.Add(buf)
	return nil
}

// Suspend stops the stream
func (p *PortAudio) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if p.stream != nil && !p.suspended {
		if err := p.stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop stream: %w", err)
		}
	}
	p.suspended = true
	return nil
}

// Resume restarts the stream
func (p *PortAudio) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if p.stream != nil && p.suspended {
		if err := p.stream.Start(); err != nil {
			return fmt.Errorf("failed to start stream: %w", err)
		}
	}
	p.suspended = false
	return nil
}

// Suspended reports whether the stream is stopped
func (p *PortAudio) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timeline != nil {
		p.timeline.Clear()
	}
	if p.stream == nil {
		return nil
	}
	if !p.suspended {
		if err := p.stream.Stop(); err != nil {
			return err
		}
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	return portaudio.Terminate()
}

// SetVolume sets the volume (0-100)
func (p *PortAudio) SetVolume(volume int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = clampVolume(volume)
	if p.timeline != nil {
		p.timeline.SetVolume(p.volume)
	}
}

// SetMuted sets mute state
func (p *PortAudio) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.muted = muted
	if p.timeline != nil {
		p.timeline.SetMuted(muted)
	}
}
