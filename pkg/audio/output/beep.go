// ABOUTME: Beep speaker audio output implementation
// ABOUTME: Exposes the timeline as a beep.Streamer behind a pausable beep.Ctrl
package output

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/harperreed/narrator-go/pkg/audio"
)

// The speaker is process-wide; it is initialised once at the first stream's rate
var (
	speakerMu     sync.Mutex
	speakerRate   beep.SampleRate
	speakerFrames int
)

func initSpeaker(rate int) (beep.SampleRate, int, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerRate != 0 {
		return speakerRate, speakerFrames, nil
	}

	sr := beep.SampleRate(rate)
	n := sr.N(100 * time.Millisecond)
	if err := speaker.Init(sr, n); err != nil {
		return 0, 0, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	speakerRate = sr
	speakerFrames = n
	return sr, n, nil
}

// timelineStreamer renders stereo frames for the speaker mixer
type timelineStreamer struct {
	timeline *Timeline
	closed   *atomic.Bool
	scratch  []float32
}

func (s *timelineStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.closed.Load() {
		return 0, false
	}

	n := len(samples) * 2
	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	buf := s.scratch[:n]
	s.timeline.Render(buf)

	for i := range samples {
		samples[i][0] = float64(buf[i*2])
		samples[i][1] = float64(buf[i*2+1])
	}
	return len(samples), true
}

func (s *timelineStreamer) Err() error {
	return nil
}

// Beep output implementation using the beep speaker
type Beep struct {
	mu        sync.Mutex
	timeline  *Timeline
	ctrl      *beep.Ctrl
	latency   int64 // speaker buffer, in stream frames
	suspended bool
	volume    int
	muted     bool
	closed    atomic.Bool
}

// NewBeep creates a new Beep output
func NewBeep() *Beep {
	return &Beep{
		volume: 100,
	}
}

// Open initializes the speaker and starts streaming the timeline
func (b *Beep) Open(format audio.Format) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrClosed
	}
	if b.timeline != nil {
		return fmt.Errorf("output already open")
	}

	sr, bufferFrames, err := initSpeaker(format.SampleRate)
	if err != nil {
		return err
	}

	// The timeline runs at the stream rate; beep resamples to the speaker
	b.timeline = NewTimeline(format.SampleRate, 2)
	b.timeline.SetVolume(b.volume)
	b.timeline.SetMuted(b.muted)
	b.latency = int64(bufferFrames) * int64(format.SampleRate) / int64(sr)

	var streamer beep.Streamer = &timelineStreamer{timeline: b.timeline, closed: &b.closed}
	if streamRate := beep.SampleRate(format.SampleRate); streamRate != sr {
		streamer = beep.Resample(4, streamRate, sr, streamer)
	}

	b.ctrl = &beep.Ctrl{Streamer: streamer}
	speaker.Play(b.ctrl)

	logger().Info("audio output initialized", "backend", BackendBeep, "rate", format.SampleRate,
		"speaker_rate", int(sr), "channels", 2)
	return nil
}

// Now returns the clock time of the frame currently audible
func (b *Beep) Now() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timeline == nil {
		return 0
	}
	return b.timeline.Now(b.latency)
}

// Schedule queues a buffer on the timeline
func (b *Beep) Schedule(buf audio.Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrClosed
	}
	if b.timeline == nil {
		return ErrNotOpen
	}
	b.timeline.Add(buf)
	return nil
}

// Suspend pauses the ctrl so the timeline stops advancing
func (b *Beep) Suspend() error {
	return b.setPaused(true)
}

// Resume unpauses the ctrl
func (b *Beep) Resume() error {
	return b.setPaused(false)
}

func (b *Beep) setPaused(paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrClosed
	}
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Paused = paused
		speaker.Unlock()
	}
	b.suspended = paused
	return nil
}

// Suspended reports whether the ctrl is paused
func (b *Beep) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}

// Close detaches the streamer from the speaker. The speaker stays initialised.
func (b *Beep) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if b.timeline != nil {
		b.timeline.Clear()
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (b *Beep) SetVolume(volume int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.volume = clampVolume(volume)
	if b.timeline != nil {
		b.timeline.SetVolume(b.volume)
	}
}

// SetMuted sets mute state
func (b *Beep) SetMuted(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.muted = muted
	if b.timeline != nil {
		b.timeline.SetMuted(muted)
	}
}
