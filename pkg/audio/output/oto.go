// ABOUTME: Oto-based audio output implementation
// ABOUTME: A persistent oto player pulls s16le frames from a scheduling timeline
package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/encode"
	"github.com/harperreed/narrator-go/pkg/audio/resample"
)

// oto allows one context per process; later sessions reuse it
var (
	otoMu       sync.Mutex
	otoContext  *oto.Context
	otoRate     int
	otoChannels int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, int, int, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoContext != nil {
		if otoRate != sampleRate || otoChannels != channels {
			logger().Info("reusing oto context with different format",
				"context_rate", otoRate, "context_channels", otoChannels,
				"stream_rate", sampleRate, "stream_channels", channels)
		}
		return otoContext, otoRate, otoChannels, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoContext = ctx
	otoRate = sampleRate
	otoChannels = channels
	return ctx, sampleRate, channels, nil
}

// Oto output implementation using oto library
type Oto struct {
	mu        sync.Mutex
	player    *oto.Player
	timeline  *Timeline
	resampler *resample.Resampler
	rate      int
	channels  int
	suspended bool
	volume    int
	muted     bool

	closed  atomic.Bool
	scratch []float32 // owned by the oto reader goroutine
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{
		volume: 100,
	}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return ErrClosed
	}
	if o.timeline != nil {
		return fmt.Errorf("output already open")
	}

	ctx, rate, channels, err := sharedOtoContext(format.SampleRate, format.Channels)
	if err != nil {
		return err
	}

	o.rate = rate
	o.channels = channels
	o.timeline = NewTimeline(rate, channels)
	o.timeline.SetVolume(o.volume)
	o.timeline.SetMuted(o.muted)

	if rate != format.SampleRate {
		o.resampler = resample.New(format.SampleRate, rate, format.Channels)
	}

	o.player = ctx.NewPlayer(o)
	o.player.Play()

	logger().Info("audio output initialized", "backend", BackendOto, "rate", rate, "channels", channels,
		"resampling", o.resampler != nil)
	return nil
}

// Read feeds the oto player from the timeline
func (o *Oto) Read(p []byte) (int, error) {
	if o.closed.Load() {
		return 0, io.EOF
	}

	frames := len(p) / (2 * o.channels)
	if frames == 0 {
		return 0, nil
	}

	n := frames * o.channels
	if cap(o.scratch) < n {
		o.scratch = make([]float32, n)
	}
	buf := o.scratch[:n]
	o.timeline.Render(buf)
	return encode.PutPCM16(p, buf), nil
}

// Now returns the clock time of the frame currently audible
func (o *Oto) Now() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.timeline == nil {
		return 0
	}
	var latency int64
	if o.player != nil {
		latency = int64(o.player.BufferedSize()) / int64(2*o.channels)
	}
	return o.timeline.Now(latency)
}

// Schedule queues a buffer, resampling to the context rate when needed
func (o *Oto) Schedule(buf audio.Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return ErrClosed
	}
	if o.timeline == nil {
		return ErrNotOpen
	}

	if o.resampler != nil {
		buf.Samples = o.resampler.Resample(buf.Samples)
		buf.Format.SampleRate = o.rate
	}
	o.timeline.Add(buf)
	return nil
}

// Suspend pauses the oto player, freezing the clock
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return ErrClosed
	}
	if o.player != nil {
		o.player.Pause()
	}
	o.suspended = true
	return nil
}

// Resume restarts the oto player
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return ErrClosed
	}
	if o.player != nil {
		o.player.Play()
	}
	o.suspended = false
	return nil
}

// Suspended reports whether the player is paused
func (o *Oto) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

// Close releases output resources. The shared context stays alive.
func (o *Oto) Close() error {
	if o.closed.Swap(true) {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.timeline != nil {
		o.timeline.Clear()
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			return fmt.Errorf("failed to close oto player: %w", err)
		}
		o.player = nil
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = clampVolume(volume)
	if o.timeline != nil {
		o.timeline.SetVolume(o.volume)
	}
	logger().Debug("volume set", "volume", o.volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.muted = muted
	if o.timeline != nil {
		o.timeline.SetMuted(muted)
	}
	logger().Debug("mute set", "muted", muted)
}
