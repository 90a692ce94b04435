// ABOUTME: Hardware-free output driven by a manual or real-time clock
// ABOUTME: Used for dry runs, CI and deterministic tests of the scheduler
package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
)

// VirtualOptions configures a virtual output
type VirtualOptions struct {
	// Realtime advances the clock from a 10ms ticker; otherwise only Advance moves it
	Realtime bool

	// Capture keeps every rendered frame for inspection
	Capture bool
}

// Virtual renders scheduled audio into memory instead of a device
type Virtual struct {
	opts VirtualOptions

	mu        sync.Mutex
	timeline  *Timeline
	format    audio.Format
	scheduled []audio.Buffer
	captured  []float32
	scratch   []float32
	carry     float64 // fractional frames owed by Advance
	suspended bool
	closed    bool
	volume    int
	muted     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVirtual creates a new virtual output
func NewVirtual(opts VirtualOptions) *Virtual {
	ctx, cancel := context.WithCancel(context.Background())
	return &Virtual{
		opts:   opts,
		volume: 100,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Open initializes the virtual device at the stream format
func (v *Virtual) Open(format audio.Format) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	if v.timeline != nil {
		return fmt.Errorf("output already open")
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("invalid format: %dHz %dch", format.SampleRate, format.Channels)
	}

	v.format = format
	v.timeline = NewTimeline(format.SampleRate, format.Channels)
	v.timeline.SetVolume(v.volume)
	v.timeline.SetMuted(v.muted)

	if v.opts.Realtime {
		v.wg.Add(1)
		go v.run()
	}

	logger().Debug("virtual output opened", "rate", format.SampleRate, "channels", format.Channels, "realtime", v.opts.Realtime)
	return nil
}

// run advances the clock with wall time
func (v *Virtual) run() {
	defer v.wg.Done()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-v.ctx.Done():
			return
		case now := <-ticker.C:
			v.Advance(now.Sub(last))
			last = now
		}
	}
}

// Advance renders d worth of frames unless the output is suspended
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.timeline == nil || v.closed || v.suspended {
		return
	}

	exact := d.Seconds()*float64(v.format.SampleRate) + v.carry
	frames := int64(exact)
	v.carry = exact - float64(frames)
	v.renderLocked(frames)
}

// AdvanceFrames renders exactly n frames unless the output is suspended
func (v *Virtual) AdvanceFrames(n int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.timeline == nil || v.closed || v.suspended {
		return
	}
	v.renderLocked(n)
}

func (v *Virtual) renderLocked(frames int64) {
	for frames > 0 {
		chunk := min(frames, 4096)
		n := int(chunk) * v.format.Channels
		if cap(v.scratch) < n {
			v.scratch = make([]float32, n)
		}
		buf := v.scratch[:n]
		v.timeline.Render(buf)
		if v.opts.Capture {
			v.captured = append(v.captured, buf...)
		}
		frames -= chunk
	}
}

// Now returns the virtual clock in seconds
func (v *Virtual) Now() float64 {
	v.mu.Lock()
	t := v.timeline
	v.mu.Unlock()

	if t == nil {
		return 0
	}
	return t.Now(0)
}

// Schedule queues a buffer on the timeline
func (v *Virtual) Schedule(buf audio.Buffer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	if v.timeline == nil {
		return ErrNotOpen
	}

	v.timeline.Add(buf)
	v.scheduled = append(v.scheduled, buf)
	return nil
}

// Suspend freezes the clock
func (v *Virtual) Suspend() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.suspended = true
	return nil
}

// Resume restarts the clock
func (v *Virtual) Resume() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.suspended = false
	return nil
}

// Suspended reports whether the clock is frozen
func (v *Virtual) Suspended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.suspended
}

// Close stops the clock and discards unrendered audio
func (v *Virtual) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	if v.timeline != nil {
		v.timeline.Clear()
	}
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
	return nil
}

// Closed reports whether Close has been called
func (v *Virtual) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// SetVolume sets the volume (0-100)
func (v *Virtual) SetVolume(volume int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.volume = clampVolume(volume)
	if v.timeline != nil {
		v.timeline.SetVolume(v.volume)
	}
}

// SetMuted sets mute state
func (v *Virtual) SetMuted(muted bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.muted = muted
	if v.timeline != nil {
		v.timeline.SetMuted(muted)
	}
}

// Volume returns the current volume and mute state
func (v *Virtual) Volume() (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume, v.muted
}

// Format returns the format passed to Open
func (v *Virtual) Format() audio.Format {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.format
}

// Scheduled returns every buffer passed to Schedule, in order
func (v *Virtual) Scheduled() []audio.Buffer {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]audio.Buffer, len(v.scheduled))
	copy(out, v.scheduled)
	return out
}

// Captured returns the interleaved frames rendered so far (Capture only)
func (v *Virtual) Captured() []float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]float32, len(v.captured))
	copy(out, v.captured)
	return out
}

// Pending returns the number of scheduled frames not yet rendered
func (v *Virtual) Pending() int64 {
	v.mu.Lock()
	t := v.timeline
	v.mu.Unlock()
	if t == nil {
		return 0
	}
	return t.Pending()
}
