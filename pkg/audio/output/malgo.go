// ABOUTME: Malgo-based audio output implementation
// ABOUTME: The miniaudio data callback pulls s16le frames from a scheduling timeline
package output

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/encode"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu        sync.Mutex
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	timeline  *Timeline
	channels  int
	suspended bool
	volume    int
	muted     bool

	closed  atomic.Bool
	scratch []float32 // owned by the device callback
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{
		volume: 100,
	}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(format audio.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if m.device != nil {
		return fmt.Errorf("output already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	m.channels = format.Channels
	m.timeline = NewTimeline(format.SampleRate, format.Channels)
	m.timeline.SetVolume(m.volume)
	m.timeline.SetMuted(m.muted)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		m.freeContext(ctx)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext(ctx)
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.malgoCtx = ctx
	m.device = device

	logger().Info("audio output initialized", "backend", BackendMalgo, "rate", format.SampleRate,
		"channels", format.Channels, "format", "S16")
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	n := int(frameCount) * m.channels
	if cap(m.scratch) < n {
		m.scratch = make([]float32, n)
	}
	buf := m.scratch[:n]

	if m.closed.Load() {
		for i := range buf {
			buf[i] = 0
		}
	} else {
		m.timeline.Render(buf)
	}
	encode.PutPCM16(pOutput, buf)
}

// Now returns the clock time of the last rendered frame
func (m *Malgo) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timeline == nil {
		return 0
	}
	return m.timeline.Now(0)
}

// Schedule queues a buffer on the timeline
func (m *Malgo) Schedule(buf audio.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if m.timeline == nil {
		return ErrNotOpen
	}
	m.timeline.Add(buf)
	return nil
}

// Suspend stops the device so no callbacks advance the clock
func (m *Malgo) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if m.device != nil && !m.suspended {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop device: %w", err)
		}
	}
	m.suspended = true
	return nil
}

// Resume restarts the device
func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if m.device != nil && m.suspended {
		if err := m.device.Start(); err != nil {
			return fmt.Errorf("failed to start device: %w", err)
		}
	}
	m.suspended = false
	return nil
}

// Suspended reports whether the device is stopped
func (m *Malgo) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// Close releases output resources
func (m *Malgo) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timeline != nil {
		m.timeline.Clear()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			logger().Warn("device stop error", "error", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		m.freeContext(m.malgoCtx)
		m.malgoCtx = nil
	}
	return nil
}

func (m *Malgo) freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		logger().Warn("malgo context uninit error", "error", err)
	}
	ctx.Free()
}

// SetVolume sets the volume (0-100)
func (m *Malgo) SetVolume(volume int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = clampVolume(volume)
	if m.timeline != nil {
		m.timeline.SetVolume(m.volume)
	}
}

// SetMuted sets mute state
func (m *Malgo) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.muted = muted
	if m.timeline != nil {
		m.timeline.SetMuted(muted)
	}
}
