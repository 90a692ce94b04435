// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for scheduled playback backends and the backend factory
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harperreed/narrator-go/pkg/audio"
)

const (
	BackendOto       = "oto"
	BackendBeep      = "beep"
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
	BackendVirtual   = "virtual"
)

var (
	// ErrClosed is returned by operations on a closed output
	ErrClosed = errors.New("output closed")

	// ErrNotOpen is returned when scheduling before Open
	ErrNotOpen = errors.New("output not open")
)

// Output is an audio device with a monotonic clock onto which decoded
// buffers are scheduled at absolute start times
type Output interface {
	// Open initializes the device for the given stream format
	Open(format audio.Format) error

	// Now returns the output clock in seconds; it does not advance while suspended
	Now() float64

	// Schedule queues a buffer to start at buf.StartAt on the output clock
	Schedule(buf audio.Buffer) error

	// Suspend freezes the clock and silences the device
	Suspend() error

	// Resume restarts a suspended clock
	Resume() error

	// Suspended reports whether the clock is frozen
	Suspended() bool

	// Close discards unrendered audio and releases the device
	Close() error

	// SetVolume sets the volume (0-100)
	SetVolume(volume int)

	// SetMuted sets mute state
	SetMuted(muted bool)
}

// Backends lists the names accepted by New
func Backends() []string {
	return []string{BackendOto, BackendBeep, BackendMalgo, BackendPortAudio, BackendVirtual}
}

// New creates an unopened output for the named backend
func New(backend string) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendOto:
		return NewOto(), nil
	case BackendBeep:
		return NewBeep(), nil
	case BackendMalgo:
		return NewMalgo(), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	case BackendVirtual:
		return NewVirtual(VirtualOptions{Realtime: true}), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (available: %s)", backend, strings.Join(Backends(), ", "))
	}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "output")
}
