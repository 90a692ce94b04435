// ABOUTME: Configuration and result types for the streaming player
// ABOUTME: Holds buffering thresholds, callbacks and statistics
package stream

import (
	"log/slog"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/output"
)

const (
	// DefaultMinBufferBytes is the payload needed before a buffer is scheduled
	DefaultMinBufferBytes = 16384

	// DefaultMaxBufferBytes leaves buffers uncapped: each drain takes every
	// whole frame pending
	DefaultMaxBufferBytes = 0

	// DefaultRedrainDelay is the pause between back-to-back drains
	DefaultRedrainDelay = 10 * time.Millisecond

	// DefaultPollInterval is how often WaitForPlaybackEnd checks the clock
	DefaultPollInterval = 100 * time.Millisecond
)

// Config holds player configuration
type Config struct {
	// Output is the device whose clock buffers are scheduled on. It is opened
	// once the header has been parsed and closed by Stop.
	Output output.Output

	// MinBufferBytes is the scheduling threshold (default: 16384)
	MinBufferBytes int

	// MaxBufferBytes bounds one buffer; 0 means every pending whole frame
	// (default: 0)
	MaxBufferBytes int

	// RedrainDelay is the wait between drains of a backlog (default: 10ms)
	RedrainDelay time.Duration

	// PollInterval is the WaitForPlaybackEnd polling period (default: 100ms)
	PollInterval time.Duration

	// Logger receives engine logs (default: slog.Default())
	Logger *slog.Logger

	// OnComplete is called once with the total bytes received, header included
	OnComplete func(totalBytes int64)

	// OnError is called once when the stream fails
	OnError func(error)

	// OnFirstAudio is called when the first buffer is scheduled
	OnFirstAudio func(FirstAudio)

	// OnBuffer is called for every scheduled buffer
	OnBuffer func(audio.Buffer)
}

func (c *Config) applyDefaults() {
	if c.MinBufferBytes <= 0 {
		c.MinBufferBytes = DefaultMinBufferBytes
	}
	if c.MaxBufferBytes < 0 {
		c.MaxBufferBytes = DefaultMaxBufferBytes
	}
	if c.MaxBufferBytes > 0 && c.MaxBufferBytes < c.MinBufferBytes {
		c.MaxBufferBytes = c.MinBufferBytes
	}
	if c.RedrainDelay <= 0 {
		c.RedrainDelay = DefaultRedrainDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// FirstAudio describes when audible output began
type FirstAudio struct {
	Latency time.Duration // time from player creation to the first scheduled buffer
	StartAt float64       // output clock time of the first buffer
}

// Outcome is the single result of a stream
type Outcome struct {
	TotalBytes int64
	Err        error
}

// Stats contains stream statistics
type Stats struct {
	BytesReceived    int64 // every byte passed to AddChunk
	PayloadBytes     int64 // bytes after the header
	PendingBytes     int   // payload not yet scheduled
	BuffersScheduled int
	FramesScheduled  int64
	DroppedBytes     int // trailing partial frame discarded at Complete
	ScheduledWindow  float64
}
