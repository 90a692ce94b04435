// ABOUTME: Progressive WAV player that schedules audio as bytes arrive
// ABOUTME: Parses the header once, buffers whole frames and keeps playback gapless
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/decode"
	"github.com/harperreed/narrator-go/pkg/audio/output"
	"github.com/harperreed/narrator-go/pkg/audio/wav"
)

var (
	// ErrMalformedContainer is reported when the header markers or fields are invalid
	ErrMalformedContainer = wav.ErrMalformedContainer

	// ErrUnsupportedFormat is reported for payloads other than 16-bit PCM
	ErrUnsupportedFormat = audio.ErrUnsupportedFormat

	// ErrClosed is returned by operations on a stopped player
	ErrClosed = errors.New("player stopped")

	// ErrCompleted is returned by AddChunk after Complete
	ErrCompleted = errors.New("stream already completed")
)

// Player decodes one streamed WAV response and schedules it on an output.
// A Player serves a single stream; create a new one per session.
type Player struct {
	cfg     Config
	out     output.Output
	log     *slog.Logger
	created time.Time

	mu         sync.Mutex
	header     wav.HeaderReader
	format     audio.Format
	decoder    decode.Decoder
	opened     bool // header parsed and output open
	pending    []byte
	window     float64
	stats      Stats
	firstAudio bool
	paused     bool
	completed  bool
	failed     bool
	stopped    bool
	redraining bool
	resolved   bool

	kick     chan struct{}
	quit     chan struct{} // closed on Complete, failure or Stop
	quitOnce sync.Once
	stopCh   chan struct{}
	result   chan Outcome
}

// New creates a player for one stream
func New(cfg Config) (*Player, error) {
	if cfg.Output == nil {
		return nil, errors.New("stream: output is required")
	}
	cfg.applyDefaults()

	return &Player{
		cfg:     cfg,
		out:     cfg.Output,
		log:     cfg.Logger.With("component", "stream"),
		created: time.Now(),
		kick:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopCh:  make(chan struct{}),
		result:  make(chan Outcome, 1),
	}, nil
}

// AddChunk appends the next chunk of the stream. Stream errors are reported
// through Result and OnError rather than returned; once the stream has failed
// further chunks are ignored.
func (p *Player) AddChunk(chunk []byte) error {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.failed {
		p.mu.Unlock()
		return nil
	}
	if p.completed {
		p.mu.Unlock()
		return ErrCompleted
	}

	p.stats.BytesReceived += int64(len(chunk))

	payload := chunk
	if !p.opened {
		rest, done, err := p.header.Feed(chunk)
		if err != nil {
			notes := p.failLocked(err)
			p.mu.Unlock()
			notify(notes)
			return nil
		}
		if !done {
			p.mu.Unlock()
			return nil
		}
		if err := p.openLocked(); err != nil {
			notes := p.failLocked(err)
			p.mu.Unlock()
			notify(notes)
			return nil
		}
		payload = rest
	}

	if len(payload) > 0 {
		p.pending = append(p.pending, payload...)
		p.stats.PayloadBytes += int64(len(payload))
	}

	notes := p.drainLocked(false)
	if !p.failed && p.readyLocked() {
		p.startRedrainLocked()
	}
	p.mu.Unlock()

	notify(notes)
	return nil
}

// Complete marks the end of the stream. Remaining whole frames are scheduled
// even below the threshold; a trailing partial frame is dropped.
func (p *Player) Complete() error {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.failed || p.completed {
		p.mu.Unlock()
		return nil
	}

	var notes []func()
	if p.opened {
		for !p.failed && p.wholeBytesLocked() > 0 {
			notes = append(notes, p.drainLocked(true)...)
		}
		if !p.failed && len(p.pending) > 0 {
			p.stats.DroppedBytes = len(p.pending)
			p.log.Debug("dropping trailing partial frame", "bytes", len(p.pending))
			p.pending = p.pending[:0]
		}
	}

	if !p.failed {
		p.completed = true
		p.closeQuit()

		total := p.stats.BytesReceived
		p.resolveLocked(Outcome{TotalBytes: total})
		p.log.Info("stream complete", "total_bytes", total, "buffers", p.stats.BuffersScheduled,
			"window", p.window)

		if cb := p.cfg.OnComplete; cb != nil {
			notes = append(notes, func() { cb(total) })
		}
	}
	p.mu.Unlock()

	notify(notes)
	return nil
}

// Pause suspends the output clock. Chunks keep being accepted and scheduled.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrClosed
	}
	if p.paused {
		return nil
	}
	if p.opened {
		if err := p.out.Suspend(); err != nil {
			return fmt.Errorf("suspend output: %w", err)
		}
	}
	p.paused = true
	p.log.Debug("paused")
	return nil
}

// Resume restarts a paused output clock
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrClosed
	}
	if !p.paused {
		return nil
	}
	if p.opened {
		if err := p.out.Resume(); err != nil {
			return fmt.Errorf("resume output: %w", err)
		}
	}
	p.paused = false
	p.log.Debug("resumed")
	return nil
}

// Paused reports whether the player is paused
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// WaitForPlaybackEnd blocks until the output clock passes the end of the last
// scheduled buffer. It keeps waiting while paused. Call it once the outcome
// has resolved; before that it only covers audio scheduled so far.
func (p *Player) WaitForPlaybackEnd(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		done, err := p.playbackEnded()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrClosed
		case <-ticker.C:
		}
	}
}

func (p *Player) playbackEnded() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false, ErrClosed
	}
	if !p.opened || p.stats.BuffersScheduled == 0 {
		return true, nil
	}

	// tolerate float rounding below one frame
	halfFrame := 0.5 / float64(p.format.SampleRate)
	return p.out.Now()+halfFrame >= p.window, nil
}

// Stop tears down the output immediately, discarding unplayed audio.
// It is irreversible; stopping twice is a no-op.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.closeQuit()
	close(p.stopCh)
	p.pending = nil
	p.resolveLocked(Outcome{TotalBytes: p.stats.BytesReceived, Err: ErrClosed})
	p.mu.Unlock()

	// drains run under the lock and check stopped first
	var err error
	if cerr := p.out.Close(); cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if p.decoder != nil {
		p.decoder.Close()
	}
	p.log.Debug("player stopped")
	return err
}

// Result delivers exactly one outcome: completion, failure, or ErrClosed
// when the player was stopped first
func (p *Player) Result() <-chan Outcome {
	return p.result
}

// Format returns the stream format once the header has been parsed
func (p *Player) Format() (audio.Format, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format, p.opened
}

// ScheduledWindow returns the output clock time at which scheduled audio ends
func (p *Player) ScheduledWindow() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window
}

// Stats returns stream statistics
func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.PendingBytes = len(p.pending)
	s.ScheduledWindow = p.window
	return s
}

// openLocked prepares the decoder and output for the parsed header
func (p *Player) openLocked() error {
	h, _ := p.header.Header()
	format := h.Format()

	dec, err := decode.NewPCM(format)
	if err != nil {
		return err
	}
	if err := p.out.Open(format); err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if p.paused {
		if err := p.out.Suspend(); err != nil {
			return fmt.Errorf("suspend output: %w", err)
		}
	}

	p.format = format
	p.decoder = dec
	p.opened = true
	p.log.Info("stream format", "rate", format.SampleRate, "channels", format.Channels,
		"bits", format.BitDepth)
	return nil
}

func (p *Player) wholeBytesLocked() int {
	if !p.opened {
		return 0
	}
	fs := p.format.FrameSize()
	return len(p.pending) - len(p.pending)%fs
}

// readyLocked reports whether enough whole frames are pending to schedule
func (p *Player) readyLocked() bool {
	return p.wholeBytesLocked() >= p.cfg.MinBufferBytes
}

// drainLocked schedules one buffer of the pending whole frames, capped at
// MaxBufferBytes when set, once the threshold is met or whenever whole
// frames are pending if flush is set
func (p *Player) drainLocked(flush bool) []func() {
	whole := p.wholeBytesLocked()
	if whole == 0 || (!flush && whole < p.cfg.MinBufferBytes) {
		return nil
	}
	if p.cfg.MaxBufferBytes == 0 {
		return p.scheduleLocked(whole)
	}

	fs := p.format.FrameSize()
	limit := p.cfg.MaxBufferBytes - p.cfg.MaxBufferBytes%fs
	if limit < fs {
		limit = fs
	}
	return p.scheduleLocked(min(whole, limit))
}

func (p *Player) scheduleLocked(n int) []func() {
	samples, err := p.decoder.Decode(p.pending[:n])
	if err != nil {
		return p.failLocked(fmt.Errorf("decode payload: %w", err))
	}
	p.pending = p.pending[:copy(p.pending, p.pending[n:])]

	buf := audio.Buffer{Samples: samples, Format: p.format}
	start := p.out.Now()
	if p.window > start {
		start = p.window
	}
	buf.StartAt = start

	if err := p.out.Schedule(buf); err != nil {
		return p.failLocked(fmt.Errorf("schedule buffer: %w", err))
	}

	p.window = start + buf.Duration()
	p.stats.BuffersScheduled++
	p.stats.FramesScheduled += int64(buf.Frames())
	p.log.Debug("scheduled buffer", "frames", buf.Frames(), "start", start, "window", p.window)

	var notes []func()
	if !p.firstAudio {
		p.firstAudio = true
		fa := FirstAudio{Latency: time.Since(p.created), StartAt: start}
		p.log.Info("first audio", "latency", fa.Latency)
		if cb := p.cfg.OnFirstAudio; cb != nil {
			notes = append(notes, func() { cb(fa) })
		}
	}
	if cb := p.cfg.OnBuffer; cb != nil {
		notes = append(notes, func() { cb(buf) })
	}
	return notes
}

// startRedrainLocked wakes the redrain goroutine, starting it on first use
func (p *Player) startRedrainLocked() {
	if !p.redraining {
		p.redraining = true
		go p.redrainLoop()
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// redrainLoop works off a backlog one buffer per RedrainDelay so producers
// can append between drains
func (p *Player) redrainLoop() {
	for {
		select {
		case <-p.quit:
			return
		case <-p.kick:
		}

		for p.redrainOnce() {
		}
	}
}

func (p *Player) redrainOnce() bool {
	timer := time.NewTimer(p.cfg.RedrainDelay)
	select {
	case <-p.quit:
		timer.Stop()
		return false
	case <-timer.C:
	}

	p.mu.Lock()
	if p.stopped || p.failed || p.completed || !p.readyLocked() {
		p.mu.Unlock()
		return false
	}
	notes := p.drainLocked(false)
	more := !p.failed && p.readyLocked()
	p.mu.Unlock()

	notify(notes)
	return more
}

func (p *Player) failLocked(err error) []func() {
	p.failed = true
	p.closeQuit()
	p.pending = nil
	p.log.Error("stream failed", "error", err, "bytes_received", p.stats.BytesReceived)
	p.resolveLocked(Outcome{TotalBytes: p.stats.BytesReceived, Err: err})

	if cb := p.cfg.OnError; cb != nil {
		return []func(){func() { cb(err) }}
	}
	return nil
}

func (p *Player) resolveLocked(o Outcome) {
	if p.resolved {
		return
	}
	p.resolved = true
	p.result <- o
}

func (p *Player) closeQuit() {
	p.quitOnce.Do(func() { close(p.quit) })
}

// notify runs callbacks collected under the lock
func notify(notes []func()) {
	for _, fn := range notes {
		fn()
	}
}
