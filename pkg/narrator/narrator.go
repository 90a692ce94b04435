// ABOUTME: Sequential span narration over a streaming audio source
// ABOUTME: Creates a fresh player and output per span and exposes transport controls
package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/output"
	"github.com/harperreed/narrator-go/pkg/stream"
)

var (
	// ErrBusy is returned by Speak while another narration is running
	ErrBusy = errors.New("narration already in progress")

	// ErrStopped is returned by Speak when Stop aborted the narration
	ErrStopped = errors.New("narration stopped")

	// ErrNotPlaying is returned by transport controls with no active session
	ErrNotPlaying = errors.New("nothing is playing")

	// ErrSpanRange is returned for a span index outside the document
	ErrSpanRange = errors.New("span index out of range")

	// errSkipped ends a span early when the listener moves to another one
	errSkipped = errors.New("span skipped")
)

// Source produces the WAV byte stream for a piece of text. Implementations
// push chunks into sink in order and call sink.Complete at end of stream.
// A transport failure is returned as an error.
type Source interface {
	Stream(ctx context.Context, text string, sink stream.Sink) error
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, text string, sink stream.Sink) error

// Stream calls f
func (f SourceFunc) Stream(ctx context.Context, text string, sink stream.Sink) error {
	return f(ctx, text, sink)
}

// Recorder receives session measurements
type Recorder interface {
	SessionStarted()
	SessionFinished(state State, bytes int64)
	FirstAudio(latency time.Duration)
	BufferScheduled(seconds float64)
	BytesReceived(n int)
}

// Config holds narrator configuration
type Config struct {
	// Source produces audio for each span
	Source Source

	// NewOutput creates the output for one session (default: output.New(""))
	NewOutput func() (output.Output, error)

	// Stream is the base player configuration; Output is set per session
	Stream stream.Config

	// Volume is the initial volume 0-100 (default: 100)
	Volume int

	Recorder Recorder
	Logger   *slog.Logger

	// OnStateChange is called after every status transition
	OnStateChange func(Status)

	// OnError is called when a span fails
	OnError func(error)
}

// Narrator plays spans one after another
type Narrator struct {
	cfg Config
	log *slog.Logger

	mu            sync.Mutex
	running       bool
	stopRequested bool
	paused        bool
	cancel        context.CancelFunc
	spanCancel    context.CancelFunc
	index         int // span being played, within the whole document
	total         int
	skipTo        int // pending jump target, -1 when none
	state         State
	current       *Session
	lastErr       error
	volume        int
	muted         bool

	sampleBytes int64
	sampleChars int
}

// New creates a narrator
func New(cfg Config) (*Narrator, error) {
	if cfg.Source == nil {
		return nil, errors.New("narrator: source is required")
	}
	if cfg.NewOutput == nil {
		cfg.NewOutput = func() (output.Output, error) { return output.New("") }
	}
	if cfg.Volume <= 0 || cfg.Volume > 100 {
		cfg.Volume = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Narrator{
		cfg:    cfg,
		log:    cfg.Logger.With("component", "narrator"),
		state:  StateIdle,
		volume: cfg.Volume,
		skipTo: -1,
	}, nil
}

// Speak plays spans in order and returns once the last one has finished
// playing, a span fails, or Stop is called.
func (n *Narrator) Speak(ctx context.Context, spans []string) error {
	return n.speak(ctx, spans, 0, false)
}

// SpeakFrom plays spans[start:] in order. Status and sessions keep reporting
// positions within the whole document.
func (n *Narrator) SpeakFrom(ctx context.Context, spans []string, start int) error {
	return n.speak(ctx, spans, start, false)
}

// SpeakSpan plays only spans[index]. Next and Previous move to a neighbouring
// span and play just that one.
func (n *Narrator) SpeakSpan(ctx context.Context, spans []string, index int) error {
	return n.speak(ctx, spans, index, true)
}

func (n *Narrator) speak(ctx context.Context, spans []string, start int, single bool) error {
	if len(spans) == 0 {
		return nil
	}
	if start < 0 || start >= len(spans) {
		return fmt.Errorf("%w: %d of %d", ErrSpanRange, start+1, len(spans))
	}

	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	n.running = true
	n.stopRequested = false
	n.paused = false
	n.cancel = cancel
	n.lastErr = nil
	n.index = start
	n.total = len(spans)
	n.skipTo = -1
	n.mu.Unlock()

	defer func() {
		cancel()
		n.mu.Lock()
		n.running = false
		n.cancel = nil
		n.spanCancel = nil
		n.skipTo = -1
		n.mu.Unlock()
	}()

	end := len(spans)
	if single {
		end = start + 1
	}

	for i := start; i < end; {
		if n.stopping() {
			return ErrStopped
		}
		n.mu.Lock()
		n.index = i
		n.mu.Unlock()

		err := n.playSpan(ctx, i, len(spans), spans[i])
		if err == nil || errors.Is(err, errSkipped) {
			if target := n.takeSkip(); target >= 0 {
				i = target
				if single {
					end = target + 1
				}
				continue
			}
		}
		if err == nil {
			i++
			continue
		}
		if errors.Is(err, ErrStopped) {
			return ErrStopped
		}

		n.setState(StateError, err)
		if cb := n.cfg.OnError; cb != nil {
			cb(err)
		}
		return err
	}

	n.setState(StateDone, nil)
	return nil
}

// playSpan streams and plays one span, tearing its player down on return
func (n *Narrator) playSpan(ctx context.Context, index, total int, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := newSession(index, total, text)
	log := n.log.With("session", sess.ID, "span", index+1, "of", total)

	out, err := n.cfg.NewOutput()
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	sess.out = out

	player, err := stream.New(n.streamConfig(sess, out))
	if err != nil {
		out.Close()
		return fmt.Errorf("create player: %w", err)
	}
	sess.player = player
	defer player.Stop()

	n.mu.Lock()
	if err := n.interruptedLocked(); err != nil {
		n.mu.Unlock()
		return err
	}
	n.spanCancel = cancel
	out.SetVolume(n.volume)
	out.SetMuted(n.muted)
	if n.paused {
		_ = player.Pause()
	}
	n.current = sess
	n.mu.Unlock()

	if n.cfg.Recorder != nil {
		n.cfg.Recorder.SessionStarted()
	}
	n.setState(StateConnecting, nil)
	log.Info("requesting audio", "chars", len([]rune(text)))

	sink := &countingSink{
		Sink:    recordingSink{Sink: player, rec: n.cfg.Recorder},
		onFirst: func() { n.setState(StateGenerating, nil) },
	}

	srcErr := n.cfg.Source.Stream(ctx, text, sink)
	if srcErr == nil {
		// sources normally complete the sink themselves
		_ = player.Complete()
	}

	if err := n.interrupted(); err != nil {
		n.finish(sess, StateStopped)
		return err
	}
	if srcErr != nil {
		n.finish(sess, StateError)
		return fmt.Errorf("span %d: %w", index+1, srcErr)
	}

	outcome := <-player.Result()
	if outcome.Err != nil {
		if err := n.interrupted(); err != nil {
			n.finish(sess, StateStopped)
			return err
		}
		n.finish(sess, StateError)
		return fmt.Errorf("span %d: %w", index+1, outcome.Err)
	}

	if err := player.WaitForPlaybackEnd(ctx); err != nil {
		if err := n.interrupted(); err != nil {
			n.finish(sess, StateStopped)
			return err
		}
		n.finish(sess, StateError)
		return fmt.Errorf("span %d: wait for playback: %w", index+1, err)
	}

	n.mu.Lock()
	sess.bytes = outcome.TotalBytes
	n.sampleBytes = outcome.TotalBytes
	n.sampleChars = len([]rune(text))
	n.mu.Unlock()

	n.finish(sess, StateDone)
	log.Info("span finished", "bytes", outcome.TotalBytes,
		"first_audio", sess.firstAudio, "elapsed", time.Since(sess.Started))
	return nil
}

// streamConfig derives the per-session player config, chaining any
// callbacks the caller configured
func (n *Narrator) streamConfig(sess *Session, out output.Output) stream.Config {
	base := n.cfg.Stream
	cfg := base
	cfg.Output = out
	if cfg.Logger == nil {
		cfg.Logger = n.cfg.Logger
	}

	cfg.OnFirstAudio = func(fa stream.FirstAudio) {
		n.mu.Lock()
		sess.firstAudio = time.Since(sess.Started)
		sess.gotAudio = true
		latency := sess.firstAudio
		n.mu.Unlock()

		if n.cfg.Recorder != nil {
			n.cfg.Recorder.FirstAudio(latency)
		}
		n.setState(StatePlaying, nil)
		if base.OnFirstAudio != nil {
			base.OnFirstAudio(fa)
		}
	}
	cfg.OnBuffer = func(buf audio.Buffer) {
		if n.cfg.Recorder != nil {
			n.cfg.Recorder.BufferScheduled(buf.Duration())
		}
		if base.OnBuffer != nil {
			base.OnBuffer(buf)
		}
	}
	cfg.OnComplete = func(total int64) {
		n.mu.Lock()
		sess.bytes = total
		n.mu.Unlock()
		if base.OnComplete != nil {
			base.OnComplete(total)
		}
	}
	return cfg
}

// finish records the end of a session. It stays current for status display
// until the next span starts.
func (n *Narrator) finish(sess *Session, state State) {
	n.mu.Lock()
	sess.finished = time.Now()
	bytes := sess.bytes
	n.mu.Unlock()

	if n.cfg.Recorder != nil {
		n.cfg.Recorder.SessionFinished(state, bytes)
	}
}

// Pause suspends playback of the current span and any span that follows
func (n *Narrator) Pause() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return ErrNotPlaying
	}
	n.paused = true
	var player *stream.Player
	if n.current != nil {
		player = n.current.player
	}
	n.mu.Unlock()

	if player != nil {
		if err := player.Pause(); err != nil && !errors.Is(err, stream.ErrClosed) {
			return err
		}
	}
	n.setState(StatePaused, nil)
	return nil
}

// Resume restarts paused playback
func (n *Narrator) Resume() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return ErrNotPlaying
	}
	n.paused = false
	var player *stream.Player
	gotAudio := false
	if n.current != nil {
		player = n.current.player
		gotAudio = n.current.gotAudio
	}
	n.mu.Unlock()

	if player != nil {
		if err := player.Resume(); err != nil && !errors.Is(err, stream.ErrClosed) {
			return err
		}
	}
	if gotAudio {
		n.setState(StatePlaying, nil)
	} else {
		n.setState(StateConnecting, nil)
	}
	return nil
}

// TogglePause pauses when playing and resumes when paused
func (n *Narrator) TogglePause() error {
	if n.isPaused() {
		return n.Resume()
	}
	return n.Pause()
}

// Stop aborts the narration and discards unplayed audio. Stopping while
// idle is a no-op.
func (n *Narrator) Stop() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.stopRequested = true
	cancel := n.cancel
	var player *stream.Player
	if n.current != nil {
		player = n.current.player
	}
	n.mu.Unlock()

	var err error
	if player != nil {
		err = player.Stop()
	}
	if cancel != nil {
		cancel()
	}
	n.setState(StateStopped, nil)
	n.log.Info("narration stopped")
	return err
}

// Next abandons the current span and moves on to the following one
func (n *Narrator) Next() error {
	return n.skip(func(i int) int { return i + 1 })
}

// Previous abandons the current span and moves back to the one before it
func (n *Narrator) Previous() error {
	return n.skip(func(i int) int { return i - 1 })
}

// Seek abandons the current span and continues from span index
func (n *Narrator) Seek(index int) error {
	return n.skip(func(int) int { return index })
}

func (n *Narrator) skip(target func(current int) int) error {
	n.mu.Lock()
	if !n.running || n.stopRequested {
		n.mu.Unlock()
		return ErrNotPlaying
	}
	to := target(n.index)
	if to < 0 || to >= n.total {
		n.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrSpanRange, to+1, n.total)
	}
	n.skipTo = to
	cancel := n.spanCancel
	var player *stream.Player
	if n.current != nil {
		player = n.current.player
	}
	n.mu.Unlock()

	n.log.Info("moving to span", "span", to+1, "of", n.total)
	if player != nil {
		_ = player.Stop()
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// SetVolume sets the volume 0-100 for the current and future sessions
func (n *Narrator) SetVolume(volume int) {
	volume = max(0, min(100, volume))

	n.mu.Lock()
	n.volume = volume
	var out output.Output
	if n.current != nil {
		out = n.current.out
	}
	n.mu.Unlock()

	if out != nil {
		out.SetVolume(volume)
	}
	n.notify()
}

// SetMuted mutes or unmutes output
func (n *Narrator) SetMuted(muted bool) {
	n.mu.Lock()
	n.muted = muted
	var out output.Output
	if n.current != nil {
		out = n.current.out
	}
	n.mu.Unlock()

	if out != nil {
		out.SetMuted(muted)
	}
	n.notify()
}

// Status returns a snapshot of the narrator
func (n *Narrator) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.statusLocked()
}

// Estimate projects the audio size of totalChars from the last finished span
func (n *Narrator) Estimate(totalChars int) (Estimate, error) {
	n.mu.Lock()
	bytes, chars := n.sampleBytes, n.sampleChars
	n.mu.Unlock()
	return NewEstimate(bytes, chars, totalChars)
}

func (n *Narrator) statusLocked() Status {
	st := Status{
		State:  n.state,
		Volume: n.volume,
		Muted:  n.muted,
		Err:    n.lastErr,
	}
	if s := n.current; s != nil {
		st.SessionID = s.ID
		st.Index = s.Index
		st.Total = s.Total
		st.Text = s.Text
		st.FirstAudio = s.firstAudio
		st.Bytes = s.bytes
		if s.player != nil && s.bytes == 0 {
			st.Bytes = s.player.Stats().BytesReceived
		}
		end := s.finished
		if end.IsZero() {
			end = time.Now()
		}
		st.Elapsed = end.Sub(s.Started)
	}
	return st
}

func (n *Narrator) setState(state State, err error) {
	n.mu.Lock()
	// a stop wins over late transitions from the aborted session
	if n.state == StateStopped && state != StateStopped && n.stopRequested {
		n.mu.Unlock()
		return
	}
	if n.paused && state.Active() {
		state = StatePaused
	}
	n.state = state
	if err != nil {
		n.lastErr = err
	}
	st := n.statusLocked()
	n.mu.Unlock()

	n.log.Debug("state changed", "state", state)
	if cb := n.cfg.OnStateChange; cb != nil {
		cb(st)
	}
}

func (n *Narrator) notify() {
	if cb := n.cfg.OnStateChange; cb != nil {
		cb(n.Status())
	}
}

func (n *Narrator) stopping() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopRequested
}

// interrupted reports why the current span should end early, if it should
func (n *Narrator) interrupted() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.interruptedLocked()
}

func (n *Narrator) interruptedLocked() error {
	switch {
	case n.stopRequested:
		return ErrStopped
	case n.skipTo >= 0:
		return errSkipped
	}
	return nil
}

// takeSkip returns and clears the pending jump target
func (n *Narrator) takeSkip() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	to := n.skipTo
	n.skipTo = -1
	return to
}

func (n *Narrator) isPaused() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.paused
}

// recordingSink counts received bytes for the recorder
type recordingSink struct {
	stream.Sink
	rec Recorder
}

func (r recordingSink) AddChunk(chunk []byte) error {
	if r.rec != nil {
		r.rec.BytesReceived(len(chunk))
	}
	return r.Sink.AddChunk(chunk)
}
