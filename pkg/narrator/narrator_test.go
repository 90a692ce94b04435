// ABOUTME: Tests for span narration
// ABOUTME: Uses fake sources and real-time virtual outputs
package narrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/output"
	"github.com/harperreed/narrator-go/pkg/audio/wav"
	"github.com/harperreed/narrator-go/pkg/stream"
)

const (
	testRate   = 8000
	testFrames = 800 // 100ms
)

// wavSource streams a short mono WAV per request
type wavSource struct {
	mu     sync.Mutex
	texts  []string
	chunk  int
	frames int
}

func (s *wavSource) Stream(ctx context.Context, text string, sink stream.Sink) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	data := wav.EncodeHeader(audio.Format{Codec: "pcm", SampleRate: testRate, Channels: 1, BitDepth: 16}, wav.StreamingDataSize)
	frames := s.frames
	if frames <= 0 {
		frames = testFrames
	}
	data = append(data, make([]byte, frames*2)...)

	chunk := s.chunk
	if chunk <= 0 {
		chunk = 100
	}
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(chunk, len(data))
		if err := sink.AddChunk(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return sink.Complete()
}

func (s *wavSource) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type outputs struct {
	mu   sync.Mutex
	list []*output.Virtual
}

func (o *outputs) create() (output.Output, error) {
	v := output.NewVirtual(output.VirtualOptions{Realtime: true})
	o.mu.Lock()
	o.list = append(o.list, v)
	o.mu.Unlock()
	return v, nil
}

func (o *outputs) all() []*output.Virtual {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*output.Virtual(nil), o.list...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	finished map[State]int
	first    int
	buffers  int
	bytes    int
}

func (r *fakeRecorder) SessionStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) SessionFinished(state State, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = make(map[State]int)
	}
	r.finished[state]++
}

func (r *fakeRecorder) FirstAudio(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.first++
}

func (r *fakeRecorder) BufferScheduled(float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers++
}

func (r *fakeRecorder) BytesReceived(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes += n
}

func newTestNarrator(t *testing.T, src Source, cfg Config) (*Narrator, *outputs) {
	t.Helper()

	outs := &outputs{}
	cfg.Source = src
	cfg.NewOutput = outs.create
	cfg.Stream.MinBufferBytes = 256
	cfg.Stream.PollInterval = 5 * time.Millisecond
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create narrator: %v", err)
	}
	return n, outs
}

func speak(t *testing.T, n *Narrator, spans []string) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return n.Speak(ctx, spans)
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without a source")
	}
}

func TestSpeakPlaysSpansInOrder(t *testing.T) {
	src := &wavSource{}
	rec := &fakeRecorder{}
	n, outs := newTestNarrator(t, src, Config{Recorder: rec})

	spans := []string{"first span", "second span", "third"}
	if err := speak(t, n, spans); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	got := src.requested()
	if len(got) != len(spans) {
		t.Fatalf("expected %d requests, got %d", len(spans), len(got))
	}
	for i := range spans {
		if got[i] != spans[i] {
			t.Errorf("request %d: expected %q, got %q", i, spans[i], got[i])
		}
	}

	for i, v := range outs.all() {
		if !v.Closed() {
			t.Errorf("output %d was not closed", i)
		}
		if v.Pending() != 0 {
			t.Errorf("output %d still has %d pending frames", i, v.Pending())
		}
	}

	st := n.Status()
	if st.State != StateDone {
		t.Errorf("expected state done, got %s", st.State)
	}
	if st.Index != 2 || st.Total != 3 {
		t.Errorf("expected last span 3/3, got %d/%d", st.Index+1, st.Total)
	}
	if st.Bytes != int64(wav.HeaderSize+testFrames*2) {
		t.Errorf("expected %d bytes, got %d", wav.HeaderSize+testFrames*2, st.Bytes)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.started != 3 || rec.finished[StateDone] != 3 || rec.first != 3 {
		t.Errorf("unexpected recorder counts: started=%d done=%d first=%d",
			rec.started, rec.finished[StateDone], rec.first)
	}
	if rec.bytes != 3*(wav.HeaderSize+testFrames*2) {
		t.Errorf("expected %d bytes recorded, got %d", 3*(wav.HeaderSize+testFrames*2), rec.bytes)
	}
	if rec.buffers == 0 {
		t.Error("expected scheduled buffers to be recorded")
	}
}

func TestSpeakReportsStates(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[State]bool)

	n, _ := newTestNarrator(t, &wavSource{}, Config{
		OnStateChange: func(st Status) {
			mu.Lock()
			seen[st.State] = true
			mu.Unlock()
		},
	})

	if err := speak(t, n, []string{"hello"}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, want := range []State{StateConnecting, StateGenerating, StatePlaying, StateDone} {
		if !seen[want] {
			t.Errorf("state %s was never reported", want)
		}
	}
}

func TestSpeakSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	var reported error

	src := SourceFunc(func(ctx context.Context, text string, sink stream.Sink) error {
		return boom
	})
	n, outs := newTestNarrator(t, src, Config{OnError: func(err error) { reported = err }})

	err := speak(t, n, []string{"a", "b"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if !errors.Is(reported, boom) {
		t.Errorf("expected OnError with source error, got %v", reported)
	}
	if len(outs.all()) != 1 {
		t.Errorf("expected narration to stop after the first span, got %d outputs", len(outs.all()))
	}

	st := n.Status()
	if st.State != StateError {
		t.Errorf("expected state error, got %s", st.State)
	}
	if !errors.Is(st.Err, boom) {
		t.Errorf("expected status error, got %v", st.Err)
	}
}

func TestSpeakMalformedStream(t *testing.T) {
	src := SourceFunc(func(ctx context.Context, text string, sink stream.Sink) error {
		bad := make([]byte, 64)
		copy(bad, "JUNKJUNKJUNK")
		if err := sink.AddChunk(bad); err != nil {
			return err
		}
		return sink.Complete()
	})
	n, _ := newTestNarrator(t, src, Config{})

	err := speak(t, n, []string{"hello"})
	if !errors.Is(err, stream.ErrMalformedContainer) {
		t.Fatalf("expected malformed container error, got %v", err)
	}
}

func TestSpeakBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	src := SourceFunc(func(ctx context.Context, text string, sink stream.Sink) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		return sink.Complete()
	})
	n, _ := newTestNarrator(t, src, Config{})

	done := make(chan error, 1)
	go func() { done <- speak(t, n, []string{"one"}) }()
	<-started

	if err := n.Speak(context.Background(), []string{"two"}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first narration failed: %v", err)
	}
}

func TestStopAbortsNarration(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	var calls int
	var mu sync.Mutex

	src := SourceFunc(func(ctx context.Context, text string, sink stream.Sink) error {
		mu.Lock()
		calls++
		mu.Unlock()

		hdr := wav.EncodeHeader(audio.Format{Codec: "pcm", SampleRate: testRate, Channels: 1, BitDepth: 16}, wav.StreamingDataSize)
		if err := sink.AddChunk(hdr); err != nil {
			return err
		}
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})
	n, outs := newTestNarrator(t, src, Config{})

	done := make(chan error, 1)
	go func() { done <- speak(t, n, []string{"one", "two"}) }()
	<-started

	if err := n.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("speak did not return after stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected one request, got %d", calls)
	}
	if n.Status().State != StateStopped {
		t.Errorf("expected state stopped, got %s", n.Status().State)
	}
	for _, v := range outs.all() {
		if !v.Closed() {
			t.Error("output not closed after stop")
		}
	}
}

func TestStopWhenIdle(t *testing.T) {
	n, _ := newTestNarrator(t, &wavSource{}, Config{})
	if err := n.Stop(); err != nil {
		t.Errorf("expected nil stopping an idle narrator, got %v", err)
	}
	if n.Status().State != StateIdle {
		t.Errorf("expected idle, got %s", n.Status().State)
	}
}

func TestControlsWhenIdle(t *testing.T) {
	n, _ := newTestNarrator(t, &wavSource{}, Config{})

	if err := n.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("pause: expected ErrNotPlaying, got %v", err)
	}
	if err := n.Resume(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("resume: expected ErrNotPlaying, got %v", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	playing := make(chan struct{})
	var once sync.Once

	n, _ := newTestNarrator(t, &wavSource{frames: testRate}, Config{
		OnStateChange: func(st Status) {
			if st.State == StatePlaying {
				once.Do(func() { close(playing) })
			}
		},
	})

	done := make(chan error, 1)
	go func() { done <- speak(t, n, []string{"hello"}) }()

	select {
	case <-playing:
	case err := <-done:
		t.Fatalf("speak returned before playing: %v", err)
	}

	if err := n.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if st := n.Status(); st.State != StatePaused {
		t.Errorf("expected paused, got %s", st.State)
	}

	select {
	case err := <-done:
		t.Fatalf("speak returned while paused: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := n.TogglePause(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("speak failed: %v", err)
	}
}

func TestVolumeAppliesToOutput(t *testing.T) {
	n, outs := newTestNarrator(t, &wavSource{}, Config{Volume: 40})
	n.SetMuted(true)
	n.SetVolume(150)

	if st := n.Status(); st.Volume != 100 || !st.Muted {
		t.Errorf("expected volume 100 muted, got %d muted=%v", st.Volume, st.Muted)
	}

	if err := speak(t, n, []string{"quiet"}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if len(outs.all()) != 1 {
		t.Fatalf("expected one output, got %d", len(outs.all()))
	}
	if vol, muted := outs.all()[0].Volume(); vol != 100 || !muted {
		t.Errorf("expected output volume 100 muted, got %d muted=%v", vol, muted)
	}
}

func TestEstimateAfterSpan(t *testing.T) {
	n, _ := newTestNarrator(t, &wavSource{}, Config{})

	if _, err := n.Estimate(100); !errors.Is(err, ErrNoSample) {
		t.Errorf("expected ErrNoSample before playback, got %v", err)
	}

	if err := speak(t, n, []string{"hello"}); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	est, err := n.Estimate(10)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	want := int64(2 * (wav.HeaderSize + testFrames*2))
	if est.Bytes != want {
		t.Errorf("expected %d bytes, got %d", want, est.Bytes)
	}
}

func TestSpeakFromAndSpeakSpan(t *testing.T) {
	spans := []string{"zero", "one", "two", "three"}

	tests := []struct {
		name      string
		run       func(n *Narrator, ctx context.Context) error
		requested []string
		first     int
		lastIndex int
	}{
		{
			name:      "from middle",
			run:       func(n *Narrator, ctx context.Context) error { return n.SpeakFrom(ctx, spans, 2) },
			requested: []string{"two", "three"},
			first:     2,
			lastIndex: 3,
		},
		{
			name:      "single span",
			run:       func(n *Narrator, ctx context.Context) error { return n.SpeakSpan(ctx, spans, 1) },
			requested: []string{"one"},
			first:     1,
			lastIndex: 1,
		},
		{
			name:      "last span only",
			run:       func(n *Narrator, ctx context.Context) error { return n.SpeakSpan(ctx, spans, 3) },
			requested: []string{"three"},
			first:     3,
			lastIndex: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &wavSource{}
			var mu sync.Mutex
			var indexes []int
			n, _ := newTestNarrator(t, src, Config{
				OnStateChange: func(st Status) {
					if st.State == StateConnecting {
						mu.Lock()
						indexes = append(indexes, st.Index)
						mu.Unlock()
					}
				},
			})

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tt.run(n, ctx); err != nil {
				t.Fatalf("speak failed: %v", err)
			}

			got := src.requested()
			if len(got) != len(tt.requested) {
				t.Fatalf("expected requests %v, got %v", tt.requested, got)
			}
			for i := range got {
				if got[i] != tt.requested[i] {
					t.Errorf("request %d: expected %q, got %q", i, tt.requested[i], got[i])
				}
			}

			st := n.Status()
			if st.Index != tt.lastIndex || st.Total != len(spans) {
				t.Errorf("expected span %d/%d, got %d/%d", tt.lastIndex+1, len(spans), st.Index+1, st.Total)
			}
			if st.State != StateDone {
				t.Errorf("expected done, got %s", st.State)
			}

			mu.Lock()
			defer mu.Unlock()
			if len(indexes) == 0 || indexes[0] != tt.first {
				t.Errorf("expected first reported index %d, got %v", tt.first, indexes)
			}
		})
	}
}

func TestSpeakFromOutOfRange(t *testing.T) {
	src := &wavSource{}
	n, _ := newTestNarrator(t, src, Config{})

	for _, start := range []int{-1, 2, 5} {
		if err := n.SpeakFrom(context.Background(), []string{"a", "b"}, start); !errors.Is(err, ErrSpanRange) {
			t.Errorf("start %d: expected ErrSpanRange, got %v", start, err)
		}
	}
	if len(src.requested()) != 0 {
		t.Error("no span should have been requested")
	}
	if n.Status().State != StateIdle {
		t.Errorf("expected idle, got %s", n.Status().State)
	}
}

// holdSource blocks on the named span until its context ends
type holdSource struct {
	wavSource
	hold    string
	holding chan struct{}
	once    sync.Once
}

func (s *holdSource) Stream(ctx context.Context, text string, sink stream.Sink) error {
	if text != s.hold {
		return s.wavSource.Stream(ctx, text, sink)
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	s.once.Do(func() { close(s.holding) })
	<-ctx.Done()
	return ctx.Err()
}

func TestNextAndPrevious(t *testing.T) {
	spans := []string{"zero", "one", "two"}

	tests := []struct {
		name      string
		single    bool
		start     int
		move      func(n *Narrator) error
		requested []string
	}{
		{name: "next continues", start: 0, move: (*Narrator).Next, requested: []string{"zero", "one", "two"}},
		{name: "seek skips ahead", start: 0, move: func(n *Narrator) error { return n.Seek(2) }, requested: []string{"zero", "two"}},
		{name: "previous in single mode", single: true, start: 1, move: (*Narrator).Previous, requested: []string{"one", "zero"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &holdSource{hold: spans[tt.start], holding: make(chan struct{})}
			n, _ := newTestNarrator(t, src, Config{})

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				if tt.single {
					done <- n.SpeakSpan(ctx, spans, tt.start)
					return
				}
				done <- n.SpeakFrom(ctx, spans, tt.start)
			}()
			<-src.holding

			if err := tt.move(n); err != nil {
				t.Fatalf("move failed: %v", err)
			}
			if err := <-done; err != nil {
				t.Fatalf("speak failed: %v", err)
			}

			got := src.requested()
			if len(got) != len(tt.requested) {
				t.Fatalf("expected requests %v, got %v", tt.requested, got)
			}
			for i := range got {
				if got[i] != tt.requested[i] {
					t.Errorf("request %d: expected %q, got %q", i, tt.requested[i], got[i])
				}
			}
			if st := n.Status(); st.State != StateDone {
				t.Errorf("expected done, got %s", st.State)
			}
		})
	}
}

func TestNavigationBounds(t *testing.T) {
	n, _ := newTestNarrator(t, &wavSource{}, Config{})
	if err := n.Next(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("next while idle: expected ErrNotPlaying, got %v", err)
	}

	src := &holdSource{hold: "zero", holding: make(chan struct{})}
	n, _ = newTestNarrator(t, src, Config{})

	done := make(chan error, 1)
	go func() { done <- speak(t, n, []string{"zero", "one"}) }()
	<-src.holding

	if err := n.Previous(); !errors.Is(err, ErrSpanRange) {
		t.Errorf("previous from first span: expected ErrSpanRange, got %v", err)
	}
	if err := n.Seek(2); !errors.Is(err, ErrSpanRange) {
		t.Errorf("seek past end: expected ErrSpanRange, got %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := <-done; !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
