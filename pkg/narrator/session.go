// ABOUTME: Per-span playback session and narrator state values
// ABOUTME: A session tracks one request from connect to end of playback
package narrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/narrator-go/pkg/audio/output"
	"github.com/harperreed/narrator-go/pkg/stream"
)

// State is the narrator lifecycle state
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateGenerating State = "generating"
	StatePlaying    State = "playing"
	StatePaused     State = "paused"
	StateDone       State = "done"
	StateStopped    State = "stopped"
	StateError      State = "error"
)

// Active reports whether a session is in flight
func (s State) Active() bool {
	switch s {
	case StateConnecting, StateGenerating, StatePlaying, StatePaused:
		return true
	}
	return false
}

// Session is one span played through its own player and output
type Session struct {
	ID      string
	Index   int
	Total   int
	Text    string
	Started time.Time

	firstAudio time.Duration
	gotAudio   bool
	bytes      int64
	finished   time.Time

	player *stream.Player
	out    output.Output
}

func newSession(index, total int, text string) *Session {
	return &Session{
		ID:      uuid.New().String(),
		Index:   index,
		Total:   total,
		Text:    text,
		Started: time.Now(),
	}
}

// Status is a snapshot of the narrator for display
type Status struct {
	State      State
	SessionID  string
	Index      int // zero-based span index
	Total      int
	Text       string
	FirstAudio time.Duration
	Bytes      int64
	Elapsed    time.Duration
	Volume     int
	Muted      bool
	Err        error
}

// Summary renders a one-line description of the status
func (s Status) Summary() string {
	switch s.State {
	case StateDone:
		return fmt.Sprintf("done (%.2fs to first audio, %.2fs total)",
			s.FirstAudio.Seconds(), s.Elapsed.Seconds())
	case StateError:
		if s.Err != nil {
			return fmt.Sprintf("error: %v", s.Err)
		}
	case StateIdle, StateStopped:
		return string(s.State)
	}
	if s.Total > 0 {
		return fmt.Sprintf("%s (span %d/%d)", s.State, s.Index+1, s.Total)
	}
	return string(s.State)
}

// countingSink forwards chunks to the player and reports the first one
type countingSink struct {
	stream.Sink
	onFirst func()
	seen    bool
}

func (c *countingSink) AddChunk(chunk []byte) error {
	if !c.seen && len(chunk) > 0 {
		c.seen = true
		c.onFirst()
	}
	return c.Sink.AddChunk(chunk)
}
