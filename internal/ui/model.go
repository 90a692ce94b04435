// ABOUTME: Bubbletea model for the narration TUI
// ABOUTME: Renders session status and maps keys to transport controls
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/narrator-go/pkg/narrator"
)

const (
	boxWidth   = 54
	volumeStep = 5
)

// Controls is the narrator surface the TUI drives
type Controls interface {
	TogglePause() error
	Stop() error
	Next() error
	Previous() error
	SetVolume(volume int)
	SetMuted(muted bool)
}

// Model represents the TUI state
type Model struct {
	ctrl Controls

	status   narrator.Status
	estimate string
	lastErr  error
	finished bool

	// volume mirrors what was last sent so repeated keys accumulate
	volume int
	muted  bool

	showDebug bool

	width  int
	height int
}

// StatusMsg carries a narrator status snapshot
type StatusMsg struct {
	Status narrator.Status
}

// EstimateMsg carries a formatted document size estimate
type EstimateMsg struct {
	Text string
}

// DoneMsg reports that narration returned
type DoneMsg struct {
	Err error
}

// errMsg reports a failed control action
type errMsg struct {
	err error
}

// NewModel creates a TUI model
func NewModel(ctrl Controls, volume int) Model {
	return Model{
		ctrl:   ctrl,
		status: narrator.Status{State: narrator.StateIdle, Volume: volume},
		volume: volume,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = msg.Status
		m.volume = msg.Status.Volume
		m.muted = msg.Status.Muted
	case EstimateMsg:
		m.estimate = msg.Text
	case DoneMsg:
		m.finished = true
		m.lastErr = msg.Err
	case errMsg:
		m.lastErr = msg.err
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSpan())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func line(format string, args ...any) string {
	text := fmt.Sprintf(format, args...)
	return fmt.Sprintf("│ %-*s │\n", boxWidth-4, truncate(text, boxWidth-4))
}

// renderHeader renders state and progress
func (m Model) renderHeader() string {
	title := "┌─ Narrator " + strings.Repeat("─", boxWidth-13) + "┐\n"

	progress := "no spans"
	if m.status.Total > 0 {
		progress = fmt.Sprintf("span %d of %d", m.status.Index+1, m.status.Total)
	}

	return title +
		line("Status: %s", stateLabel(m.status.State)) +
		line("Progress: %s", progress) +
		"├" + strings.Repeat("─", boxWidth-2) + "┤\n"
}

// renderSpan renders the text being spoken
func (m Model) renderSpan() string {
	if m.status.Text == "" {
		return line("(nothing playing)")
	}
	return line("Now reading:") + line("  %s", m.status.Text)
}

// renderControls renders volume
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}
	return line("") + line("Volume: [%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)
}

// renderStats renders timing and size measurements
func (m Model) renderStats() string {
	s := "├" + strings.Repeat("─", boxWidth-2) + "┤\n"
	s += line("First audio: %s  Received: %s", formatLatency(m.status.FirstAudio), formatBytes(m.status.Bytes))
	s += line("Elapsed: %.1fs", m.status.Elapsed.Seconds())
	if m.estimate != "" {
		s += line("Document estimate: %s", m.estimate)
	}
	if m.lastErr != nil {
		s += line("Error: %v", m.lastErr)
	} else if m.finished {
		s += line("%s", m.status.Summary())
	}
	return s
}

// renderDebug renders session identifiers
func (m Model) renderDebug() string {
	return line("DEBUG:") +
		line("  Session: %s", m.status.SessionID) +
		line("  Window: %dx%d", m.width, m.height)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return line("space:Pause  n:Next  p:Previous  s:Stop  q:Quit") +
		line("↑/↓:Volume  m:Mute  d:Debug") +
		"└" + strings.Repeat("─", boxWidth-2) + "┘\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Sequence(m.do(Controls.Stop), tea.Quit)
	case " ":
		return m, m.do(Controls.TogglePause)
	case "n", "right":
		return m, m.do(Controls.Next)
	case "p", "left":
		return m, m.do(Controls.Previous)
	case "s":
		return m, m.do(Controls.Stop)
	case "up":
		m.volume = min(100, m.volume+volumeStep)
		return m, m.setVolume(m.volume)
	case "down":
		m.volume = max(0, m.volume-volumeStep)
		return m, m.setVolume(m.volume)
	case "m":
		m.muted = !m.muted
		muted := m.muted
		ctrl := m.ctrl
		return m, func() tea.Msg {
			if ctrl != nil {
				ctrl.SetMuted(muted)
			}
			return nil
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// do runs a control action off the UI goroutine
func (m Model) do(action func(Controls) error) tea.Cmd {
	ctrl := m.ctrl
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		if err := action(ctrl); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m Model) setVolume(volume int) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl != nil {
			ctrl.SetVolume(volume)
		}
		return nil
	}
}

func stateLabel(s narrator.State) string {
	switch s {
	case narrator.StatePlaying:
		return "▶ playing"
	case narrator.StatePaused:
		return "⏸ paused"
	case narrator.StateConnecting, narrator.StateGenerating:
		return "… " + string(s)
	case narrator.StateError:
		return "✗ error"
	case narrator.StateDone:
		return "✓ done"
	}
	return string(s)
}

func formatLatency(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}
