// ABOUTME: TUI program construction
// ABOUTME: Wraps bubbletea and adapts narrator callbacks into messages
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/narrator-go/pkg/narrator"
)

// Program is a running narration TUI
type Program struct {
	*tea.Program
}

// New creates the TUI program in the alternate screen
func New(ctrl Controls, volume int, opts ...tea.ProgramOption) *Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Program{Program: tea.NewProgram(NewModel(ctrl, volume), opts...)}
}

// OnStateChange forwards narrator status to the TUI
func (p *Program) OnStateChange(st narrator.Status) {
	p.Send(StatusMsg{Status: st})
}

// Done tells the TUI narration returned
func (p *Program) Done(err error) {
	p.Send(DoneMsg{Err: err})
}

// Estimate shows a document size estimate
func (p *Program) Estimate(text string) {
	p.Send(EstimateMsg{Text: text})
}
