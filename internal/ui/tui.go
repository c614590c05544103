// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the group player
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a TUI model driven by ctrl
func NewModel(ctrl Controller) Model {
	m := Model{
		ctrl:     ctrl,
		interval: 200 * time.Millisecond,
	}
	m.refresh()
	return m
}

// Run creates the TUI program; the caller runs it
func Run(ctrl Controller) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
