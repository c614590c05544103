// ABOUTME: Bubbletea model for the group player TUI
// ABOUTME: Shows each source of the group and maps keys to group and source controls
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/internal/version"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
	"github.com/Resonate-Protocol/syncsource-go/pkg/groupsync"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

const (
	seekStep   = 5 * time.Second
	volumeStep = 5
)

// State is what the TUI shows
type State struct {
	Group       string
	Status      audio.Status
	Sources     []groupsync.MemberState
	Device      string
	SampleRate  int
	Rendered    time.Duration
	ControlPort int
	Controllers int
}

// Controller performs the actions behind the keys
type Controller interface {
	Play() error
	Pause() error
	Stop() error
	Seek(offset time.Duration) error
	SetVolume(id uuid.UUID, volume float32) error
	SetLowPass(id uuid.UUID, on bool) error
	State() State
}

// tickMsg refreshes the state
type tickMsg time.Time

// resultMsg carries the outcome of an action
type resultMsg struct {
	action string
	err    error
}

// Model represents the TUI state
type Model struct {
	ctrl     Controller
	interval time.Duration

	state    State
	selected int
	lastErr  string

	showDebug bool

	width  int
	height int
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, m.tick()
	case resultMsg:
		m.lastErr = ""
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		}
		m.refresh()
	}

	return m, nil
}

func (m *Model) refresh() {
	if m.ctrl == nil {
		return
	}
	m.state = m.ctrl.State()
	if m.selected >= len(m.state.Sources) {
		m.selected = 0
	}
}

// run wraps a blocking action; group changes can wait on slow sources
func (m Model) run(action string, fn func() error) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		return resultMsg{action: action, err: fn()}
	}
}

func (m Model) current() (groupsync.MemberState, bool) {
	if m.selected < 0 || m.selected >= len(m.state.Sources) {
		return groupsync.MemberState{}, false
	}
	return m.state.Sources[m.selected], true
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case " ":
		if m.state.Status == audio.StatusPlaying {
			return m, m.run("pause", func() error { return m.ctrl.Pause() })
		}
		return m, m.run("play", func() error { return m.ctrl.Play() })

	case "s":
		return m, m.run("stop", func() error { return m.ctrl.Stop() })

	case "left", "right":
		src, ok := m.current()
		if !ok {
			return m, nil
		}
		target := src.Offset + seekStep
		if msg.String() == "left" {
			target = max(src.Offset-seekStep, 0)
		}
		return m, m.run("seek", func() error { return m.ctrl.Seek(target) })

	case "up", "down":
		src, ok := m.current()
		if !ok {
			return m, nil
		}
		volume := src.Volume + volumeStep
		if msg.String() == "down" {
			volume = src.Volume - volumeStep
		}
		volume = min(max(volume, 0), 100)
		return m, m.run("volume", func() error { return m.ctrl.SetVolume(src.ID, volume) })

	case "tab":
		if n := len(m.state.Sources); n > 0 {
			m.selected = (m.selected + 1) % n
		}

	case "f":
		src, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.run("filter", func() error { return m.ctrl.SetLowPass(src.ID, !src.Filtered) })

	case "d":
		m.showDebug = !m.showDebug
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
	b.WriteString(m.renderSources())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	if m.lastErr != "" {
		fmt.Fprintf(&b, "│ Error: %-45s │\n", truncate(m.lastErr, 45))
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	control := "off"
	if m.state.ControlPort != 0 {
		control = fmt.Sprintf(":%d (%d connected)", m.state.ControlPort, m.state.Controllers)
	}

	return fmt.Sprintf(`┌─ %-51s┐
│ Group:   %-43s │
│ Status:  %-43s │
│ Control: %-43s │
├──────────────────────────────────────────────────────┤
`, version.String()+" ", truncate(m.state.Group, 43), statusIcon(m.state.Status)+" "+m.state.Status.String(), control)
}

func (m Model) renderSources() string {
	if len(m.state.Sources) == 0 {
		return "│ No sources                                           │\n"
	}

	var b strings.Builder
	for i, src := range m.state.Sources {
		marker := " "
		if i == m.selected {
			marker = "▶"
		}
		lp := "  "
		if src.Filtered {
			lp = "LP"
		}
		fmt.Fprintf(&b, "│%s %-20s %s %-8s %8s %s │\n",
			marker,
			truncate(src.Name, 20),
			statusIcon(src.Status),
			src.Status,
			formatOffset(src.Offset),
			lp)
		fmt.Fprintf(&b, "│    Vol [%s] %3.0f%%  Pitch %.2f%-16s │\n",
			renderBar(int(src.Volume), 100, 10), src.Volume, src.Pitch, "")
	}
	return b.String()
}

func (m Model) renderDebug() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ DEBUG: %-6s %6dHz  rendered %-20s │
`, m.state.Device, m.state.SampleRate, formatOffset(m.state.Rendered))
}

func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ space:Play/Pause s:Stop ←/→:Seek ↑/↓:Vol tab:Select  │
│ f:Low-pass d:Debug q:Quit                            │
└──────────────────────────────────────────────────────┘
`
}

func statusIcon(s audio.Status) string {
	switch s {
	case audio.StatusPlaying:
		return "▶"
	case audio.StatusPaused:
		return "⏸"
	}
	return "■"
}

func formatOffset(d time.Duration) string {
	d = d.Truncate(100 * time.Millisecond)
	minutes := int(d / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%d:%04.1f", minutes, seconds)
}

func renderBar(value, limit, width int) string {
	filled := min(max(value, 0), limit) * width / limit
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
