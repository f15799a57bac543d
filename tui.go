package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dictate-mode TUI messages
type RecordingStartMsg struct{}
type RecordingTickMsg struct{ Elapsed time.Duration }
type AudioLevelMsg struct{ Level float64 }
type NoVoiceWarningMsg struct{ Warned bool }
type StatusMsg struct{ Text string }
type NoteMsg struct {
	Text     string
	Path     string
	NoSpeech bool
}
type tickMsg time.Time

var (
	dictateProgram *tea.Program
	dictateMu      sync.Mutex
)

func dictateSend(msg tea.Msg) {
	dictateMu.Lock()
	p := dictateProgram
	dictateMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type dictateState int

const (
	dictateIdle dictateState = iota
	dictateRecording
	dictateWorking
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	meterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

type dictateModel struct {
	state    dictateState
	frame    int
	elapsed  time.Duration
	level    float64
	peak     float64
	noVoice  bool
	status   string
	lastNote string
	lastPath string
	modeLine string
	width    int
}

func newDictateModel(modeLine string) dictateModel {
	return dictateModel{status: "Press Ctrl+Shift+Space or 'r' to record", modeLine: modeLine}
}

func dictateTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m dictateModel) Init() tea.Cmd {
	return dictateTick()
}

func (m dictateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", " ":
			select {
			case keyToggleChan <- struct{}{}:
			default:
			}
		}

	case tickMsg:
		m.frame++
		return m, dictateTick()

	case RecordingStartMsg:
		m.state = dictateRecording
		m.elapsed = 0
		m.level = 0
		m.peak = 0
		m.noVoice = false
		m.status = "Recording... press again to stop"

	case RecordingTickMsg:
		m.elapsed = msg.Elapsed

	case AudioLevelMsg:
		m.level = msg.Level
		if msg.Level > m.peak {
			m.peak = msg.Level
		}

	case NoVoiceWarningMsg:
		m.noVoice = msg.Warned

	case StatusMsg:
		if m.state == dictateRecording {
			m.state = dictateWorking
		}
		m.status = msg.Text

	case NoteMsg:
		m.state = dictateIdle
		m.noVoice = false
		if msg.NoSpeech {
			m.status = "No speech detected"
		} else {
			m.lastNote = msg.Text
			m.lastPath = msg.Path
			m.status = "Copied to clipboard"
		}
	}
	return m, nil
}

func levelMeter(level float64, width int) string {
	filled := int(level * 3 * float64(width))
	if filled > width {
		filled = width
	}
	return meterStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m dictateModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("quill dictate"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.modeLine))
	b.WriteString("\n\n")

	switch m.state {
	case dictateRecording:
		sec := int(m.elapsed.Seconds())
		b.WriteString(recStyle.Render(fmtRec(sec)))
		b.WriteString("  ")
		b.WriteString(levelMeter(m.level, 30))
		b.WriteString("\n")
		if m.noVoice {
			b.WriteString(warnStyle.Render("  no voice detected, check the microphone"))
			b.WriteString("\n")
		}
	case dictateWorking:
		b.WriteString(spinnerFrames[m.frame%len(spinnerFrames)])
		b.WriteString(" ")
	}

	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")

	if m.lastNote != "" {
		b.WriteString("\n")
		b.WriteString(noteStyle.Render(truncateNote(m.lastNote, 6)))
		b.WriteString("\n")
		if m.lastPath != "" {
			b.WriteString(dimStyle.Render("saved: " + m.lastPath))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r/space: record  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func fmtRec(sec int) string {
	return fmt.Sprintf("● REC %02d:%02d", sec/60, sec%60)
}

// truncateNote keeps the first n lines of a note for display.
func truncateNote(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[:n], "\n") + "\n" + dimStyle.Render("...")
}
