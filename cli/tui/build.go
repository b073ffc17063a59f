package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg carries one progress line from the running session.
type ProgressMsg string

// DoneMsg resolves the view: Summary is the pre-rendered outcome text and
// Failed selects the outcome styling.
type DoneMsg struct {
	Summary string
	Failed  bool
}

// BuildModel is the Bubble Tea model for a live build session.
type BuildModel struct {
	zigPath  string
	spinner  spinner.Model
	progress string
	done     bool
	failed   bool
	summary  string
	quitting bool
	width    int
}

// NewBuildModel creates a build view for the given compiler path.
func NewBuildModel(zigPath string) BuildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ProgressStyle
	return BuildModel{
		zigPath: zigPath,
		spinner: s,
	}
}

// Init implements tea.Model.
func (m BuildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m BuildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case ProgressMsg:
		m.progress = string(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.failed = msg.Failed
		m.summary = msg.Summary
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m BuildModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("zigserve " + m.zigPath))
	b.WriteString("\n")

	if !m.done {
		b.WriteString(m.spinner.View())
		if m.progress != "" {
			b.WriteString(" ")
			b.WriteString(ProgressStyle.Render(m.progress))
		}
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("Press q or Ctrl+C to detach"))
		return b.String()
	}

	if m.failed {
		b.WriteString(ErrorStyle.Render("build failed"))
	} else {
		b.WriteString(SuccessStyle.Render("build succeeded"))
	}
	b.WriteString("\n")
	if m.summary != "" {
		b.WriteString(SummaryStyle.Render(strings.TrimRight(m.summary, "\n")))
		b.WriteString("\n")
	}

	return b.String()
}

// Detached reports whether the user quit before the session resolved.
func (m BuildModel) Detached() bool {
	return m.quitting
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewBuildProgram wraps the model in a program without the alternate
// screen, so the resolved summary stays in the scrollback.
func NewBuildProgram(model BuildModel) *tea.Program {
	return tea.NewProgram(model)
}
