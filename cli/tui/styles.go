// Package tui provides the Bubble Tea build view for the zigserve CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI uses the same data as non-TUI rendering
//   - No TUI-exclusive data allowed
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for the header line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// ProgressStyle for the live progress line.
	ProgressStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// SuccessStyle for a resolved success outcome.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// ErrorStyle for a resolved failure outcome.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	// SummaryStyle for the rendered diagnostics block.
	SummaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
