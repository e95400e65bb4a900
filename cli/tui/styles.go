// Package tui provides Bubble Tea views for the patchreview CLI.
//
// TUI mode is opt-in (--tui) and read-only: it browses the same data the
// plain renderers print and never drives a review.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles shared by the views and the colored table summary.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// SuccessStyle for committed chunks and added lines.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for skipped chunks.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for failed chunks and removed lines.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HunkStyle for "@@" hunk headers.
	HunkStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// PlainStyle leaves text unstyled.
	PlainStyle = lipgloss.NewStyle()
)

// StateStyle returns the style for a chunk state or outcome.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "committed":
		return SuccessStyle
	case "skipped", "previewed", "decided", "reconstructed":
		return WarningStyle
	case "failed", "split":
		return ErrorStyle
	default:
		return PlainStyle
	}
}

// DiffLine colors one line of unified diff text.
func DiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
		return TitleStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return HunkStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return SuccessStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return ErrorStyle.Render(line)
	default:
		return line
	}
}
