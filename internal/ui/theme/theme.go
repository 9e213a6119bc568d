package theme

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/gating"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// States
var (
	Above = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	At = lipgloss.NewStyle().
		Foreground(Secondary)

	Below = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	Unknown = lipgloss.NewStyle().
		Foreground(TextDim)

	Fatal = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	Problem = lipgloss.NewStyle().
		Foreground(Error)

	Caution = lipgloss.NewStyle().
		Foreground(Warning)

	OK = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)
)

// Components
var (
	ProgressFilled = lipgloss.NewStyle().
			Background(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Background(Border)
)

// Level returns the style for an assessment level.
func Level(l assessment.Level) lipgloss.Style {
	switch l {
	case assessment.LevelAboveExpectation:
		return Above
	case assessment.LevelAtExpectation:
		return At
	case assessment.LevelBelowExpectation:
		return Below
	default:
		return Unknown
	}
}

// Severity returns the style for a gating issue severity.
func Severity(s gating.Severity) lipgloss.Style {
	switch s {
	case gating.SeverityFatal:
		return Fatal
	case gating.SeverityError:
		return Problem
	default:
		return Caution
	}
}
