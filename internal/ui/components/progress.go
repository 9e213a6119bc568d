package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursekit/internal/ui/theme"
)

// ProgressBar displays a horizontal course progress bar.
type ProgressBar struct {
	Label   string
	Current int
	Max     int
	Width   int
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(label string, current, maximum, width int) ProgressBar {
	return ProgressBar{
		Label:   label,
		Current: current,
		Max:     maximum,
		Width:   width,
	}
}

// Fraction returns progress in [0, 1]. A course with nothing to count is
// complete.
func (p ProgressBar) Fraction() float64 {
	if p.Max <= 0 {
		return 1
	}
	f := float64(p.Current) / float64(p.Max)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		result += theme.Body.Render(p.Label) + "  "
	}

	counter := fmt.Sprintf("  %d/%d", p.Current, p.Max)
	barWidth := p.Width - lipgloss.Width(result) - len(counter)
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * p.Fraction())
	empty := barWidth - filled

	result += theme.ProgressFilled.Render(strings.Repeat(" ", filled))
	result += theme.ProgressEmpty.Render(strings.Repeat(" ", empty))
	result += theme.Subtitle.Render(counter)
	return result
}
