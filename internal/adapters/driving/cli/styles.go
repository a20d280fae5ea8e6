package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// Palette used for command output. Colours are dropped automatically when
// the output is not a terminal.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colourMuted).Width(12)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
)

// title renders a heading.
func title(s string) string {
	return titleStyle.Render(s)
}

// field renders a "label value" line.
func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// outcome colours a stage outcome.
func outcome(o domain.StageOutcome) string {
	switch o {
	case domain.OutcomeRan:
		return successStyle.Render(string(o))
	case domain.OutcomeNoOutput:
		return warningStyle.Render(string(o))
	case "":
		return mutedStyle.Render("-")
	default:
		return mutedStyle.Render(string(o))
	}
}

// status colours a job status.
func status(s domain.JobStatus) string {
	switch s {
	case domain.JobDone:
		return successStyle.Render(string(s))
	case domain.JobFailed:
		return errorStyle.Render(string(s))
	default:
		return warningStyle.Render(string(s))
	}
}

// yesNo renders a boolean.
func yesNo(b bool) string {
	if b {
		return successStyle.Render("yes")
	}
	return mutedStyle.Render("no")
}
