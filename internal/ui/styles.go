package ui

import (
	"github.com/nconklindev/oct/internal/types"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent   = lipgloss.Color("#3FA7D6")
	colorAccentLo = lipgloss.Color("#7CC6E8")
	colorMuted    = lipgloss.Color("#6B7280")
	colorText     = lipgloss.Color("#FFFFFF")
	colorSuccess  = lipgloss.Color("#2ECC71")
	colorWarning  = lipgloss.Color("#E59400")
	colorError    = lipgloss.Color("#FF4757")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginTop(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginBottom(1)

	StepStyle = lipgloss.NewStyle().
			Foreground(colorAccentLo).
			Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(colorText)

	ValueStyle = lipgloss.NewStyle().
			Foreground(colorAccentLo)

	InfoStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)
)

// StatusStyle picks the style for a status line by severity.
func StatusStyle(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeveritySuccess:
		return SuccessStyle
	case types.SeverityWarning:
		return WarningStyle
	case types.SeverityError:
		return ErrorStyle
	}
	return InfoStyle
}
