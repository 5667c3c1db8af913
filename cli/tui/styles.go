// Package tui is the Bubble Tea live view of sextant watch.
//
// The view is fed by Bridge, a pipeline.Handler that converts callbacks
// into messages. It only renders; quitting asks the caller to unsubscribe.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	barFilled = lipgloss.NewStyle().Foreground(highlightColor)
	barEmpty  = lipgloss.NewStyle().Foreground(mutedColor)
)

// StateStyle picks a style for a session state or algorithm status.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "subscribed", "Running", "Completed":
		return SuccessStyle
	case "InQueue", "Initializing", "History", "LoggingIn":
		return WarningStyle
	case "RuntimeError", "DeployError", "Invalid", "Stopped", "Liquidated":
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// ProfitStyle colors a signed amount.
func ProfitStyle(negative bool) lipgloss.Style {
	if negative {
		return ErrorStyle
	}
	return SuccessStyle
}
