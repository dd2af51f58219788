// Package tui provides the interactive viewer for tuneup run logs.
// It uses Charmbracelet's Bubble Tea, Lip Gloss, and Bubbles.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette for the viewer.
var (
	primaryColor = lipgloss.Color("39")
	accentColor  = lipgloss.Color("#00D9FF")

	successColor = lipgloss.Color("#28A745")
	warningColor = lipgloss.Color("#FFC107")
	dangerColor  = lipgloss.Color("#DC3545")

	mutedColor  = lipgloss.Color("#666666")
	borderColor = lipgloss.Color("#333333")
)

// Text styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	dividerStyle = lipgloss.NewStyle().
			Foreground(borderColor)
)

// Log line styles, one per line kind.
var (
	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	commandStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	okStyle = lipgloss.NewStyle().
		Foreground(successColor)

	failedStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Help bar styles.
var (
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)
