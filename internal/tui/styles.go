// Package tui provides terminal user interface components for cadence.
//
// This package provides a centralized style system using Lip Gloss for consistent
// component styling. All colors use AdaptiveColor for light/dark terminal support.
//
// # Semantic Colors
//
// Five semantic colors are exported for use across components:
//   - ColorPrimary (Blue): Active states and primary actions
//   - ColorSuccess (Green): Completed and committed work
//   - ColorWarning (Yellow): Stop points and soft pauses
//   - ColorError (Red): Escalations and failures
//   - ColorMuted (Gray): Skipped phases and secondary text
//
// # NO_COLOR Support
//
// Call CheckNoColor() at the start of commands to respect the NO_COLOR environment
// variable. Colors are also disabled when TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/cadence/internal/constants"
)

// DefaultBoxWidth is the content width used when the terminal size is unknown.
const DefaultBoxWidth = 80

//nolint:gochecknoglobals // Intentional package-level constants for TUI styling API
var (
	// ColorPrimary is blue, used for active states and primary actions.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for completed and committed work.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for stop points and soft pauses.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for escalations and failures.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for skipped phases and secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting to text.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies dim/faint formatting to text.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// TableStyles holds lipgloss styles for table rendering.
type TableStyles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
}

// NewTableStyles creates styles for table rendering.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell: lipgloss.NewStyle(),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
	}
}

// OutputStyles holds common output styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
}

// NewOutputStyles creates common output styles using AdaptiveColor for light/dark terminal support.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(ColorWarning),
		Info: lipgloss.NewStyle().
			Foreground(ColorPrimary),
		Dim: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}

// CheckNoColor respects the NO_COLOR environment variable.
// Call this at the start of commands that output styled text.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns true if the terminal supports colors.
// Returns false if NO_COLOR is set (any value including empty string) or TERM=dumb.
// This follows the NO_COLOR standard: https://no-color.org/
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// TaskStatusColor returns the semantic color for a task status.
func TaskStatusColor(status constants.TaskStatus) lipgloss.AdaptiveColor {
	switch status {
	case constants.TaskStatusExecuting, constants.TaskStatusReviewNeeded, constants.TaskStatusQualityChecking:
		return ColorPrimary
	case constants.TaskStatusQualityChecked:
		return ColorWarning
	case constants.TaskStatusCommitted:
		return ColorSuccess
	case constants.TaskStatusEscalated:
		return ColorError
	default:
		return ColorMuted
	}
}

// TaskStatusIcon returns the icon for a task status. Each status keeps
// icon, color and text so it reads without color.
func TaskStatusIcon(status constants.TaskStatus) string {
	switch status {
	case constants.TaskStatusPending:
		return "○"
	case constants.TaskStatusExecuting:
		return "●"
	case constants.TaskStatusReviewNeeded:
		return "◐"
	case constants.TaskStatusQualityChecking:
		return "⟳"
	case constants.TaskStatusQualityChecked:
		return "✓"
	case constants.TaskStatusCommitted:
		return "◆"
	case constants.TaskStatusEscalated:
		return "⚠"
	default:
		return "?"
	}
}

// RenderTaskStatus renders icon and status text in the status color.
func RenderTaskStatus(status constants.TaskStatus) string {
	text := TaskStatusIcon(status) + " " + status.String()
	if !HasColorSupport() {
		return text
	}
	return lipgloss.NewStyle().Foreground(TaskStatusColor(status)).Render(text)
}

// EscalationStyle returns the style for an escalation kind. Soft pauses are
// warnings, everything else is an error.
func EscalationStyle(kind constants.EscalationKind) lipgloss.Style {
	if !HasColorSupport() {
		return lipgloss.NewStyle()
	}
	if kind.IsSoft() {
		return lipgloss.NewStyle().Foreground(ColorWarning)
	}
	return lipgloss.NewStyle().Foreground(ColorError).Bold(true)
}
