package utils

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.ANSI256)
}

var (
	RedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc0000"))
	OrangeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff7c28"))
	YellowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc9500"))
	GreenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06cc00"))
	LightBlueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3cc5ff"))
	GrayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#adadad"))

	// executionStateStyles colors the execution states published on iopub.
	executionStateStyles = map[string]lipgloss.Style{
		"starting": LightBlueStyle,
		"busy":     YellowStyle,
		"idle":     GreenStyle,
	}
)

// ExecutionStateStyle returns the style used to log the given kernel execution state.
// Unknown states are rendered in gray.
func ExecutionStateStyle(state string) lipgloss.Style {
	if style, ok := executionStateStyles[state]; ok {
		return style
	}
	return GrayStyle
}

// RenderExecutionState renders state with its ExecutionStateStyle.
func RenderExecutionState(state string) string {
	return ExecutionStateStyle(state).Render(state)
}
