package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	FocusedInput     lipgloss.Style
	Header           lipgloss.Style
	Typing           lipgloss.Style
	UserLabel        lipgloss.Style
	AssistantLabel   lipgloss.Style
}

type BorderColors struct {
	User      string
	Assistant string
	Focused   string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		User:      "#CCCCCC",
		Assistant: "#FFB6C1", // Light pink
		Focused:   "#FFFF99", // Light yellow
	}

	darkModeColors := BorderColors{
		User:      "#444444",
		Assistant: "#DD7090", // Desaturated pink for dark mode
		Focused:   "#DDDD77", // Desaturated yellow for dark mode
	}

	return &Style{
		UserMessage: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.User,
				Dark:  darkModeColors.User,
			}),
		AssistantMessage: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Assistant,
				Dark:  darkModeColors.Assistant,
			}),
		FocusedInput: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Focused,
				Dark:  darkModeColors.Focused,
			}),
		Header:    lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Typing:    lipgloss.NewStyle().Italic(true).Faint(true).Padding(0, 1),
		UserLabel: lipgloss.NewStyle().Bold(true),

		AssistantLabel: lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Assistant,
				Dark:  darkModeColors.Assistant,
			}),
	}
}
