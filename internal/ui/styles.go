package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("62")  // purple
	colorSecondary = lipgloss.Color("241") // gray
	colorMuted     = lipgloss.Color("240")
	colorHighlight = lipgloss.Color("212") // pink
	colorWarn      = lipgloss.Color("214")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(colorPrimary).
			Padding(0, 1)

	selectedRow = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(colorPrimary).
			Padding(0, 1)

	normalRow = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	categoryBadge = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Background(lipgloss.Color("236")).
			Padding(0, 1).
			MarginRight(1)

	fallbackBadge = lipgloss.NewStyle().
			Foreground(colorWarn).
			Padding(0, 1)

	themeHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHighlight).
			MarginTop(1)

	articleLine = lipgloss.NewStyle().
			Foreground(colorSecondary).
			PaddingLeft(4)

	statusBar = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	statusKey = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true)

	statusText = lipgloss.NewStyle().
			Foreground(colorSecondary)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(1, 2)
)
