package ui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle ANSI 6 (Cyan) for headings
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black) keeps descriptions quiet
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// TypeStyle tags a memory with its item type.
	TypeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)

	ScoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)
