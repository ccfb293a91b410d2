package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	summaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	sourcesStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	transcriptBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBox      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
