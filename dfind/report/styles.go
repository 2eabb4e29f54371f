package report

import "github.com/charmbracelet/lipgloss"

var (
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	Gray   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	Info   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true)
	Header = lipgloss.NewStyle().Bold(true).Underline(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5FAFFF")).
			Padding(0, 1)
)
