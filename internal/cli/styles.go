package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

var (
	unreadStyle     = lipgloss.NewStyle().Bold(true)
	needactionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	authorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")).Bold(true)
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
)

// counterCell renders a counter, highlighted when non-zero.
func counterCell(n int, style lipgloss.Style) string {
	if n == 0 {
		return mutedStyle.Render("-")
	}
	return style.Render(strconv.Itoa(n))
}
