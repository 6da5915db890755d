package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("#6C63FF")
	colorSecondary = lipgloss.Color("#2EC4B6")
	colorMuted     = lipgloss.Color("#666666")
	colorSuccess   = lipgloss.Color("#2ECC71")
	colorWarning   = lipgloss.Color("#F39C12")
	colorError     = lipgloss.Color("#E74C3C")
	colorFg        = lipgloss.Color("#C0CAF5")
	colorSubtle    = lipgloss.Color("#414868")
	colorHighlight = lipgloss.Color("#7AA2F7")
)

var (
	Title     = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	Heading   = lipgloss.NewStyle().Bold(true).Foreground(colorFg)
	Muted     = lipgloss.NewStyle().Foreground(colorMuted)
	Highlight = lipgloss.NewStyle().Foreground(colorHighlight)
	Accent    = lipgloss.NewStyle().Foreground(colorSecondary)
	Good      = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	Warn      = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	Bad       = lipgloss.NewStyle().Bold(true).Foreground(colorError)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorSubtle).
		Padding(0, 1)
)

// section renders a titled panel around body lines.
func section(title string, lines []string) string {
	body := strings.Join(lines, "\n")
	if len(lines) == 0 {
		body = Muted.Render("nothing here")
	}
	return Panel.Render(Title.Render(title) + "\n" + body)
}

func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	bar := Good.Render(strings.Repeat("█", filled)) + Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

func check(done bool) string {
	if done {
		return Good.Render("[x]")
	}
	return Muted.Render("[ ]")
}

func priorityStyle(p string) lipgloss.Style {
	switch p {
	case "High":
		return Bad
	case "Low":
		return Muted
	}
	return Warn
}
