package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	flame      = lipgloss.Color("208")
	honey      = lipgloss.Color("214")
	beeYellow  = lipgloss.Color("226")
	mint       = lipgloss.Color("121")
	cobalt     = lipgloss.Color("33")
	deepIndigo = lipgloss.Color("61")
	fuchsia    = lipgloss.Color("177")

	wordmarkGradient = []lipgloss.Color{flame, honey, beeYellow, mint, cobalt, deepIndigo, fuchsia}

	taglineStyle = lipgloss.NewStyle().Bold(true).Foreground(flame)
)

var wordmarkLetters = [][]string{
	{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔═══╝  ", "██║      ", "╚═╝      "},
	{"██████╗ ", "██╔══██╗", "██████╔╝", "██╔══██╗", "██║  ██║", "╚═╝  ╚═╝"},
	{" ██████╗ ", "██╔═══██╗", "██║   ██║", "██║   ██║", "╚██████╔╝", " ╚═════╝ "},
	{" ██████╗", "██╔════╝", "██║     ", "██║     ", "╚██████╗", " ╚═════╝"},
	{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
	{" ██████╗ ", "██╔═══██╗", "██║   ██║", "██║   ██║", "╚██████╔╝", " ╚═════╝ "},
	{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔═══╝  ", "██║      ", "╚═╝      "},
}

// Banner renders the proctop wordmark with one gradient color per letter.
func Banner() string {
	var b strings.Builder

	rows := make([]string, len(wordmarkLetters[0]))
	for i, letter := range wordmarkLetters {
		style := lipgloss.NewStyle().Bold(true).Foreground(wordmarkGradient[i%len(wordmarkGradient)])
		for row := range letter {
			rows[row] += style.Render(letter[row]) + "  "
		}
	}
	for _, line := range rows {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(taglineStyle.Render("proctop") + "  •  process monitor\n\n")
	return b.String()
}
