package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerBarStyle     = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerPostStyle    = lipgloss.NewStyle().Foreground(colorPrimaryDark)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryLight).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws a boom gate.
func renderBanner() string {
	post := bannerPostStyle.Render("█")
	bar := bannerBarStyle.Render(strings.Repeat("▀▄", 8))
	title := bannerTitleStyle.Render("GATELOG")

	lines := []string{
		"  " + post + bar,
		"  " + post + "   " + title,
		"  " + post,
		" ▀▀▀",
	}
	return strings.Join(lines, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("  the gatehouse log, online or not")
	ver := bannerVersionStyle.Render("  " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
