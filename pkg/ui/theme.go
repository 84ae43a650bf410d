package ui

import (
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile, computed once at
// package init.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and ANSI white
// for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Entries
	Folder lipgloss.AdaptiveColor
	File   lipgloss.AdaptiveColor
	PDF    lipgloss.AdaptiveColor
	Image  lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pre-computed row styles, created once instead of per frame.
	MutedText   lipgloss.Style
	InfoText    lipgloss.Style
	PrimaryBold lipgloss.Style
	FolderText  lipgloss.Style
	GroupLabel  lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	SuccessText lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Folder: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		File:   lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"},
		PDF:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		Image:  lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(ThemeBg("#44475A")).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(ColorMuted)
	t.InfoText = r.NewStyle().Foreground(ColorInfo)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.FolderText = r.NewStyle().Foreground(t.Folder).Bold(true)
	t.GroupLabel = r.NewStyle().Foreground(ThemeFg("#F1FA8C")).Bold(true)
	t.WarningText = r.NewStyle().Foreground(ColorWarning).Bold(true)
	t.DangerText = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.SuccessText = r.NewStyle().Foreground(ColorSuccess)

	return t
}

// FileColor picks a foreground by file extension.
func (t Theme) FileColor(name string) lipgloss.AdaptiveColor {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return t.PDF
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return t.Image
	default:
		return t.File
	}
}
