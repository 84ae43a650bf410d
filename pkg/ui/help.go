package ui

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Keyboard shortcuts

## Tree

| Key | Action |
|-----|--------|
| j / k, ↓ / ↑ | Move |
| pgdown / pgup | Half page down / up |
| g / G | First / last line |
| [ / ] | Previous / next client |
| enter, space | Expand or collapse folder |
| m | Show more entries for the selected client |

## Files

| Key | Action |
|-----|--------|
| v | View the file with the system viewer |
| d | Download into the download folder |
| x | Delete (asks for confirmation) |
| y | Copy the file path |

## Search

| Key | Action |
|-----|--------|
| / | Focus the search box |
| esc | Leave the search box, keeping the query |
| ctrl+u | Clear the query |

Matches reveal their folders without changing which folders you expanded.
Clearing the query brings back the paginated view.

## General

| Key | Action |
|-----|--------|
| tab | Cycle tree, clients and analytics |
| r | Refresh now |
| ? | Toggle this help |
| q, ctrl+c | Quit |
`

// renderHelp renders the help text as terminal markdown. It falls back to
// the raw markdown when glamour cannot build a renderer.
func renderHelp(width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
