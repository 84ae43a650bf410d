package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/dropdash/pkg/filetree"
)

type lineKind int

const (
	lineGroup lineKind = iota
	lineNode
	lineShowMore
	lineNoFiles
)

// treeLine is one terminal row of the tree panel.
type treeLine struct {
	kind      lineKind
	clientID  string
	label     string
	fileCount int
	row       filetree.Row
}

// key identifies the line across rebuilds so the cursor can follow it.
func (l treeLine) key() string {
	switch l.kind {
	case lineGroup:
		return "group:" + l.clientID
	case lineShowMore:
		return "more:" + l.clientID
	case lineNoFiles:
		return "empty:" + l.clientID
	default:
		return l.row.ID
	}
}

// TreeModel turns rendered groups into scrollable terminal rows. It holds no
// tree state of its own; expansion and visibility live in the dashboard.
type TreeModel struct {
	theme          Theme
	lines          []treeLine
	query          string
	cursor         int
	viewportOffset int
	width          int
	height         int
	built          bool
}

// NewTreeModel creates an empty tree panel.
func NewTreeModel(theme Theme) TreeModel {
	return TreeModel{theme: theme}
}

// SetSize sets the panel dimensions.
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// Build flattens groups into lines. The cursor stays on the same line when
// it survives the rebuild, otherwise it is clamped.
func (t *TreeModel) Build(groups []filetree.Group, query string) {
	selected := ""
	if l, ok := t.Selected(); ok {
		selected = l.key()
	}

	t.lines = t.lines[:0]
	for _, g := range groups {
		t.lines = append(t.lines, treeLine{
			kind:      lineGroup,
			clientID:  g.ClientID,
			label:     g.Label,
			fileCount: g.FileCount,
		})
		if g.Empty {
			t.lines = append(t.lines, treeLine{kind: lineNoFiles, clientID: g.ClientID})
			continue
		}
		for _, r := range g.Rows {
			t.lines = append(t.lines, treeLine{kind: lineNode, clientID: g.ClientID, row: r})
		}
		if g.ShowMore {
			t.lines = append(t.lines, treeLine{kind: lineShowMore, clientID: g.ClientID})
		}
	}
	t.query = query
	t.built = true

	if selected == "" || !t.SelectByKey(selected) {
		if t.cursor >= len(t.lines) {
			t.cursor = len(t.lines) - 1
		}
		if t.cursor < 0 {
			t.cursor = 0
		}
	}
	t.ensureCursorVisible()
}

// Len returns the number of lines.
func (t *TreeModel) Len() int { return len(t.lines) }

// SelectByKey moves the cursor to the line with the given key.
func (t *TreeModel) SelectByKey(k string) bool {
	for i, l := range t.lines {
		if l.key() == k {
			t.cursor = i
			return true
		}
	}
	return false
}

// Selected returns the line under the cursor.
func (t *TreeModel) Selected() (treeLine, bool) {
	if t.cursor >= 0 && t.cursor < len(t.lines) {
		return t.lines[t.cursor], true
	}
	return treeLine{}, false
}

// SelectedRow returns the node row under the cursor, or nil when the cursor
// is on a group header or an affordance line.
func (t *TreeModel) SelectedRow() *filetree.Row {
	l, ok := t.Selected()
	if !ok || l.kind != lineNode {
		return nil
	}
	r := l.row
	return &r
}

// SelectedFile returns the file row under the cursor, or nil.
func (t *TreeModel) SelectedFile() *filetree.Row {
	r := t.SelectedRow()
	if r == nil || r.IsFolder() {
		return nil
	}
	return r
}

// SelectedClientID returns the client owning the line under the cursor.
func (t *TreeModel) SelectedClientID() string {
	l, ok := t.Selected()
	if !ok {
		return ""
	}
	return l.clientID
}

// MoveDown moves the cursor down.
func (t *TreeModel) MoveDown() {
	if t.cursor < len(t.lines)-1 {
		t.cursor++
		t.ensureCursorVisible()
	}
}

// MoveUp moves the cursor up.
func (t *TreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.ensureCursorVisible()
	}
}

// PageDown moves cursor down by half a viewport.
func (t *TreeModel) PageDown() {
	pageSize := t.height / 2
	if pageSize < 1 {
		pageSize = 5
	}
	t.cursor += pageSize
	if t.cursor >= len(t.lines) {
		t.cursor = len(t.lines) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

// PageUp moves cursor up by half a viewport.
func (t *TreeModel) PageUp() {
	pageSize := t.height / 2
	if pageSize < 1 {
		pageSize = 5
	}
	t.cursor -= pageSize
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

// JumpToTop selects the first line.
func (t *TreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

// JumpToBottom selects the last line.
func (t *TreeModel) JumpToBottom() {
	if len(t.lines) > 0 {
		t.cursor = len(t.lines) - 1
	}
	t.ensureCursorVisible()
}

// NextGroup moves the cursor to the next client header.
func (t *TreeModel) NextGroup() {
	for i := t.cursor + 1; i < len(t.lines); i++ {
		if t.lines[i].kind == lineGroup {
			t.cursor = i
			t.ensureCursorVisible()
			return
		}
	}
}

// PrevGroup moves the cursor to the previous client header.
func (t *TreeModel) PrevGroup() {
	for i := t.cursor - 1; i >= 0; i-- {
		if t.lines[i].kind == lineGroup {
			t.cursor = i
			t.ensureCursorVisible()
			return
		}
	}
}

// View renders the visible window of lines.
func (t *TreeModel) View() string {
	if !t.built || len(t.lines) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	sb.WriteString(t.RenderHeader())
	sb.WriteString("\n")

	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		isSelected := i == t.cursor
		line := t.renderLine(t.lines[i], isSelected)
		if isSelected {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(t.lines) > t.effectiveVisibleCount() && t.height > 0 {
		sb.WriteString(t.renderPositionIndicator(start, end))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// RenderHeader returns the column header row.
func (t *TreeModel) RenderHeader() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	title := "  UPLOADS"
	if t.query != "" {
		title += fmt.Sprintf("  matching %q", t.query)
	}
	return t.theme.Header.Width(width).Render(truncateRunesHelper(title, width-2, "…"))
}

func (t *TreeModel) renderPositionIndicator(start, end int) string {
	total := len(t.lines)
	pageSize := t.effectiveVisibleCount()
	currentPage, totalPages := t.pageInfo(pageSize)

	indicator := fmt.Sprintf(" Page %d/%d (%d-%d of %d)", currentPage, totalPages, start+1, end, total)
	return t.theme.MutedText.Render(indicator)
}

func (t *TreeModel) pageInfo(pageSize int) (currentPage, totalPages int) {
	total := len(t.lines)
	if pageSize <= 0 {
		pageSize = 1
	}
	totalPages = (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	currentPage = (t.viewportOffset / pageSize) + 1
	if currentPage > totalPages {
		currentPage = totalPages
	}
	return currentPage, totalPages
}

func (t *TreeModel) renderEmptyState() string {
	r := t.theme.Renderer
	titleStyle := r.NewStyle().Foreground(t.theme.Primary).Bold(true)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Uploads"))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("No clients have uploaded anything yet."))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("Press r to refresh or ? for help."))
	return sb.String()
}

func (t *TreeModel) contentWidth() int {
	if t.width <= 0 {
		return 80
	}
	// Selected rows carry a border and one cell of padding.
	return t.width - 2
}

func (t *TreeModel) renderLine(l treeLine, isSelected bool) string {
	width := t.contentWidth()
	switch l.kind {
	case lineGroup:
		badge := RenderCountBadge(l.fileCount, t.theme)
		room := width - lipgloss.Width(badge) - 1
		label := truncateRunesHelper(l.label, room, "…")
		return t.theme.GroupLabel.Render(label) + " " + badge

	case lineNoFiles:
		return "  " + t.theme.MutedText.Italic(true).Render("no files")

	case lineShowMore:
		return "  " + t.theme.InfoText.Render("▸ show more") + t.theme.MutedText.Render("  [m]")

	default:
		return t.renderRow(l.row, width)
	}
}

func (t *TreeModel) renderRow(r filetree.Row, width int) string {
	prefix := strings.Repeat(" ", r.Indent+2) + getExpandIndicator(r) + " "
	suffix := ""
	if r.IsFolder() {
		suffix = " " + t.theme.MutedText.Render(fmt.Sprintf("%d", r.ChildCount))
		if r.ForcedOpen && !r.Expanded {
			suffix += t.theme.MutedText.Render(" (search)")
		}
	}

	room := width - runewidth.StringWidth(prefix) - lipgloss.Width(suffix)
	name := truncateRunesHelper(r.Name, room, "…")

	style := t.theme.Renderer.NewStyle().Foreground(t.theme.FileColor(r.Name))
	if r.IsFolder() {
		style = t.theme.FolderText
	}
	return t.theme.MutedText.Render(prefix) + highlightMatch(name, t.query, style, t.theme.InfoText.Background(t.theme.Highlight).Underline(true)) + suffix
}

func getExpandIndicator(r filetree.Row) string {
	if !r.IsFolder() {
		return "•"
	}
	if r.Open {
		return "▾"
	}
	return "▸"
}

// highlightMatch styles the first case-insensitive occurrence of query in s.
func highlightMatch(s, query string, base, hl lipgloss.Style) string {
	if query == "" {
		return base.Render(s)
	}
	lower := strings.ToLower(s)
	// Case folding changed byte offsets; skip the highlight.
	if len(lower) != len(s) {
		return base.Render(s)
	}
	i := strings.Index(lower, strings.ToLower(query))
	if i < 0 {
		return base.Render(s)
	}
	j := i + len(query)
	return base.Render(s[:i]) + hl.Render(s[i:j]) + base.Render(s[j:])
}

func (t *TreeModel) visibleRange() (start, end int) {
	if len(t.lines) == 0 {
		return 0, 0
	}
	visibleCount := t.effectiveVisibleCount()

	start = t.viewportOffset
	if start < 0 {
		start = 0
	}
	end = start + visibleCount
	if end > len(t.lines) {
		end = len(t.lines)
		start = end - visibleCount
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

func (t *TreeModel) effectiveVisibleCount() int {
	visibleCount := t.height - 1 // header row
	if visibleCount <= 0 {
		visibleCount = 19
	}
	// Reserve a line for the position indicator when scrolling.
	if len(t.lines) > visibleCount {
		visibleCount--
	}
	if visibleCount < 1 {
		visibleCount = 1
	}
	return visibleCount
}

func (t *TreeModel) ensureCursorVisible() {
	if len(t.lines) == 0 {
		return
	}
	visibleCount := t.effectiveVisibleCount()

	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+visibleCount {
		t.viewportOffset = t.cursor - visibleCount + 1
	}

	maxOffset := len(t.lines) - visibleCount
	if maxOffset < 0 {
		maxOffset = 0
	}
	if t.viewportOffset > maxOffset {
		t.viewportOffset = maxOffset
	}
	if t.viewportOffset < 0 {
		t.viewportOffset = 0
	}
}
