package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vanderheijden86/dropdash/pkg/filetree"
)

// TreeReport is the input to GenerateTreeMarkdown.
type TreeReport struct {
	Title  string
	Query  string
	Groups []filetree.Group
	Stats  filetree.Stats
	Days   []filetree.DayCount
	// Now stamps the report; zero means time.Now().
	Now time.Time
}

// GenerateTreeMarkdown renders the dashboard tree as a Markdown outline: a
// summary table, a table of contents and one nested list per client. Only
// rows present in Groups are written, so the caller's expansion and search
// decide what the outline shows.
func GenerateTreeMarkdown(r TreeReport) string {
	var sb strings.Builder

	title := r.Title
	if title == "" {
		title = "Uploads"
	}
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", now.Format(time.RFC1123)))
	if r.Query != "" {
		sb.WriteString(fmt.Sprintf("> Filtered by `%s`\n\n", codeSpanSafe(r.Query)))
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Clients | %d |\n", r.Stats.Clients))
	sb.WriteString(fmt.Sprintf("| Files | %d |\n", r.Stats.Files))
	if n := len(r.Days); n > 0 {
		sb.WriteString(fmt.Sprintf("| Upload days | %d (%s to %s) |\n", n, r.Days[0].Day, r.Days[n-1].Day))
	}
	sb.WriteString("\n")

	if len(r.Stats.TopClients) > 0 {
		sb.WriteString("### Top clients\n\n")
		for i, c := range r.Stats.TopClients {
			sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, escapeMarkdown(c.Label), fileCount(c.Files)))
		}
		sb.WriteString("\n")
	}

	if len(r.Groups) == 0 {
		sb.WriteString("_No clients have uploaded anything yet._\n")
		return sb.String()
	}

	sb.WriteString("## Contents\n\n")
	slugs := make(map[string]int)
	anchors := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		heading := groupHeading(g)
		anchors[i] = uniqueSlug(createSlug(heading), slugs)
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", escapeMarkdown(heading), anchors[i]))
	}
	sb.WriteString("\n---\n\n")

	for _, g := range r.Groups {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdown(groupHeading(g))))
		sb.WriteString(fmt.Sprintf("`%s` · %s\n\n", codeSpanSafe(g.ClientID), fileCount(g.FileCount)))

		if g.Empty {
			sb.WriteString("_no files_\n\n")
			continue
		}
		if len(g.Rows) == 0 {
			sb.WriteString("_no matching entries_\n\n")
			continue
		}
		base := g.Rows[0].Depth
		for _, row := range g.Rows {
			indent := strings.Repeat("  ", max(row.Depth-base, 0))
			if row.IsFolder() {
				marker := "📁"
				if row.Open {
					marker = "📂"
				}
				sb.WriteString(fmt.Sprintf("%s- %s **%s/**", indent, marker, escapeMarkdown(row.Name)))
				if !row.Open && row.ChildCount > 0 {
					sb.WriteString(fmt.Sprintf(" _(%d hidden)_", row.ChildCount))
				}
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(fmt.Sprintf("%s- %s `%s`\n", indent, fileIcon(row.Name), codeSpanSafe(row.Path)))
		}
		if g.ShowMore {
			sb.WriteString("- _… more entries not shown_\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// SaveTreeMarkdown writes the report to filename, creating parent directories.
func SaveTreeMarkdown(r TreeReport, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}
	return os.WriteFile(filename, []byte(GenerateTreeMarkdown(r)), 0o644)
}

func groupHeading(g filetree.Group) string {
	if g.Label != "" {
		return g.Label
	}
	return g.ClientID
}

func fileCount(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

func fileIcon(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "📄"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "🖼"
	default:
		return "•"
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "#", `\#`, "|", `\|`, "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// codeSpanSafe strips characters that would end a single-backtick code span
// or break a table row.
func codeSpanSafe(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func uniqueSlug(base string, counts map[string]int) string {
	if base == "" {
		base = "client"
	}
	n := counts[base]
	counts[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

func createSlug(text string) string {
	var sb strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case !lastDash && sb.Len() > 0:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(sb.String(), "-")
}
