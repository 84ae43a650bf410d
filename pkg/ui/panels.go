package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// chartDays caps the uploads-by-day chart.
const chartDays = 14

// renderAnalyticsPanel renders totals, storage usage and the uploads chart.
func renderAnalyticsPanel(u filetree.Usage, warnPercent float64, width int, t Theme) string {
	if width <= 0 {
		width = 80
	}
	r := t.Renderer
	title := r.NewStyle().Foreground(t.Primary).Bold(true)

	var sb strings.Builder
	sb.WriteString(title.Render("Analytics"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Files    %d across %d clients\n", u.Files, u.Clients))

	sb.WriteString("Storage  ")
	if u.Limit > 0 {
		sb.WriteString(fmt.Sprintf("%s / %s (%.1f%%)\n", FormatBytes(u.Bytes), FormatBytes(u.Limit), u.Percent))
		barWidth := width - 12
		if barWidth > 40 {
			barWidth = 40
		}
		sb.WriteString("         ")
		sb.WriteString(RenderMiniBar(u.Percent/100, barWidth, warnPercent/100, t))
		sb.WriteString("\n")
		if u.Warn(warnPercent) {
			sb.WriteString(t.DangerText.Render(fmt.Sprintf("⚠ Storage usage is above %.0f%%", warnPercent)))
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(t.MutedText.Render("unknown") + "\n")
	}

	sb.WriteString(RenderDivider(min(width, 40)) + "\n")
	sb.WriteString(title.Render("Top clients"))
	sb.WriteString("\n")
	if len(u.Top) == 0 {
		sb.WriteString(t.MutedText.Render("  none") + "\n")
	}
	for i, c := range u.Top {
		label := truncateRunesHelper(c.Label, width/2, "…")
		sb.WriteString(fmt.Sprintf("  %d. %s %s\n", i+1, padRight(label, width/2), RenderCountBadge(c.Files, t)))
	}

	sb.WriteString(RenderDivider(min(width, 40)) + "\n")
	sb.WriteString(title.Render("Uploads by day"))
	sb.WriteString("\n")
	sb.WriteString(renderDayChart(u.Days, width, t))
	return strings.TrimRight(sb.String(), "\n")
}

// renderDayChart draws one horizontal bar per day, most recent chartDays.
func renderDayChart(days []filetree.DayCount, width int, t Theme) string {
	if len(days) == 0 {
		return t.MutedText.Render("  no dated uploads")
	}
	if len(days) > chartDays {
		days = days[len(days)-chartDays:]
	}
	peak := 0
	for _, d := range days {
		if d.Files > peak {
			peak = d.Files
		}
	}
	barRoom := width - len(filetree.DayLayout) - 10
	if barRoom < 5 {
		barRoom = 5
	}

	bar := t.Renderer.NewStyle().Foreground(t.Primary)
	var sb strings.Builder
	for _, d := range days {
		n := 0
		if peak > 0 {
			n = d.Files * barRoom / peak
		}
		if n == 0 && d.Files > 0 {
			n = 1
		}
		sb.WriteString(fmt.Sprintf("  %s %s %d\n", d.Day, bar.Render(strings.Repeat("█", n)), d.Files))
	}
	return sb.String()
}

type clientEntry struct {
	id string
	model.Client
}

// sortedClients orders clients by label (case-insensitive), then id.
func sortedClients(clients map[string]model.Client) []clientEntry {
	out := make([]clientEntry, 0, len(clients))
	for id, c := range clients {
		out = append(out, clientEntry{id: id, Client: c})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Label), strings.ToLower(out[j].Label)
		if li != lj {
			return li < lj
		}
		return out[i].id < out[j].id
	})
	return out
}

// renderClientsPanel renders the registered clients table.
func renderClientsPanel(clients map[string]model.Client, width int, t Theme) string {
	if width <= 0 {
		width = 80
	}
	r := t.Renderer
	title := r.NewStyle().Foreground(t.Primary).Bold(true)

	var sb strings.Builder
	sb.WriteString(title.Render(fmt.Sprintf("Clients (%d)", len(clients))))
	sb.WriteString("\n\n")
	if len(clients) == 0 {
		sb.WriteString(t.MutedText.Render("No client registry for this source."))
		return sb.String()
	}

	labelW := width - 14 - 16 - 10 - 10
	if labelW < 10 {
		labelW = 10
	}
	header := padRight("LABEL", labelW) + padRight("TYPE", 14) + padRight("IP", 16) + padRight("SEEN", 10) + "KEEP"
	sb.WriteString(t.Header.Render(truncateRunesHelper(header, width-2, "")))
	sb.WriteString("\n")

	for _, c := range sortedClients(clients) {
		label := c.Label
		if label == "" {
			label = c.id
		}
		retention := "-"
		if c.RetentionDays > 0 {
			retention = fmt.Sprintf("%dd", c.RetentionDays)
		}
		ip := c.IPAddress
		if ip == "" {
			ip = "-"
		}
		line := padRight(truncateRunesHelper(label, labelW-1, "…"), labelW) +
			padRight(c.TypeName(), 14) +
			padRight(ip, 16) +
			padRight(FormatTimeRel(c.LastSeen.Time), 10) +
			retention
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
