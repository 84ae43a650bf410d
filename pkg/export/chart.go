package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/dropdash/pkg/filetree"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"github.com/dustin/go-humanize"
	"golang.org/x/image/font/basicfont"
)

// ChartOptions controls the uploads-by-day chart export.
type ChartOptions struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title  string // Optional title rendered in the summary block
	Days   []filetree.DayCount
	Stats  filetree.Stats
	// UsedBytes and LimitBytes fill the storage line; LimitBytes <= 0 omits it.
	UsedBytes  int64
	LimitBytes int64
	// MaxDays keeps only the most recent days; <= 0 keeps all.
	MaxDays int
}

// SaveUploadsChart renders a static bar chart of uploads per day (SVG or PNG)
// with a small summary block.
func SaveUploadsChart(opts ChartOptions) error {
	if len(opts.Days) == 0 {
		return fmt.Errorf("no dated uploads to chart")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildChartLayout(opts)

	switch format {
	case "svg":
		file, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer file.Close()
		return renderChartSVG(file, layout)
	default:
		return renderChartPNG(opts.Path, layout)
	}
}

// --- layout computation ----------------------------------------------------

type chartBar struct {
	Day   string
	Files int
	X, Y  float64
	W, H  float64
}

type chartLayout struct {
	Bars    []chartBar
	Width   int
	Height  int
	Header  float64
	BaseY   float64
	Summary []string
	Title   string
}

func buildChartLayout(opts ChartOptions) chartLayout {
	const (
		barW      = 28.0
		gap       = 12.0
		margin    = 40.0
		header    = 130.0
		plotH     = 240.0
		labelRoom = 70.0
	)

	days := opts.Days
	if opts.MaxDays > 0 && len(days) > opts.MaxDays {
		days = days[len(days)-opts.MaxDays:]
	}

	peak := 1
	for _, d := range days {
		if d.Files > peak {
			peak = d.Files
		}
	}

	width := int(margin*2 + float64(len(days))*(barW+gap))
	if width < 480 {
		width = 480
	}
	baseY := header + plotH
	l := chartLayout{
		Width:  width,
		Height: int(baseY + labelRoom),
		Header: header,
		BaseY:  baseY,
		Title:  opts.Title,
	}
	if l.Title == "" {
		l.Title = "Uploads by day"
	}

	for i, d := range days {
		h := float64(d.Files) / float64(peak) * (plotH - 20)
		l.Bars = append(l.Bars, chartBar{
			Day:   d.Day,
			Files: d.Files,
			X:     margin + float64(i)*(barW+gap),
			Y:     baseY - h,
			W:     barW,
			H:     h,
		})
	}

	l.Summary = append(l.Summary,
		fmt.Sprintf("clients: %d  files: %d  days: %d", opts.Stats.Clients, opts.Stats.Files, len(days)))
	if opts.LimitBytes > 0 {
		pct := float64(opts.UsedBytes) / float64(opts.LimitBytes) * 100
		l.Summary = append(l.Summary, fmt.Sprintf("storage: %s / %s (%.1f%%)",
			humanize.IBytes(uint64(max(opts.UsedBytes, 0))), humanize.IBytes(uint64(opts.LimitBytes)), pct))
	}
	if len(opts.Stats.TopClients) > 0 {
		top := opts.Stats.TopClients[0]
		l.Summary = append(l.Summary, fmt.Sprintf("top client: %s (%d files)", top.Label, top.Files))
	}
	return l
}

// --- rendering ---------------------------------------------------------------

var (
	colorBar      = color.RGBA{0x6b, 0x47, 0xd9, 0xff}
	colorAxis     = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

func renderChartPNG(path string, l chartLayout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(l.Width)-32, l.Header-40, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, s := range l.Summary {
		dc.DrawStringAnchored(s, 32, 60+float64(i)*18, 0, 0.5)
	}

	dc.SetColor(colorAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(30, l.BaseY, float64(l.Width)-30, l.BaseY)
	dc.Stroke()

	for _, b := range l.Bars {
		dc.SetColor(colorBar)
		dc.DrawRectangle(b.X, b.Y, b.W, b.H)
		dc.Fill()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%d", b.Files), b.X+b.W/2, b.Y-8, 0.5, 0.5)

		// Day labels run vertically under the axis.
		dc.Push()
		dc.SetColor(colorSubtle)
		dc.RotateAbout(gg.Radians(90), b.X+b.W/2, l.BaseY+6)
		dc.DrawStringAnchored(shortDay(b.Day), b.X+b.W/2, l.BaseY+6, 0, 0.5)
		dc.Pop()
	}

	return dc.SavePNG(path)
}

func renderChartSVG(w io.Writer, l chartLayout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, l.Width-32, int(l.Header-40), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(32, 44, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, s := range l.Summary {
		canvas.Text(32, 64+i*18, s, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}

	baseY := int(l.BaseY)
	canvas.Line(30, baseY, l.Width-30, baseY, fmt.Sprintf("stroke:%s;stroke-width:1", css(colorAxis)))

	for _, b := range l.Bars {
		x, y := int(b.X), int(b.Y)
		canvas.Rect(x, y, int(b.W), int(b.H), fmt.Sprintf("fill:%s", css(colorBar)))
		canvas.Title(fmt.Sprintf("%s: %d files", b.Day, b.Files))
		canvas.Text(x+int(b.W)/2, y-6, fmt.Sprintf("%d", b.Files),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:middle", css(colorText)))
		lx, ly := x+int(b.W)/2, baseY+10
		canvas.Text(lx, ly, shortDay(b.Day),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)),
			fmt.Sprintf(`transform="rotate(90 %d %d)"`, lx, ly))
	}

	canvas.End()
	return nil
}

// shortDay drops the year from YYYY-MM-DD labels.
func shortDay(day string) string {
	if filetree.IsDay(day) {
		return day[5:]
	}
	return day
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
