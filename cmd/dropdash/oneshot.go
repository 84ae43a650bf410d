package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/internal/server"
	"github.com/vanderheijden86/dropdash/pkg/config"
	"github.com/vanderheijden86/dropdash/pkg/export"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

const oneShotTimeout = time.Minute

// RobotTree is the --robot-tree payload.
type RobotTree struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Source      string           `json:"source"`
	Query       string           `json:"query,omitempty"`
	PageSize    int              `json:"page_size"`
	Groups      []filetree.Group `json:"groups"`
}

// RobotStats is the --robot-stats payload.
type RobotStats struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Source      string         `json:"source"`
	Usage       filetree.Usage `json:"usage"`
	Warning     bool           `json:"storage_warning"`
	ClientCount int            `json:"registered_clients"`
}

func treeOptions(cfg config.Config) filetree.Options {
	return filetree.Options{
		PageSize:   cfg.UI.PageSize,
		MaxDepth:   cfg.UI.MaxDepth,
		IndentStep: cfg.UI.Indent,
	}
}

func viewFromFlags(f *cliFlags) filetree.View {
	return filetree.View{Query: f.query, RevealAll: f.revealAll, ExpandAll: f.expandAll}
}

func sourceLabel(info datasource.DataSource) string {
	return fmt.Sprintf("%s:%s", info.Type, info.Path)
}

// runOneShot loads a single snapshot and serves every requested robot or
// export mode from it.
func runOneShot(ctx context.Context, f *cliFlags, cfg config.Config, b *datasource.Backend, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	snap, err := b.Source.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading uploads: %v\n", err)
		return 1
	}
	now := time.Now().UTC()

	if f.robotTree {
		if err := writeRobotTree(stdout, snap, cfg, viewFromFlags(f), sourceLabel(b.Info), now); err != nil {
			fmt.Fprintf(stderr, "Error encoding tree: %v\n", err)
			return 1
		}
	}
	if f.robotStats {
		if err := writeRobotStats(stdout, snap, cfg, sourceLabel(b.Info), now); err != nil {
			fmt.Fprintf(stderr, "Error encoding stats: %v\n", err)
			return 1
		}
	}
	if f.exportChart != "" {
		if err := exportChart(f.exportChart, snap, cfg); err != nil {
			fmt.Fprintf(stderr, "Error exporting chart: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Wrote %s\n", f.exportChart)
	}
	if f.exportTree != "" {
		if err := exportTree(stdout, f.exportTree, snap, cfg, viewFromFlags(f), now); err != nil {
			fmt.Fprintf(stderr, "Error exporting tree: %v\n", err)
			return 1
		}
		if f.exportTree != "-" {
			fmt.Fprintf(stderr, "Wrote %s\n", f.exportTree)
		}
	}
	return 0
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRobotTree(w io.Writer, snap model.Snapshot, cfg config.Config, v filetree.View, source string, now time.Time) error {
	opts := treeOptions(cfg)
	return encodeJSON(w, RobotTree{
		GeneratedAt: now,
		Source:      source,
		Query:       v.Query,
		PageSize:    filetree.NewPagination(opts.PageSize).PageSize(),
		Groups:      filetree.RenderView(snap.Groups, opts, v),
	})
}

func buildUsage(snap model.Snapshot, cfg config.Config) (filetree.Usage, *filetree.Forest) {
	f := filetree.BuildForest(snap.Groups, filetree.WithMaxDepth(cfg.UI.MaxDepth))
	return filetree.ComputeUsage(f, snap.Analytics, cfg.Storage.LimitBytes), f
}

func writeRobotStats(w io.Writer, snap model.Snapshot, cfg config.Config, source string, now time.Time) error {
	u, _ := buildUsage(snap, cfg)
	return encodeJSON(w, RobotStats{
		GeneratedAt: now,
		Source:      source,
		Usage:       u,
		Warning:     u.Warn(cfg.Storage.WarnPercent),
		ClientCount: len(snap.Clients),
	})
}

func exportChart(path string, snap model.Snapshot, cfg config.Config) error {
	u, f := buildUsage(snap, cfg)
	return export.SaveUploadsChart(export.ChartOptions{
		Path:       path,
		Days:       u.Days,
		Stats:      filetree.ComputeStats(f, filetree.DefaultTopClients),
		UsedBytes:  u.Bytes,
		LimitBytes: u.Limit,
	})
}

func exportTree(stdout io.Writer, path string, snap model.Snapshot, cfg config.Config, v filetree.View, now time.Time) error {
	u, f := buildUsage(snap, cfg)
	report := export.TreeReport{
		Title:  "Uploads",
		Query:  v.Query,
		Groups: filetree.RenderView(snap.Groups, treeOptions(cfg), v),
		Stats:  filetree.ComputeStats(f, filetree.DefaultTopClients),
		Days:   u.Days,
		Now:    now,
	}
	if path != "-" {
		return export.SaveTreeMarkdown(report, path)
	}

	md := export.GenerateTreeMarkdown(report)
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		_, err = io.WriteString(stdout, md)
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		_, err = io.WriteString(stdout, md)
		return err
	}
	_, err = io.WriteString(stdout, strings.TrimLeft(out, "\n"))
	return err
}

// runServe mirrors the source over the JSON API until interrupted.
func runServe(ctx context.Context, addr string, cfg config.Config, b *datasource.Backend, stderr io.Writer) int {
	mirror := server.NewMirror(b.Source)
	if err := mirror.Refresh(ctx); err != nil {
		fmt.Fprintf(stderr, "Warning: initial load failed, will retry: %v\n", err)
	}
	go mirror.Run(ctx, cfg.UI.RefreshInterval)

	router := server.NewRouter(mirror, b.Actions, server.Options{
		Tree:         treeOptions(cfg),
		StorageLimit: cfg.Storage.LimitBytes,
		WarnPercent:  cfg.Storage.WarnPercent,
	})
	srv := server.NewServer(addr, mirror, router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(); err != nil {
		fmt.Fprintf(stderr, "Error serving: %v\n", err)
		return 1
	}
	return 0
}
