package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/config"
	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/export"
	"github.com/vanderheijden86/dropdash/pkg/ui"
	"github.com/vanderheijden86/dropdash/pkg/version"
	"github.com/vanderheijden86/dropdash/pkg/watcher"
)

// cliFlags holds the parsed command line. set records which flags the user
// passed explicitly so only those override the config file.
type cliFlags struct {
	configPath  string
	source      string
	server      string
	dir         string
	clients     string
	db          string
	pageSize    int
	maxDepth    int
	refresh     time.Duration
	robotTree   bool
	robotStats  bool
	query       string
	revealAll   bool
	expandAll   bool
	exportChart string
	exportTree  string
	initWizard  bool
	serve       string
	cpuProfile  string
	version     bool
	help        bool

	set map[string]bool
	fs  *flag.FlagSet
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: map[string]bool{}}
	fs := flag.NewFlagSet("dropdash", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "Config file (default: XDG config dir)")
	fs.StringVar(&f.source, "source", "", "Data source: http, dir, sqlite or auto")
	fs.StringVar(&f.server, "server", "", "Upload server base URL")
	fs.StringVar(&f.dir, "dir", "", "Local upload folder")
	fs.StringVar(&f.clients, "clients", "", "clients.json with client labels (dir source)")
	fs.StringVar(&f.db, "db", "", "SQLite blob index database")
	fs.IntVar(&f.pageSize, "page-size", 0, "Top-level entries per client before \"show more\"")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "Maximum folder depth (0 = unbounded)")
	fs.DurationVar(&f.refresh, "refresh", 0, "Refresh interval, e.g. 30s")
	fs.BoolVar(&f.robotTree, "robot-tree", false, "Print the rendered tree as JSON and exit")
	fs.BoolVar(&f.robotStats, "robot-stats", false, "Print statistics and uploads by day as JSON and exit")
	fs.StringVar(&f.query, "query", "", "Search query for --robot-tree and --export-tree")
	fs.BoolVar(&f.revealAll, "reveal-all", false, "Lift pagination for --robot-tree and --export-tree")
	fs.BoolVar(&f.expandAll, "expand-all", false, "Expand every folder for --robot-tree and --export-tree")
	fs.StringVar(&f.exportChart, "export-chart", "", "Write an uploads-by-day chart (.svg or .png) and exit")
	fs.StringVar(&f.exportTree, "export-tree", "", "Write the tree as Markdown and exit (\"-\" previews to stdout)")
	fs.BoolVar(&f.initWizard, "init", false, "Run the configuration wizard and save the result")
	fs.StringVar(&f.serve, "serve", "", "Serve the JSON API on ADDR (e.g. :8080) instead of the TUI")
	fs.StringVar(&f.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&f.version, "version", false, "Show version")
	fs.BoolVar(&f.help, "help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	f.fs = fs
	return f, nil
}

// loadConfig reads the config file and applies explicit flag overrides.
func loadConfig(f *cliFlags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	applyOverrides(&cfg, f)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, f *cliFlags) {
	if f.set["source"] {
		cfg.Source.Kind = f.source
	}
	if f.set["server"] {
		cfg.Source.ServerURL = f.server
	}
	if f.set["dir"] {
		cfg.Source.UploadDir = f.dir
		// A bare --dir means "show this folder" unless a kind was chosen.
		if !f.set["source"] && !f.set["server"] && !f.set["db"] {
			cfg.Source.Kind = config.SourceDir
		}
	}
	if f.set["clients"] {
		cfg.Source.ClientsFile = f.clients
	}
	if f.set["db"] {
		cfg.Source.DBPath = f.db
		if !f.set["source"] && !f.set["server"] && !f.set["dir"] {
			cfg.Source.Kind = config.SourceSQLite
		}
	}
	if f.set["page-size"] {
		cfg.UI.PageSize = f.pageSize
	}
	if f.set["max-depth"] {
		cfg.UI.MaxDepth = f.maxDepth
	}
	if f.set["refresh"] {
		cfg.UI.RefreshInterval = f.refresh
	}
}

func openOptions(cfg config.Config) datasource.OpenOptions {
	return datasource.OpenOptions{
		HTTP:         datasource.HTTPOptions{RetryMax: cfg.HTTP.RetryMax, Timeout: cfg.HTTP.Timeout},
		StorageLimit: cfg.Storage.LimitBytes,
	}
}

// openBackend opens the configured source, or the best discovered one for
// kind auto.
func openBackend(ctx context.Context, cfg config.Config) (*datasource.Backend, error) {
	opts := openOptions(cfg)
	switch cfg.Source.Kind {
	case config.SourceHTTP:
		return datasource.Open(datasource.DataSource{
			Type: datasource.SourceTypeHTTP, Path: cfg.Source.ServerURL, Valid: true,
		}, opts)
	case config.SourceDir:
		clients := cfg.Source.ClientsFile
		if clients == "" {
			clients = datasource.DefaultClientsFile(cfg.Source.UploadDir)
		}
		return datasource.Open(datasource.DataSource{
			Type: datasource.SourceTypeDir, Path: cfg.Source.UploadDir, ClientsFile: clients, Valid: true,
		}, opts)
	case config.SourceSQLite:
		return datasource.Open(datasource.DataSource{
			Type: datasource.SourceTypeSQLite, Path: cfg.Source.DBPath, Valid: true,
		}, opts)
	default:
		return datasource.OpenBest(ctx, datasource.DiscoveryOptions{
			ServerURL:   cfg.Source.ServerURL,
			UploadDir:   cfg.Source.UploadDir,
			ClientsFile: cfg.Source.ClientsFile,
			DBPath:      cfg.Source.DBPath,
			Logger:      func(msg string) { debug.Log("discovery: %s", msg) },
		}, opts)
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if f.help {
		fmt.Fprintln(stdout, "Usage: dropdash [options]")
		fmt.Fprintln(stdout, "\nA terminal dashboard for per-client uploads.")
		f.fs.SetOutput(stdout)
		f.fs.PrintDefaults()
		return 0
	}
	if f.version {
		fmt.Fprintf(stdout, "dropdash %s\n", version.Version)
		return 0
	}

	if f.cpuProfile != "" {
		pf, err := os.Create(f.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer pf.Close()
		if err := pprof.StartCPUProfile(pf); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := loadConfig(f)
	if err != nil && !f.initWizard {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 2
	}

	if f.initWizard {
		return runWizard(f, cfg, stdout, stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening data source: %v\n", err)
		if errors.Is(err, datasource.ErrNoSources) {
			fmt.Fprintln(stderr, "Pass --server, --dir or --db, or run 'dropdash --init'.")
		}
		return 1
	}
	defer backend.Close()
	debug.Log("using source %s", backend.Info)

	switch {
	case f.robotTree, f.robotStats, f.exportChart != "", f.exportTree != "":
		return runOneShot(ctx, f, cfg, backend, stdout, stderr)
	case f.serve != "":
		return runServe(ctx, f.serve, cfg, backend, stderr)
	}

	w := startWatcher(backend.Info)
	if w != nil {
		defer w.Stop()
	}

	m := ui.NewModel(ui.Options{Config: cfg, Backend: backend, Watcher: w})
	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(stderr, "Error running dropdash: %v\n", err)
		return 1
	}
	return 0
}

func runWizard(f *cliFlags, cfg config.Config, stdout, stderr io.Writer) int {
	path := f.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	if path == "" {
		fmt.Fprintln(stderr, "Cannot determine the config directory; pass --config.")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		// Start from defaults when the existing file is unusable.
		cfg = config.DefaultConfig()
	}

	w := export.NewWizard(cfg)
	w.SetOutput(stdout)
	next, err := w.Run()
	if err != nil {
		fmt.Fprintf(stderr, "Wizard cancelled: %v\n", err)
		return 1
	}
	if err := config.SaveTo(next, path); err != nil {
		fmt.Fprintf(stderr, "Error saving config: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Saved %s\n", path)
	return 0
}

// startWatcher watches local sources so edits show up before the next
// periodic refresh. Failures only cost the early refresh.
func startWatcher(info datasource.DataSource) *watcher.Watcher {
	if info.Type != datasource.SourceTypeDir && info.Type != datasource.SourceTypeSQLite {
		return nil
	}
	w, err := watcher.NewWatcher(info.Path,
		watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }),
	)
	if err != nil {
		debug.Log("watcher: %v", err)
		return nil
	}
	if err := w.Start(); err != nil {
		debug.Log("watcher: start %s: %v", info.Path, err)
		return nil
	}
	return w
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests.
	if v := os.Getenv("DROPDASH_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
