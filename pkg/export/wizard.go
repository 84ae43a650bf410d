package export

// This file implements the interactive setup wizard behind --init. It asks
// where uploads come from and a few dashboard preferences, then hands back a
// validated config.Config for the caller to save.

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/dropdash/pkg/config"
)

// WizardAnswers holds the raw form values. Numeric fields stay strings so
// huh inputs can bind to them directly.
type WizardAnswers struct {
	Kind        string
	ServerURL   string
	UploadDir   string
	ClientsFile string
	DBPath      string
	PageSize    string
	Refresh     string
	LimitGiB    string
	DownloadDir string
}

// Wizard walks the user through creating a config file.
type Wizard struct {
	base    config.Config
	answers WizardAnswers
	out     io.Writer
}

// NewWizard seeds the form with base, usually the currently loaded config.
func NewWizard(base config.Config) *Wizard {
	return &Wizard{
		base:    base,
		answers: answersFromConfig(base),
		out:     os.Stdout,
	}
}

// SetOutput redirects the banner and step headers.
func (w *Wizard) SetOutput(out io.Writer) { w.out = out }

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Run executes the interactive flow and returns the resulting config.
func (w *Wizard) Run() (config.Config, error) {
	w.printBanner()

	w.step("Step 1: Upload source")
	kindForm := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do the uploads come from?").
				Options(
					huh.NewOption("Upload server (HTTP)", config.SourceHTTP),
					huh.NewOption("Local upload folder", config.SourceDir),
					huh.NewOption("Blob index database (SQLite)", config.SourceSQLite),
					huh.NewOption("Detect automatically", config.SourceAuto),
				).
				Value(&w.answers.Kind),
		),
	)
	if err := kindForm.Run(); err != nil {
		return config.Config{}, err
	}

	w.step("Step 2: Source details")
	if err := newForm(w.sourceGroup()).Run(); err != nil {
		return config.Config{}, err
	}

	w.step("Step 3: Dashboard")
	prefs := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Entries per client before \"show more\"").
				Value(&w.answers.PageSize).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Refresh interval").
				Description("Go duration, e.g. 30s or 2m").
				Value(&w.answers.Refresh).
				Validate(validateDuration),
			huh.NewInput().
				Title("Storage limit (GiB)").
				Value(&w.answers.LimitGiB).
				Validate(validatePositiveFloat),
			huh.NewInput().
				Title("Download directory").
				Value(&w.answers.DownloadDir),
		),
	)
	if err := prefs.Run(); err != nil {
		return config.Config{}, err
	}

	return ApplyWizardAnswers(w.base, w.answers)
}

func (w *Wizard) sourceGroup() *huh.Group {
	switch w.answers.Kind {
	case config.SourceDir:
		return huh.NewGroup(
			huh.NewInput().
				Title("Upload folder").
				Description("Contains one folder per client").
				Value(&w.answers.UploadDir).
				Validate(validateRequired),
			huh.NewInput().
				Title("clients.json (optional)").
				Value(&w.answers.ClientsFile),
		)
	case config.SourceSQLite:
		return huh.NewGroup(
			huh.NewInput().
				Title("Blob index database").
				Value(&w.answers.DBPath).
				Validate(validateRequired),
		)
	default:
		return huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Value(&w.answers.ServerURL).
				Validate(validateURL),
		)
	}
}

func (w *Wizard) printBanner() {
	fmt.Fprintln(w.out, "")
	fmt.Fprintln(w.out, "╔══════════════════════════════════════════════════╗")
	fmt.Fprintln(w.out, "║           dropdash → Configuration Wizard        ║")
	fmt.Fprintln(w.out, "╠══════════════════════════════════════════════════╣")
	fmt.Fprintln(w.out, "║  Press Ctrl+C anytime to cancel                  ║")
	fmt.Fprintln(w.out, "╚══════════════════════════════════════════════════╝")
	fmt.Fprintln(w.out, "")
}

func (w *Wizard) step(title string) {
	fmt.Fprintln(w.out, title)
	fmt.Fprintln(w.out, strings.Repeat("─", len([]rune(title))))
}

func answersFromConfig(c config.Config) WizardAnswers {
	kind := c.Source.Kind
	if kind == "" {
		kind = config.SourceAuto
	}
	return WizardAnswers{
		Kind:        kind,
		ServerURL:   c.Source.ServerURL,
		UploadDir:   c.Source.UploadDir,
		ClientsFile: c.Source.ClientsFile,
		DBPath:      c.Source.DBPath,
		PageSize:    strconv.Itoa(c.UI.PageSize),
		Refresh:     c.UI.RefreshInterval.String(),
		LimitGiB:    strconv.FormatFloat(float64(c.Storage.LimitBytes)/(1<<30), 'f', -1, 64),
		DownloadDir: c.UI.DownloadDir,
	}
}

// ApplyWizardAnswers merges a onto base and validates the result. Blank
// numeric answers keep the base value.
func ApplyWizardAnswers(base config.Config, a WizardAnswers) (config.Config, error) {
	cfg := base
	cfg.Source.Kind = strings.TrimSpace(a.Kind)
	cfg.Source.ServerURL = strings.TrimSpace(a.ServerURL)
	cfg.Source.UploadDir = strings.TrimSpace(a.UploadDir)
	cfg.Source.ClientsFile = strings.TrimSpace(a.ClientsFile)
	cfg.Source.DBPath = strings.TrimSpace(a.DBPath)
	if d := strings.TrimSpace(a.DownloadDir); d != "" {
		cfg.UI.DownloadDir = d
	}

	if s := strings.TrimSpace(a.PageSize); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return config.Config{}, fmt.Errorf("page size: %w", err)
		}
		cfg.UI.PageSize = n
	}
	if s := strings.TrimSpace(a.Refresh); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return config.Config{}, fmt.Errorf("refresh interval: %w", err)
		}
		cfg.UI.RefreshInterval = d
	}
	if s := strings.TrimSpace(a.LimitGiB); s != "" {
		g, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return config.Config{}, fmt.Errorf("storage limit: %w", err)
		}
		cfg.Storage.LimitBytes = int64(g * (1 << 30))
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter an http(s) URL")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive whole number")
	}
	return nil
}

func validatePositiveFloat(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fmt.Errorf("enter a duration like 30s")
	}
	return nil
}
