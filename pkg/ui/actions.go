package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
)

// actionTimeout bounds a single view, download or delete.
const actionTimeout = 2 * time.Minute

// ErrReadOnly is reported when the source offers no file actions.
var ErrReadOnly = errors.New("source is read-only")

// ActionResultMsg reports the outcome of a file action.
type ActionResultMsg struct {
	Action filetree.Action
	// Target is the local file produced by view or download.
	Target string
	Err    error
}

// openerDisabled reports whether opening files with the OS viewer is
// suppressed, as in tests and headless sessions.
func openerDisabled() bool {
	return os.Getenv("DROPDASH_NO_BROWSER") != "" || os.Getenv("DROPDASH_TEST_MODE") != ""
}

// FileActionCmd carries out a view, download or delete intent.
func FileActionCmd(actions datasource.Actions, a filetree.Action, downloadDir string) tea.Cmd {
	return func() tea.Msg {
		if actions == nil {
			return ActionResultMsg{Action: a, Err: ErrReadOnly}
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		var (
			target string
			err    error
		)
		switch a.Kind {
		case filetree.ActionView:
			target, err = actions.View(ctx, a.Path)
			if err == nil && !openerDisabled() {
				if startErr := datasource.OpenerCommand(target).Start(); startErr != nil {
					err = fmt.Errorf("opening %s: %w", target, startErr)
				}
			}
		case filetree.ActionDownload:
			if err = os.MkdirAll(downloadDir, 0o755); err == nil {
				target, err = actions.Download(ctx, a.Path, downloadDir)
			}
		case filetree.ActionDelete:
			err = actions.Delete(ctx, a.Path)
		default:
			err = fmt.Errorf("unknown action %q", a.Kind)
		}
		debug.Log("ui: %s %s -> %q err=%v", a.Kind, a.Path, target, err)
		return ActionResultMsg{Action: a, Target: target, Err: err}
	}
}

// describe returns the status line for a finished action.
func (r ActionResultMsg) describe() string {
	name := path.Base(r.Action.Path)
	if r.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", r.Action.Kind, name, r.Err)
	}
	switch r.Action.Kind {
	case filetree.ActionView:
		return fmt.Sprintf("Opened %s", name)
	case filetree.ActionDownload:
		return fmt.Sprintf("Saved %s to %s", name, r.Target)
	case filetree.ActionDelete:
		return fmt.Sprintf("Deleted %s", name)
	}
	return ""
}

// copyPath writes the file path to the system clipboard.
func copyPath(p string) (string, bool) {
	if err := clipboard.WriteAll(p); err != nil {
		return fmt.Sprintf("Clipboard error: %v", err), true
	}
	return fmt.Sprintf("Copied %s to clipboard", p), false
}

// deleteConfirm is the modal asking before a delete. It is held by pointer
// so the form's bound value survives Model copies.
type deleteConfirm struct {
	form   *huh.Form
	path   string
	accept bool
}

func newDeleteConfirm(filePath string, width int) *deleteConfirm {
	c := &deleteConfirm{path: filePath}
	if width <= 0 || width > 60 {
		width = 60
	}
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Delete this file?").
				Description(filePath).
				Affirmative("Delete").
				Negative("Keep").
				Value(&c.accept),
		),
	).WithTheme(huh.ThemeDracula()).WithWidth(width).WithShowHelp(false)
	return c
}

// update feeds msg to the form. It returns whether the form finished.
func (c *deleteConfirm) update(msg tea.Msg) (done bool, cmd tea.Cmd) {
	f, cmd := c.form.Update(msg)
	if ff, ok := f.(*huh.Form); ok {
		c.form = ff
	}
	if c.form.State != huh.StateNormal {
		// The form's own completion command would quit the program.
		return true, nil
	}
	return false, cmd
}

// confirmed reports whether the user chose to delete.
func (c *deleteConfirm) confirmed() bool {
	return c.form.State == huh.StateCompleted && c.accept
}
