package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/config"
	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
	"github.com/vanderheijden86/dropdash/pkg/watcher"
)

// panel is the view shown in the body.
type panel int

const (
	panelTree panel = iota
	panelClients
	panelAnalytics
	panelCount
)

func (p panel) String() string {
	switch p {
	case panelClients:
		return "clients"
	case panelAnalytics:
		return "analytics"
	default:
		return "tree"
	}
}

// SnapshotMsg carries the result of one load.
type SnapshotMsg struct {
	Snapshot model.Snapshot
	Err      error
}

// FileChangedMsg is sent when the watched upload store changes on disk.
type FileChangedMsg struct{}

// refreshTickMsg drives the periodic refresh.
type refreshTickMsg struct{}

// loadTimeout bounds one refresh cycle.
const loadTimeout = time.Minute

// LoadCmd fetches a snapshot from src.
func LoadCmd(src datasource.Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		snap, err := src.Load(ctx)
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}

func refreshTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// WatchFileCmd waits for the next change and sends FileChangedMsg.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// Options configures the TUI model.
type Options struct {
	Config  config.Config
	Backend *datasource.Backend
	// Watcher is optional; when set, local changes trigger an early refresh.
	Watcher *watcher.Watcher
}

// Model is the main Bubble Tea model for dropdash
type Model struct {
	// Data
	cfg      config.Config
	backend  *datasource.Backend
	watcher  *watcher.Watcher
	dash     *filetree.Dashboard
	snapshot model.Snapshot
	loaded   bool
	loading  bool
	// pendingReload records a reload requested while a load was in flight.
	pendingReload bool

	// UI
	theme     Theme
	tree      TreeModel
	search    textinput.Model
	searching bool
	spinner   spinner.Model
	helpVP    viewport.Model
	showHelp  bool
	panel     panel
	confirm   *deleteConfirm

	width  int
	height int

	statusMsg     string
	statusIsError bool
}

// NewModel creates the dashboard model. Call Init to start loading.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.NewRenderer(os.Stdout))
	cfg := opts.Config

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search files and folders"
	ti.CharLimit = 256

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = theme.InfoText

	m := Model{
		cfg:     cfg,
		backend: opts.Backend,
		watcher: opts.Watcher,
		dash: filetree.NewDashboard(filetree.Options{
			PageSize:   cfg.UI.PageSize,
			MaxDepth:   cfg.UI.MaxDepth,
			IndentStep: cfg.UI.Indent,
		}),
		theme:   theme,
		tree:    NewTreeModel(theme),
		search:  ti,
		spinner: sp,
		helpVP:  viewport.New(80, 20),
		width:   80,
		height:  24,
		loading: opts.Backend != nil,
	}
	m.resize()
	m.rebuild()
	return m
}

// Dashboard exposes the underlying view-model.
func (m Model) Dashboard() *filetree.Dashboard { return m.dash }

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.backend != nil {
		cmds = append(cmds, LoadCmd(m.backend.Source), m.spinner.Tick)
	}
	if m.cfg.UI.RefreshInterval > 0 {
		cmds = append(cmds, refreshTickCmd(m.cfg.UI.RefreshInterval))
	}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The confirm form needs every message type, not only keys.
	if m.confirm != nil {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			m.confirm = nil
			m.setStatus("Delete cancelled", false)
			return m, nil
		}
		done, cmd := m.confirm.update(msg)
		if !done {
			return m, cmd
		}
		c := m.confirm
		m.confirm = nil
		if !c.confirmed() {
			m.setStatus("Delete cancelled", false)
			return m, nil
		}
		m.setStatus("Deleting "+c.path+"…", false)
		return m, FileActionCmd(m.actions(), filetree.Action{Kind: filetree.ActionDelete, Path: c.path}, m.cfg.UI.DownloadDir)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case SnapshotMsg:
		m.loading = false
		if msg.Err != nil {
			debug.Warn("ui: refresh failed: %v", msg.Err)
			m.setStatus(fmt.Sprintf("Refresh failed: %v", msg.Err), true)
		} else {
			m.applySnapshot(msg.Snapshot)
		}
		if m.pendingReload {
			m.pendingReload = false
			cmds = append(cmds, m.startLoad())
		}

	case refreshTickMsg:
		cmds = append(cmds, m.startLoad(), refreshTickCmd(m.cfg.UI.RefreshInterval))

	case FileChangedMsg:
		cmds = append(cmds, m.startLoad())
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}

	case ActionResultMsg:
		m.setStatus(msg.describe(), msg.Err != nil)
		if msg.Err == nil && msg.Action.Kind == filetree.ActionDelete {
			cmds = append(cmds, m.startLoad())
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		var cmd tea.Cmd
		switch {
		case m.showHelp:
			m, cmd = m.handleHelpKeys(msg)
		case m.searching:
			m, cmd = m.handleSearchKeys(msg)
		default:
			m, cmd = m.handleKeys(msg)
		}
		cmds = append(cmds, cmd)

	default:
		if m.searching {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// applySnapshot installs a fresh snapshot, keeping expansion and the query.
func (m *Model) applySnapshot(snap model.Snapshot) {
	if m.loaded {
		diff := datasource.DiffSnapshots(m.snapshot, snap, datasource.DefaultDiffOptions())
		if diff.HasChanges() {
			m.setStatus(diff.Summary(), false)
		}
	}
	m.snapshot = snap
	m.loaded = true
	m.dash.Refresh(snap.Groups)
	m.rebuild()
}

// startLoad dispatches a load unless one is already in flight, in which case
// a single follow-up load runs once the current one lands.
func (m *Model) startLoad() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	if m.loading {
		m.pendingReload = true
		return nil
	}
	m.loading = true
	return tea.Batch(LoadCmd(m.backend.Source), m.spinner.Tick)
}

func (m *Model) actions() datasource.Actions {
	if m.backend == nil {
		return nil
	}
	return m.backend.Actions
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusMsg = s
	m.statusIsError = isErr
}

func (m *Model) rebuild() {
	m.tree.Build(m.dash.Groups(), m.dash.Query())
}

// bodyHeight is the room left after the title, search and footer rows.
func (m Model) bodyHeight() int {
	h := m.height - 3
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) resize() {
	m.tree.SetSize(m.width, m.bodyHeight())
	m.search.Width = m.width - 4
	m.helpVP.Width = m.width
	m.helpVP.Height = m.bodyHeight()
	m.helpVP.SetContent(renderHelp(m.width - 4))
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	// Keys shared by every panel.
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = true
		m.helpVP.GotoTop()
		return m, nil
	case "tab":
		m.panel = (m.panel + 1) % panelCount
		return m, nil
	case "shift+tab":
		m.panel = (m.panel + panelCount - 1) % panelCount
		return m, nil
	case "r":
		m.setStatus("Refreshing…", false)
		return m, m.startLoad()
	case "/":
		m.panel = panelTree
		m.searching = true
		return m, m.search.Focus()
	case "ctrl+u":
		m.clearSearch()
		return m, nil
	}

	if m.panel != panelTree {
		return m, nil
	}
	return m.handleTreeKeys(msg)
}

func (m Model) handleTreeKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.tree.MoveDown()
	case "k", "up":
		m.tree.MoveUp()
	case "pgdown", "ctrl+d":
		m.tree.PageDown()
	case "pgup", "ctrl+b":
		m.tree.PageUp()
	case "g", "home":
		m.tree.JumpToTop()
	case "G", "end":
		m.tree.JumpToBottom()
	case "]":
		m.tree.NextGroup()
	case "[":
		m.tree.PrevGroup()

	case "enter", " ":
		l, ok := m.tree.Selected()
		if !ok {
			break
		}
		switch {
		case l.kind == lineShowMore:
			m.revealAll(l.clientID)
		case l.kind == lineNode && l.row.IsFolder():
			m.dash.Toggle(l.row.ID)
			m.rebuild()
		}

	case "m":
		m.revealAll(m.tree.SelectedClientID())

	case "v", "d":
		f := m.tree.SelectedFile()
		if f == nil {
			m.setStatus("Select a file first", true)
			break
		}
		kind := filetree.ActionView
		if msg.String() == "d" {
			kind = filetree.ActionDownload
		}
		if m.actions() == nil {
			m.setStatus(ErrReadOnly.Error(), true)
			break
		}
		m.setStatus(fmt.Sprintf("%s %s…", kind, f.Name), false)
		return m, FileActionCmd(m.actions(), filetree.Action{Kind: kind, Path: f.Path}, m.cfg.UI.DownloadDir)

	case "x":
		f := m.tree.SelectedFile()
		if f == nil {
			m.setStatus("Select a file first", true)
			break
		}
		if m.actions() == nil {
			m.setStatus(ErrReadOnly.Error(), true)
			break
		}
		m.confirm = newDeleteConfirm(f.Path, m.width-4)
		return m, m.confirm.form.Init()

	case "y":
		f := m.tree.SelectedFile()
		if f == nil {
			m.setStatus("Select a file first", true)
			break
		}
		m.setStatus(copyPath(f.Path))
	}
	return m, nil
}

func (m *Model) revealAll(clientID string) {
	if clientID == "" {
		return
	}
	if !m.dash.Visibility().ShowMore(clientID) {
		m.setStatus("Nothing more to show", false)
		return
	}
	m.dash.RevealAll(clientID)
	m.rebuild()
	if ct := m.dash.Forest().Client(clientID); ct != nil {
		m.setStatus("Showing all entries for "+ct.Label, false)
	}
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "ctrl+u":
		m.clearSearch()
		return m, nil
	case "down", "up":
		// Navigate results without leaving the search box.
		if msg.String() == "down" {
			m.tree.MoveDown()
		} else {
			m.tree.MoveUp()
		}
		return m, nil
	}

	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.dash.SetQuery(v)
		m.rebuild()
	}
	return m, cmd
}

func (m *Model) clearSearch() {
	m.search.SetValue("")
	if m.dash.Query() != "" {
		m.dash.SetQuery("")
		m.rebuild()
	}
}

func (m Model) handleHelpKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "?", "esc", "q":
		m.showHelp = false
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.helpVP, cmd = m.helpVP.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var body string
	switch {
	case m.showHelp:
		body = m.helpVP.View()
	case m.panel == panelClients:
		body = renderClientsPanel(m.snapshot.Clients, m.width, m.theme)
	case m.panel == panelAnalytics:
		u := filetree.ComputeUsage(m.dash.Forest(), m.snapshot.Analytics, m.cfg.Storage.LimitBytes)
		body = renderAnalyticsPanel(u, m.cfg.Storage.WarnPercent, m.width, m.theme)
	default:
		body = m.tree.View()
	}

	if m.confirm != nil {
		modal := FocusedPanelStyle.Padding(1, 2).Render(m.confirm.form.View())
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, modal)
	}

	body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.renderSearchBar(),
		body,
		m.renderFooter(),
	)
}

func (m Model) renderTitle() string {
	t := m.theme
	var parts []string
	parts = append(parts, t.PrimaryBold.Render("dropdash"))
	if m.backend != nil {
		parts = append(parts, t.MutedText.Render(string(m.backend.Info.Type)+" "+m.backend.Info.Path))
	}
	st := filetree.ComputeStats(m.dash.Forest(), 0)
	parts = append(parts, fmt.Sprintf("%d clients, %d files", st.Clients, st.Files))

	tabs := make([]string, 0, panelCount)
	for p := panelTree; p < panelCount; p++ {
		if p == m.panel {
			tabs = append(tabs, t.PrimaryBold.Render("["+p.String()+"]"))
		} else {
			tabs = append(tabs, t.MutedText.Render(p.String()))
		}
	}
	parts = append(parts, strings.Join(tabs, " "))

	if m.loading {
		parts = append(parts, m.spinner.View()+t.InfoText.Render(" refreshing"))
	} else if m.loaded {
		parts = append(parts, t.MutedText.Render("updated "+m.snapshot.FetchedAt.Format("15:04:05")))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderSearchBar() string {
	if m.searching || m.search.Value() != "" {
		return m.search.View()
	}
	return m.theme.MutedText.Render("/ search")
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		style := m.theme.SuccessText
		prefix := "✓ "
		if m.statusIsError {
			style = m.theme.DangerText
			prefix = "✗ "
		}
		return style.Render(truncateRunesHelper(prefix+m.statusMsg, m.width, "…"))
	}

	type hint struct {
		key   string
		label string
	}
	var hints []hint
	switch {
	case m.searching:
		hints = []hint{{"esc", "done"}, {"ctrl+u", "clear"}, {"↑/↓", "move"}}
	case m.panel == panelTree:
		hints = []hint{{"/", "search"}, {"enter", "fold"}, {"m", "more"}, {"v", "view"}, {"d", "download"}, {"x", "delete"}, {"y", "copy"}, {"tab", "panel"}, {"?", "help"}}
	default:
		hints = []hint{{"tab", "panel"}, {"r", "refresh"}, {"?", "help"}, {"q", "quit"}}
	}
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, m.theme.PrimaryBold.Render(h.key)+" "+m.theme.MutedText.Render(h.label))
	}
	return strings.Join(parts, "  ")
}
