package filetree

// ActionKind names a file action intent.
type ActionKind string

const (
	ActionView     ActionKind = "view"
	ActionDownload ActionKind = "download"
	ActionDelete   ActionKind = "delete"
)

// Action is an intent the host carries out for a file, keyed by its path.
type Action struct {
	Kind ActionKind `json:"kind"`
	Path string     `json:"path"`
}

// FileActions returns the actions offered for a file at path.
func FileActions(path string) []Action {
	return []Action{
		{Kind: ActionView, Path: path},
		{Kind: ActionDownload, Path: path},
		{Kind: ActionDelete, Path: path},
	}
}

// Row is one rendered node.
type Row struct {
	ClientID string `json:"client_id"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"-"`
	Type     string `json:"type"`
	Depth    int    `json:"depth"`
	Indent   int    `json:"indent"`
	// Path and Actions are set for files only.
	Path    string   `json:"path,omitempty"`
	Actions []Action `json:"actions,omitempty"`
	// Expanded is the folder's persisted flag. Open reports whether its
	// children follow in the output, which also happens when a search
	// forces the folder open.
	Expanded   bool `json:"expanded,omitempty"`
	Open       bool `json:"open,omitempty"`
	ForcedOpen bool `json:"forced_open,omitempty"`
	ChildCount int  `json:"child_count,omitempty"`
}

// IsFolder reports whether the row is a folder.
func (r Row) IsFolder() bool { return r.Kind == KindFolder }

// Group is one client's rendered tree.
type Group struct {
	ClientID string `json:"client_id"`
	Label    string `json:"label"`
	// Empty is set when the client has no entries at all; hosts show a
	// "no files" placeholder.
	Empty     bool  `json:"empty"`
	ShowMore  bool  `json:"show_more"`
	FileCount int   `json:"file_count"`
	Rows      []Row `json:"rows"`
}

// DefaultIndentStep is the indent added per depth level.
const DefaultIndentStep = 2

// RenderOption configures Render.
type RenderOption func(*renderOptions)

type renderOptions struct {
	indentStep int
}

// WithIndentStep sets the indent added per depth level.
func WithIndentStep(step int) RenderOption {
	return func(o *renderOptions) {
		if step > 0 {
			o.indentStep = step
		}
	}
}

// Render produces the display structure for f. Each shown node appears once,
// top-level entries in descending order and folder children in ascending
// order. A folder's children follow it only when the folder is visible and
// either expanded or forced open. The output is freshly allocated on every
// call, so repeated calls with the same inputs return equal results.
func Render(f *Forest, vis VisibilityState, exp *ExpansionState, opts ...RenderOption) []Group {
	o := renderOptions{indentStep: DefaultIndentStep}
	for _, opt := range opts {
		opt(&o)
	}

	groups := make([]Group, 0, f.Len())
	for _, clientID := range f.ClientIDs() {
		ct := f.Client(clientID)
		g := Group{
			ClientID: clientID,
			Label:    ct.Label,
			Empty:    ct.Empty(),
			ShowMore: vis.ShowMore(clientID),
			Rows:     []Row{},
		}
		for _, root := range ct.TopLevel() {
			g.FileCount += CountFiles(root)
			g.Rows = appendRows(g.Rows, root, vis, exp, o)
		}
		groups = append(groups, g)
	}
	return groups
}

func appendRows(rows []Row, n *Node, vis VisibilityState, exp *ExpansionState, o renderOptions) []Row {
	if !vis.IsVisible(n.ID) {
		return rows
	}
	row := Row{
		ClientID: n.ClientID,
		ID:       n.ID,
		Name:     n.Name,
		Kind:     n.Kind,
		Type:     n.Kind.String(),
		Depth:    n.Depth,
		Indent:   n.Depth * o.indentStep,
	}
	if !n.IsFolder() {
		row.Path = n.Path
		row.Actions = FileActions(n.Path)
		return append(rows, row)
	}

	row.Expanded = exp.IsExpanded(n.ID)
	row.ForcedOpen = vis.ForcedOpen(n.ID)
	row.Open = row.Expanded || row.ForcedOpen
	row.ChildCount = len(n.Children)
	rows = append(rows, row)
	if !row.Open {
		return rows
	}
	for _, c := range n.SortedChildren() {
		rows = appendRows(rows, c, vis, exp, o)
	}
	return rows
}
