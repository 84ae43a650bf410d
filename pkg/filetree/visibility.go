package filetree

// Visibility is the per-node display decision. A node is either shown or
// hidden for exactly one reason.
type Visibility uint8

const (
	Visible Visibility = iota
	HiddenByPagination
	HiddenBySearch
)

func (v Visibility) String() string {
	switch v {
	case HiddenByPagination:
		return "hidden-by-pagination"
	case HiddenBySearch:
		return "hidden-by-search"
	default:
		return "visible"
	}
}

// DefaultPageSize is the number of top-level entries shown per client before
// the "show more" affordance is needed.
const DefaultPageSize = 5

// Pagination holds the page size and which clients have had their hidden
// entries revealed. Reveals last until Reset, which Dashboard calls on every
// refresh.
type Pagination struct {
	k        int
	revealed map[string]bool
}

// NewPagination returns pagination state with page size k. k <= 0 selects
// DefaultPageSize.
func NewPagination(k int) *Pagination {
	if k <= 0 {
		k = DefaultPageSize
	}
	return &Pagination{k: k, revealed: make(map[string]bool)}
}

// PageSize returns K.
func (p *Pagination) PageSize() int {
	if p == nil || p.k <= 0 {
		return DefaultPageSize
	}
	return p.k
}

// RevealAll clears every pagination hide for clientID. Calling it again, or
// for a client with nothing hidden, changes nothing.
func (p *Pagination) RevealAll(clientID string) {
	if p == nil {
		return
	}
	if p.revealed == nil {
		p.revealed = make(map[string]bool)
	}
	p.revealed[clientID] = true
}

// Revealed reports whether RevealAll was called for clientID.
func (p *Pagination) Revealed(clientID string) bool {
	return p != nil && p.revealed[clientID]
}

// Reset forgets every reveal.
func (p *Pagination) Reset() {
	if p == nil {
		return
	}
	clear(p.revealed)
}

// Clone returns an independent copy.
func (p *Pagination) Clone() *Pagination {
	c := NewPagination(p.PageSize())
	if p != nil {
		for id, v := range p.revealed {
			c.revealed[id] = v
		}
	}
	return c
}

// VisibilityState is the result of one ComputeVisibility pass. Only hidden
// nodes are recorded, so identities outside the forest report Visible.
type VisibilityState struct {
	query      string
	hidden     map[string]Visibility
	forcedOpen map[string]bool
	showMore   map[string]bool
}

func newVisibilityState(query string) VisibilityState {
	return VisibilityState{
		query:      query,
		hidden:     make(map[string]Visibility),
		forcedOpen: make(map[string]bool),
		showMore:   make(map[string]bool),
	}
}

// Of returns the mark for the node identity id.
func (v VisibilityState) Of(id string) Visibility {
	if m, ok := v.hidden[id]; ok {
		return m
	}
	return Visible
}

// IsVisible reports whether id is marked Visible.
func (v VisibilityState) IsVisible(id string) bool {
	return v.Of(id) == Visible
}

// ForcedOpen reports whether the folder id was opened by an ancestor reveal.
// Forced opening never touches ExpansionState.
func (v VisibilityState) ForcedOpen(id string) bool {
	return v.forcedOpen[id]
}

// ShowMore reports whether the "show more" affordance is offered for
// clientID.
func (v VisibilityState) ShowMore(clientID string) bool {
	return v.showMore[clientID]
}

// Query returns the query the state was computed for.
func (v VisibilityState) Query() string { return v.query }

// Searching reports whether a non-empty query produced this state.
func (v VisibilityState) Searching() bool { return v.query != "" }

// HiddenCount returns how many nodes carry mark m.
func (v VisibilityState) HiddenCount(m Visibility) int {
	n := 0
	for _, got := range v.hidden {
		if got == m {
			n++
		}
	}
	return n
}

// VisibleTopLevel counts the visible top-level entries of clientID.
func (v VisibilityState) VisibleTopLevel(f *Forest, clientID string) int {
	n := 0
	for _, root := range f.Client(clientID).TopLevel() {
		if v.IsVisible(root.ID) {
			n++
		}
	}
	return n
}

// Equal reports whether two states make the same decisions. The query text
// itself is not compared.
func (v VisibilityState) Equal(o VisibilityState) bool {
	return equalMarks(v.hidden, o.hidden) &&
		equalFlags(v.forcedOpen, o.forcedOpen) &&
		equalFlags(v.showMore, o.showMore)
}

func equalMarks(a, b map[string]Visibility) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		if vb, ok := b[k]; !ok || va != vb {
			return false
		}
	}
	return true
}

func equalFlags(a, b map[string]bool) bool {
	count := func(m map[string]bool) int {
		n := 0
		for _, v := range m {
			if v {
				n++
			}
		}
		return n
	}
	if count(a) != count(b) {
		return false
	}
	for k, v := range a {
		if v && !b[k] {
			return false
		}
	}
	return true
}
