package filetree

import (
	"time"

	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// Options configures a Dashboard.
type Options struct {
	// PageSize is K, the number of top-level entries shown per client before
	// "show more". <= 0 selects DefaultPageSize.
	PageSize int
	// MaxDepth is the optional build depth ceiling; <= 0 means none.
	MaxDepth int
	// IndentStep is the indent per depth level; <= 0 selects
	// DefaultIndentStep.
	IndentStep int
}

// Dashboard owns one forest together with its pagination, expansion and
// query, and keeps the visibility state consistent with them. Every method
// leaves the dashboard fully recomputed before returning. A Dashboard is not
// safe for concurrent use; hosts drive it from a single event loop.
type Dashboard struct {
	opts       Options
	forest     *Forest
	pagination *Pagination
	expansion  *ExpansionState
	query      string
	vis        VisibilityState
}

// NewDashboard returns an empty dashboard.
func NewDashboard(opts Options) *Dashboard {
	d := &Dashboard{
		opts:       opts,
		forest:     newForest(),
		pagination: NewPagination(opts.PageSize),
		expansion:  NewExpansionState(),
	}
	d.recompute()
	return d
}

// Refresh rebuilds the forest from raw. Expanded folders that still exist stay
// expanded and the rest are forgotten. Pagination starts over, so "show more"
// is offered again. An active query is reapplied to the new forest.
func (d *Dashboard) Refresh(raw map[string]model.ClientGroup) {
	start := time.Now()
	d.forest = BuildForest(raw, WithMaxDepth(d.opts.MaxDepth))
	if dropped := d.expansion.Prune(d.forest); dropped > 0 {
		debug.Log("filetree: dropped %d stale expanded folders", dropped)
	}
	d.pagination.Reset()
	d.recompute()
	debug.LogTiming("filetree.Refresh", time.Since(start))
}

// SetQuery applies a new search query. The empty query restores pagination.
func (d *Dashboard) SetQuery(q string) {
	if q == d.query {
		return
	}
	d.query = q
	d.recompute()
}

// Query returns the active query.
func (d *Dashboard) Query() string { return d.query }

// Toggle flips the expansion of the folder id. Unknown identities and files
// are ignored and report false.
func (d *Dashboard) Toggle(id string) bool {
	n, ok := d.forest.Lookup(id)
	if !ok || !n.IsFolder() {
		debug.LogIf(!ok, "filetree: toggle on unknown identity %q ignored", id)
		return false
	}
	d.expansion.Toggle(id)
	return true
}

// RevealAll shows every entry of clientID hidden by pagination. It reports
// whether anything was hidden before the call.
func (d *Dashboard) RevealAll(clientID string) bool {
	if d.forest.Client(clientID) == nil {
		return false
	}
	wasOffered := ComputeVisibility(d.forest, d.pagination, "").ShowMore(clientID)
	d.pagination.RevealAll(clientID)
	d.recompute()
	return wasOffered
}

// ExpandAll expands every folder in the forest and returns how many were
// newly expanded.
func (d *Dashboard) ExpandAll() int {
	n := 0
	d.forest.Walk(func(node *Node) bool {
		if node.IsFolder() && !d.expansion.IsExpanded(node.ID) {
			d.expansion.Set(node.ID, true)
			n++
		}
		return true
	})
	return n
}

// RevealEverything lifts pagination for every client.
func (d *Dashboard) RevealEverything() {
	for _, id := range d.forest.ClientIDs() {
		d.pagination.RevealAll(id)
	}
	d.recompute()
}

// Groups renders the current state.
func (d *Dashboard) Groups() []Group {
	return Render(d.forest, d.vis, d.expansion, WithIndentStep(d.opts.IndentStep))
}

// Visibility returns the current visibility state.
func (d *Dashboard) Visibility() VisibilityState { return d.vis }

// Expansion returns a copy of the expansion state.
func (d *Dashboard) Expansion() *ExpansionState { return d.expansion.Clone() }

// IsExpanded reports whether the folder id is expanded.
func (d *Dashboard) IsExpanded(id string) bool { return d.expansion.IsExpanded(id) }

// Forest returns the current forest.
func (d *Dashboard) Forest() *Forest { return d.forest }

// PageSize returns K.
func (d *Dashboard) PageSize() int { return d.pagination.PageSize() }

func (d *Dashboard) recompute() {
	d.vis = ComputeVisibility(d.forest, d.pagination, d.query)
}
