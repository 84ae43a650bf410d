package filetree

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/dropdash/pkg/model"
	"github.com/vanderheijden86/dropdash/pkg/testutil"
)

// rawTree draws a random nested mapping with names over a small alphabet so
// that random queries hit often.
func rawTree(depth int) *rapid.Generator[map[string]model.RawNode] {
	return rapid.Custom(func(t *rapid.T) map[string]model.RawNode {
		width := rapid.IntRange(0, 4).Draw(t, "width")
		tree := make(map[string]model.RawNode, width)
		for i := 0; i < width; i++ {
			name := rapid.StringMatching(`[abAB]{1,3}(\.pdf)?`).Draw(t, "name")
			if depth > 0 && rapid.Bool().Draw(t, "folder") {
				tree[name] = testutil.Folder(rawTree(depth-1).Draw(t, "children"))
			} else {
				tree[name] = testutil.File(name)
			}
		}
		return tree
	})
}

func rawForest() *rapid.Generator[map[string]model.ClientGroup] {
	return rapid.Custom(func(t *rapid.T) map[string]model.ClientGroup {
		clients := rapid.IntRange(1, 3).Draw(t, "clients")
		out := make(map[string]model.ClientGroup, clients)
		for c := 0; c < clients; c++ {
			id := fmt.Sprintf("client-%d", c)
			top := rapid.IntRange(0, 9).Draw(t, "top")
			tree := make(map[string]model.RawNode, top)
			for i := 0; i < top; i++ {
				tree[fmt.Sprintf("2024-01-%02d", i+1)] = testutil.Folder(rawTree(2).Draw(t, "day"))
			}
			out[id] = model.ClientGroup{Label: id, Tree: tree}
		}
		return out
	})
}

func queryGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[abAB.]{1,2}`)
}

func TestProperty_PaginationCountsMinOfLenAndK(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := BuildForest(rawForest().Draw(t, "forest"))
		k := rapid.IntRange(1, 10).Draw(t, "k")
		vis := ComputeVisibility(f, NewPagination(k), "")

		for _, id := range f.ClientIDs() {
			n := len(f.Client(id).Roots)
			want := min(n, k)
			if got := vis.VisibleTopLevel(f, id); got != want {
				t.Fatalf("client %s: expected %d visible top-level, got %d", id, want, got)
			}
			if vis.ShowMore(id) != (n > k) {
				t.Fatalf("client %s: show more = %v with %d entries and k=%d", id, vis.ShowMore(id), n, k)
			}
		}
	})
}

func TestProperty_RevealAllIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := BuildForest(rawForest().Draw(t, "forest"))
		p := NewPagination(rapid.IntRange(1, 6).Draw(t, "k"))
		for _, id := range f.ClientIDs() {
			p.RevealAll(id)
		}
		once := ComputeVisibility(f, p, "")
		for _, id := range f.ClientIDs() {
			p.RevealAll(id)
		}
		twice := ComputeVisibility(f, p, "")
		if !once.Equal(twice) {
			t.Fatal("RevealAll is not idempotent")
		}
		if once.HiddenCount(HiddenByPagination) != 0 {
			t.Fatal("RevealAll left pagination hides behind")
		}
	})
}

func TestProperty_SearchVisibleNodesAreJustified(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := BuildForest(rawForest().Draw(t, "forest"))
		q := queryGen().Draw(t, "query")
		vis := ComputeVisibility(f, NewPagination(5), q)

		matches := func(n *Node) bool {
			return strings.Contains(strings.ToLower(n.Name), strings.ToLower(q))
		}
		hasMatchingDescendant := func(n *Node) bool {
			found := false
			n.walk(func(d *Node) bool {
				if d != n && matches(d) {
					found = true
				}
				return !found
			})
			return found
		}
		hasMatchingFolderAncestor := func(n *Node) bool {
			for a := n.Parent; a != nil; a = a.Parent {
				if matches(a) {
					return true
				}
			}
			return false
		}

		f.Walk(func(n *Node) bool {
			visible := vis.IsVisible(n.ID)
			justified := matches(n) || hasMatchingDescendant(n) || hasMatchingFolderAncestor(n)
			if visible && !justified {
				t.Fatalf("%s is visible without a reason for query %q", n.ID, q)
			}
			if !visible && justified {
				t.Fatalf("%s should be visible for query %q", n.ID, q)
			}
			if !visible && vis.Of(n.ID) != HiddenBySearch {
				t.Fatalf("%s hidden for the wrong reason: %v", n.ID, vis.Of(n.ID))
			}
			return true
		})
		for _, id := range f.ClientIDs() {
			if vis.ShowMore(id) {
				t.Fatalf("show more offered during search for %s", id)
			}
		}
	})
}

func TestProperty_ClearingQueryRestoresPagination(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rawForest().Draw(t, "forest")
		k := rapid.IntRange(1, 6).Draw(t, "k")

		d := NewDashboard(Options{PageSize: k})
		d.Refresh(raw)
		queries := rapid.SliceOfN(queryGen(), 1, 4).Draw(t, "queries")
		for _, q := range queries {
			d.SetQuery(q)
		}
		d.SetQuery("")

		want := ComputeVisibility(d.Forest(), NewPagination(k), "")
		if !d.Visibility().Equal(want) {
			t.Fatal("clearing the query did not restore the pagination state")
		}
	})
}

func TestProperty_SearchNeverTouchesExpansion(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDashboard(Options{})
		d.Refresh(rawForest().Draw(t, "forest"))

		var folders []string
		d.Forest().Walk(func(n *Node) bool {
			if n.IsFolder() {
				folders = append(folders, n.ID)
			}
			return true
		})
		sort.Strings(folders)
		for _, id := range folders {
			if rapid.Bool().Draw(t, "expand") {
				d.Toggle(id)
			}
		}
		before := d.Expansion()

		queries := rapid.SliceOfN(rapid.StringMatching(`[abAB.]{0,2}`), 1, 5).Draw(t, "queries")
		for _, q := range queries {
			d.SetQuery(q)
		}
		if !d.Expansion().Equal(before) {
			t.Fatalf("expansion changed: %v -> %v", before.IDs(), d.Expansion().IDs())
		}
	})
}

func TestProperty_ToggleIsOwnInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfN(rapid.StringMatching(`c/[ab]{1,3}`), 0, 6).Draw(t, "ids")
		e := NewExpansionState(ids...)
		before := e.Clone()

		target := rapid.StringMatching(`c/[ab]{1,3}`).Draw(t, "target")
		e.Toggle(target)
		e.Toggle(target)
		if !e.Equal(before) {
			t.Fatalf("toggle twice changed state: %v -> %v", before.IDs(), e.IDs())
		}
	})
}

func TestProperty_RenderIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDashboard(Options{PageSize: rapid.IntRange(1, 6).Draw(t, "k")})
		d.Refresh(rawForest().Draw(t, "forest"))
		d.SetQuery(rapid.StringMatching(`[ab]{0,2}`).Draw(t, "query"))

		a := d.Groups()
		b := d.Groups()
		if fmt.Sprintf("%+v", a) != fmt.Sprintf("%+v", b) {
			t.Fatal("rendering twice produced different output")
		}
	})
}
