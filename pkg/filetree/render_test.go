package filetree

import (
	"reflect"
	"testing"

	"github.com/vanderheijden86/dropdash/pkg/testutil"
)

func TestRender_CollapsedByDefault(t *testing.T) {
	f := BuildForest(sampleRaw())
	groups := Render(f, ComputeVisibility(f, nil, ""), NewExpansionState())

	g := groups[0]
	if g.Label != "Front Desk" {
		t.Errorf("expected label, got %q", g.Label)
	}
	if g.FileCount != 3 {
		t.Errorf("expected 3 files, got %d", g.FileCount)
	}
	var names []string
	for _, r := range g.Rows {
		names = append(names, r.Name)
	}
	testutil.AssertStrings(t, names, "readme.txt", "2024-03-01")
}

func TestRender_ExpandedChildrenAscendingWithIndent(t *testing.T) {
	f := BuildForest(sampleRaw())
	exp := NewExpansionState("client-abcdef123/2024-03-01", "client-abcdef123/2024-03-01/scans")
	groups := Render(f, ComputeVisibility(f, nil, ""), exp, WithIndentStep(4))

	rows := groups[0].Rows
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
	}
	testutil.AssertStrings(t, names, "readme.txt", "2024-03-01", "invoice.pdf", "scans", "page1.tif")

	wantIndent := []int{0, 0, 4, 4, 8}
	for i, r := range rows {
		if r.Indent != wantIndent[i] {
			t.Errorf("row %s: expected indent %d, got %d", r.Name, wantIndent[i], r.Indent)
		}
	}

	day := rows[1]
	if !day.IsFolder() || !day.Expanded || !day.Open || day.ForcedOpen {
		t.Errorf("unexpected day folder row: %+v", day)
	}
	if day.ChildCount != 2 {
		t.Errorf("expected 2 children, got %d", day.ChildCount)
	}
}

func TestRender_NestedExpandedUnderCollapsedParentStaysHidden(t *testing.T) {
	f := BuildForest(sampleRaw())
	exp := NewExpansionState("client-abcdef123/2024-03-01/scans")
	groups := Render(f, ComputeVisibility(f, nil, ""), exp)

	for _, r := range groups[0].Rows {
		if r.Name == "scans" || r.Name == "page1.tif" {
			t.Errorf("%s should not render under a collapsed parent", r.Name)
		}
	}
}

func TestRender_HiddenFolderHidesChildrenEvenIfExpanded(t *testing.T) {
	f := BuildForest(testutil.Single("c1", "one", testutil.DateFolders("c1", 6)))
	exp := NewExpansionState("c1/2024-01-01")
	groups := Render(f, ComputeVisibility(f, NewPagination(5), ""), exp)

	for _, r := range groups[0].Rows {
		if r.ID == "c1/2024-01-01" || r.ID == "c1/2024-01-01/upload.pdf" {
			t.Errorf("%s belongs to a paginated-away folder", r.ID)
		}
	}
}

func TestRender_FileActions(t *testing.T) {
	f := BuildForest(sampleRaw())
	groups := Render(f, ComputeVisibility(f, nil, ""), NewExpansionState())

	readme := groups[0].Rows[0]
	if readme.Path != "client-abcdef123/readme.txt" {
		t.Fatalf("unexpected path %q", readme.Path)
	}
	want := []Action{
		{Kind: ActionView, Path: readme.Path},
		{Kind: ActionDownload, Path: readme.Path},
		{Kind: ActionDelete, Path: readme.Path},
	}
	if !reflect.DeepEqual(readme.Actions, want) {
		t.Errorf("expected %v, got %v", want, readme.Actions)
	}
	if groups[0].Rows[1].Actions != nil {
		t.Error("folders carry no file actions")
	}
}

func TestRender_Idempotent(t *testing.T) {
	f := BuildForest(testutil.NewDefault().Forest())
	vis := ComputeVisibility(f, NewPagination(3), "report")
	exp := NewExpansionState()

	first := Render(f, vis, exp)
	second := Render(f, vis, exp)
	if !reflect.DeepEqual(first, second) {
		t.Error("rendering the same inputs twice should produce equal output")
	}

	// Mutating one result must not leak into the next.
	if len(first) > 0 && len(first[0].Rows) > 0 {
		first[0].Rows[0].Name = "mutated"
		third := Render(f, vis, exp)
		if third[0].Rows[0].Name == "mutated" {
			t.Error("render output must be freshly allocated")
		}
	}
}

func TestRender_EachNodeOnce(t *testing.T) {
	f := BuildForest(testutil.NewDefault().Forest())
	exp := NewExpansionState()
	f.Walk(func(n *Node) bool {
		if n.IsFolder() {
			exp.Set(n.ID, true)
		}
		return true
	})
	p := NewPagination(5)
	for _, id := range f.ClientIDs() {
		p.RevealAll(id)
	}

	seen := make(map[string]int)
	for _, g := range Render(f, ComputeVisibility(f, p, ""), exp) {
		for _, r := range g.Rows {
			seen[r.ID]++
		}
	}
	if len(seen) != f.NodeCount() {
		t.Errorf("expected every node rendered, got %d of %d", len(seen), f.NodeCount())
	}
	for id, c := range seen {
		if c != 1 {
			t.Errorf("%s rendered %d times", id, c)
		}
	}
}
