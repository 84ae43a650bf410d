package filetree

import (
	"testing"

	"github.com/vanderheijden86/dropdash/pkg/model"
	"github.com/vanderheijden86/dropdash/pkg/testutil"
)

func sampleRaw() map[string]model.ClientGroup {
	return testutil.Single("client-abcdef123", "Front Desk", map[string]model.RawNode{
		"2024-03-01": testutil.Folder(map[string]model.RawNode{
			"invoice.pdf": testutil.File("client-abcdef123/2024-03-01/invoice.pdf"),
			"scans": testutil.Folder(map[string]model.RawNode{
				"page1.tif": testutil.File("client-abcdef123/2024-03-01/scans/page1.tif"),
			}),
		}),
		"readme.txt": testutil.File("client-abcdef123/readme.txt"),
	})
}

func TestBuildForest_Structure(t *testing.T) {
	f := BuildForest(sampleRaw())

	if f.Len() != 1 {
		t.Fatalf("expected 1 client, got %d", f.Len())
	}
	ct := f.Client("client-abcdef123")
	if ct == nil {
		t.Fatal("expected client tree")
	}
	if ct.Label != "Front Desk" {
		t.Errorf("expected label 'Front Desk', got %q", ct.Label)
	}
	if len(ct.Roots) != 2 {
		t.Errorf("expected 2 top-level entries, got %d", len(ct.Roots))
	}

	day, ok := f.Lookup("client-abcdef123/2024-03-01")
	if !ok {
		t.Fatal("expected day folder to be indexed")
	}
	if !day.IsFolder() || day.Depth != 0 || day.Parent != nil {
		t.Errorf("unexpected day folder: kind=%v depth=%d parent=%v", day.Kind, day.Depth, day.Parent)
	}

	page, ok := f.Lookup("client-abcdef123/2024-03-01/scans/page1.tif")
	if !ok {
		t.Fatal("expected nested file to be indexed")
	}
	if page.Kind != KindFile {
		t.Errorf("expected file, got %v", page.Kind)
	}
	if page.Path != "client-abcdef123/2024-03-01/scans/page1.tif" {
		t.Errorf("unexpected path %q", page.Path)
	}
	if page.Depth != 2 {
		t.Errorf("expected depth 2, got %d", page.Depth)
	}
	if page.Parent == nil || page.Parent.Name != "scans" {
		t.Errorf("expected parent 'scans', got %v", page.Parent)
	}
	if got := len(page.Ancestors()); got != 2 {
		t.Errorf("expected 2 ancestors, got %d", got)
	}
	if f.NodeCount() != 5 {
		t.Errorf("expected 5 nodes, got %d", f.NodeCount())
	}
}

func TestBuildForest_SkipsUnknownTypes(t *testing.T) {
	raw := testutil.Single("c1", "one", map[string]model.RawNode{
		"2024-01-01": testutil.Folder(map[string]model.RawNode{
			"ok.pdf":   testutil.File("c1/2024-01-01/ok.pdf"),
			"weird":    {Type: "symlink"},
			"untyped":  {},
			"also-bad": {Type: "FILE", Path: "c1/x"},
		}),
		"mystery": {Type: "device"},
	})

	f := BuildForest(raw)

	if _, ok := f.Lookup("c1/mystery"); ok {
		t.Error("unknown top-level type should be skipped")
	}
	day, ok := f.Lookup("c1/2024-01-01")
	if !ok {
		t.Fatal("expected day folder")
	}
	if len(day.Children) != 1 {
		t.Errorf("expected only the valid file to survive, got %d children", len(day.Children))
	}
}

func TestBuildForest_MissingChildrenIsEmptyFolder(t *testing.T) {
	raw := testutil.Single("c1", "one", map[string]model.RawNode{
		"2024-01-01": {Type: model.NodeTypeFolder},
	})

	f := BuildForest(raw)
	n, ok := f.Lookup("c1/2024-01-01")
	if !ok {
		t.Fatal("expected folder")
	}
	if !n.IsFolder() {
		t.Error("expected folder kind")
	}
	if len(n.Children) != 0 {
		t.Errorf("expected no children, got %d", len(n.Children))
	}
	if CountFiles(n) != 0 {
		t.Errorf("expected 0 files, got %d", CountFiles(n))
	}
}

func TestBuildForest_LabelFallback(t *testing.T) {
	raw := map[string]model.ClientGroup{
		"0123456789abcdef": {Tree: testutil.DateFolders("0123456789abcdef", 1)},
		"short":            {},
	}
	f := BuildForest(raw)

	if got := f.Client("0123456789abcdef").Label; got != "Client 01234567" {
		t.Errorf("expected truncated fallback label, got %q", got)
	}
	if got := f.Client("short").Label; got != "Client short" {
		t.Errorf("expected short fallback label, got %q", got)
	}
	if !f.Client("short").Empty() {
		t.Error("client without tree should be empty")
	}
}

func TestBuildForest_ClientOrder(t *testing.T) {
	raw := map[string]model.ClientGroup{
		"z": {Label: "alpha"},
		"a": {Label: "Charlie"},
		"m": {Label: "bravo"},
		"b": {Label: "bravo"},
	}
	got := BuildForest(raw).ClientIDs()
	testutil.AssertStrings(t, got, "z", "b", "m", "a")
}

func TestBuildForest_MaxDepth(t *testing.T) {
	raw := testutil.Single("c1", "one", map[string]model.RawNode{
		"a": testutil.Folder(map[string]model.RawNode{
			"b": testutil.Folder(map[string]model.RawNode{
				"c": testutil.Folder(map[string]model.RawNode{
					"deep.txt": testutil.File("c1/a/b/c/deep.txt"),
				}),
			}),
		}),
	})

	tests := []struct {
		name     string
		maxDepth int
		present  []string
		absent   []string
	}{
		{"unbounded", 0, []string{"c1/a", "c1/a/b", "c1/a/b/c", "c1/a/b/c/deep.txt"}, nil},
		{"one_level", 1, []string{"c1/a"}, []string{"c1/a/b"}},
		{"two_levels", 2, []string{"c1/a", "c1/a/b"}, []string{"c1/a/b/c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := BuildForest(raw, WithMaxDepth(tt.maxDepth))
			for _, id := range tt.present {
				if _, ok := f.Lookup(id); !ok {
					t.Errorf("expected %s to be built", id)
				}
			}
			for _, id := range tt.absent {
				if _, ok := f.Lookup(id); ok {
					t.Errorf("expected %s to be dropped", id)
				}
			}
		})
	}
}

func TestBuildForest_NilInput(t *testing.T) {
	f := BuildForest(nil)
	if f.Len() != 0 {
		t.Errorf("expected empty forest, got %d clients", f.Len())
	}
	if groups := Render(f, ComputeVisibility(f, nil, ""), NewExpansionState()); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestBuildForest_SkipsNamesWithSeparator(t *testing.T) {
	raw := map[string]model.ClientGroup{
		"c1": {Label: "one", Tree: map[string]model.RawNode{
			"a": testutil.Folder(map[string]model.RawNode{
				"b": testutil.File("c1/a/b"),
			}),
			"a/b": testutil.File("c1/flat"),
		}},
		"c1/a": {Label: "nested id", Tree: map[string]model.RawNode{
			"b": testutil.File("other"),
		}},
	}
	f := BuildForest(raw)

	testutil.AssertStrings(t, f.ClientIDs(), "c1")
	if f.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", f.NodeCount())
	}
	n, ok := f.Lookup("c1/a/b")
	if !ok || n.Path != "c1/a/b" {
		t.Fatalf("expected the nested file at c1/a/b, got %+v", n)
	}

	exp := NewExpansionState()
	exp.Toggle("c1/a")
	if exp.Prune(f) != 0 || !exp.IsExpanded("c1/a") {
		t.Error("folder identity should survive pruning")
	}
}

func TestTopLevelAndChildrenOrdering(t *testing.T) {
	raw := testutil.Single("c1", "one", map[string]model.RawNode{
		"2024-01-02": testutil.Folder(map[string]model.RawNode{
			"b.pdf": testutil.File("b"),
			"a.pdf": testutil.File("a"),
			"C.pdf": testutil.File("C"),
		}),
		"2024-01-10": testutil.Folder(nil),
		"2023-12-31": testutil.Folder(nil),
	})
	f := BuildForest(raw)

	var top []string
	for _, n := range f.Client("c1").TopLevel() {
		top = append(top, n.Name)
	}
	testutil.AssertStrings(t, top, "2024-01-10", "2024-01-02", "2023-12-31")

	day, _ := f.Lookup("c1/2024-01-02")
	var kids []string
	for _, n := range day.SortedChildren() {
		kids = append(kids, n.Name)
	}
	testutil.AssertStrings(t, kids, "C.pdf", "a.pdf", "b.pdf")
}
