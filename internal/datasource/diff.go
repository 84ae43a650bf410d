package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/dropdash/pkg/model"
)

// SnapshotDiff represents what changed between two refreshes
type SnapshotDiff struct {
	// AddedClients contains client ids present only in the newer snapshot
	AddedClients []string
	// RemovedClients contains client ids present only in the older snapshot
	RemovedClients []string
	// AddedFiles contains file paths present only in the newer snapshot
	AddedFiles []string
	// RemovedFiles contains file paths present only in the older snapshot
	RemovedFiles []string
	// CountA is the number of files in the older snapshot
	CountA int
	// CountB is the number of files in the newer snapshot
	CountB int
}

// HasChanges returns true if anything differs between the snapshots
func (d SnapshotDiff) HasChanges() bool {
	return len(d.AddedClients) > 0 || len(d.RemovedClients) > 0 ||
		len(d.AddedFiles) > 0 || len(d.RemovedFiles) > 0
}

// Summary returns a one-line description suitable for a status bar
func (d SnapshotDiff) Summary() string {
	if !d.HasChanges() {
		return fmt.Sprintf("no changes (%d files)", d.CountB)
	}
	var parts []string
	if n := len(d.AddedFiles); n > 0 {
		parts = append(parts, plural(n, "new upload", "new uploads"))
	}
	if n := len(d.RemovedFiles); n > 0 {
		parts = append(parts, plural(n, "file removed", "files removed"))
	}
	if n := len(d.AddedClients); n > 0 {
		parts = append(parts, plural(n, "new client", "new clients"))
	}
	if n := len(d.RemovedClients); n > 0 {
		parts = append(parts, plural(n, "client gone", "clients gone"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// MaxDifferences limits the number of paths tracked per list (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

// DiffSnapshots compares two snapshots by client id and file path.
func DiffSnapshots(a, b model.Snapshot, opts DiffOptions) SnapshotDiff {
	var diff SnapshotDiff

	filesA := collectPaths(a.Groups)
	filesB := collectPaths(b.Groups)
	diff.CountA = len(filesA)
	diff.CountB = len(filesB)

	add := func(list *[]string, v string) {
		if opts.MaxDifferences == 0 || len(*list) < opts.MaxDifferences {
			*list = append(*list, v)
		}
	}

	for id := range b.Groups {
		if _, ok := a.Groups[id]; !ok {
			add(&diff.AddedClients, id)
		}
	}
	for id := range a.Groups {
		if _, ok := b.Groups[id]; !ok {
			add(&diff.RemovedClients, id)
		}
	}
	for p := range filesB {
		if _, ok := filesA[p]; !ok {
			add(&diff.AddedFiles, p)
		}
	}
	for p := range filesA {
		if _, ok := filesB[p]; !ok {
			add(&diff.RemovedFiles, p)
		}
	}

	sort.Strings(diff.AddedClients)
	sort.Strings(diff.RemovedClients)
	sort.Strings(diff.AddedFiles)
	sort.Strings(diff.RemovedFiles)
	return diff
}

func collectPaths(groups map[string]model.ClientGroup) map[string]struct{} {
	out := make(map[string]struct{})
	var walk func(tree map[string]model.RawNode)
	walk = func(tree map[string]model.RawNode) {
		for _, n := range tree {
			switch {
			case n.IsFile():
				out[n.Path] = struct{}{}
			case n.IsFolder():
				walk(n.Children)
			}
		}
	}
	for _, g := range groups {
		walk(g.Tree)
	}
	return out
}
