package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/dropdash/pkg/model"
)

// AssertStrings verifies got equals want element by element.
func AssertStrings(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("expected %d items %v, got %d items %v", len(want), want, len(got), got)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %q, got %q (full: %v)", i, want[i], got[i], got)
		}
	}
}

// AssertContainsAll verifies s contains every substring.
func AssertContainsAll(t *testing.T, s string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			t.Errorf("expected output to contain %q\noutput:\n%s", sub, s)
		}
	}
}

// AssertContainsNone verifies s contains none of the substrings.
func AssertContainsNone(t *testing.T, s string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			t.Errorf("expected output not to contain %q\noutput:\n%s", sub, s)
		}
	}
}

// AssertFileExists verifies path exists and is non-empty.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Errorf("expected %s to be non-empty", path)
	}
}

// WriteUploadTree materializes a raw client tree under root/<clientID>,
// mirroring the server's upload folder layout. File contents are the file
// path. Returns the client directory.
func WriteUploadTree(t *testing.T, root, clientID string, tree map[string]model.RawNode) string {
	t.Helper()
	dir := filepath.Join(root, clientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create client dir: %v", err)
	}
	writeEntries(t, dir, tree)
	return dir
}

func writeEntries(t *testing.T, dir string, tree map[string]model.RawNode) {
	t.Helper()
	for name, n := range tree {
		p := filepath.Join(dir, name)
		switch {
		case n.IsFolder():
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatalf("failed to create %s: %v", p, err)
			}
			writeEntries(t, p, n.Children)
		case n.IsFile():
			if err := os.WriteFile(p, []byte(n.Path), 0o644); err != nil {
				t.Fatalf("failed to write %s: %v", p, err)
			}
		}
	}
}

// WriteClientsFile writes a clients.json registry to path.
func WriteClientsFile(t *testing.T, path string, clients map[string]model.Client) {
	t.Helper()
	data, err := json.MarshalIndent(clients, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal clients: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write clients file: %v", err)
	}
}
