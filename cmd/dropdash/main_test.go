package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/dropdash/pkg/config"
	"github.com/vanderheijden86/dropdash/pkg/model"
	"github.com/vanderheijden86/dropdash/pkg/testutil"
)

func TestMain(m *testing.M) {
	os.Setenv("DROPDASH_NO_BROWSER", "1")
	os.Setenv("DROPDASH_TEST_MODE", "1")
	os.Exit(m.Run())
}

// uploadFixture lays out <tmp>/uploads with two clients and a clients.json
// next to it.
func uploadFixture(t *testing.T) (uploadDir, configPath string) {
	t.Helper()
	root := t.TempDir()
	uploadDir = filepath.Join(root, "uploads")
	testutil.WriteUploadTree(t, uploadDir, "c1", testutil.DateFolders("c1", 7))
	testutil.WriteUploadTree(t, uploadDir, "c2", testutil.DateFolders("c2", 2))
	testutil.WriteClientsFile(t, filepath.Join(root, "clients.json"), map[string]model.Client{
		"c1": {Label: "Front desk", Type: model.ClientTypePC},
		"c2": {Label: "Back office", Type: model.ClientTypePC},
	})
	return uploadDir, filepath.Join(root, "missing-config.yaml")
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseFlags_TracksExplicitFlags(t *testing.T) {
	f, err := parseFlags([]string{"--page-size", "9", "--refresh", "1m", "--robot-tree"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags error: %v", err)
	}
	if !f.set["page-size"] || !f.set["refresh"] || f.set["max-depth"] {
		t.Errorf("unexpected set flags %v", f.set)
	}
	if !f.robotTree || f.pageSize != 9 || f.refresh != time.Minute {
		t.Errorf("unexpected values %+v", f)
	}

	if _, err := parseFlags([]string{"--nope"}, io.Discard); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantKind string
	}{
		{"dir implies dir source", []string{"--dir", "/srv/up"}, config.SourceDir},
		{"db implies sqlite source", []string{"--db", "/srv/blobs.db"}, config.SourceSQLite},
		{"explicit source wins", []string{"--dir", "/srv/up", "--source", "auto"}, config.SourceAuto},
		{"dir and db stay auto", []string{"--dir", "/srv/up", "--db", "/srv/blobs.db"}, config.SourceAuto},
		{"server sets url only", []string{"--server", "http://h:1"}, config.SourceAuto},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := parseFlags(tc.args, io.Discard)
			if err != nil {
				t.Fatal(err)
			}
			cfg := config.DefaultConfig()
			applyOverrides(&cfg, f)
			if cfg.Source.Kind != tc.wantKind {
				t.Errorf("expected kind %s, got %s", tc.wantKind, cfg.Source.Kind)
			}
		})
	}

	f, _ := parseFlags([]string{"--page-size", "3", "--max-depth", "2"}, io.Discard)
	cfg := config.DefaultConfig()
	applyOverrides(&cfg, f)
	if cfg.UI.PageSize != 3 || cfg.UI.MaxDepth != 2 || cfg.UI.RefreshInterval != config.DefaultRefreshInterval {
		t.Errorf("unexpected ui overrides %+v", cfg.UI)
	}
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	if code != 0 || !strings.HasPrefix(out, "dropdash ") {
		t.Errorf("expected version output, got %d %q", code, out)
	}
}

func TestRun_Help(t *testing.T) {
	code, out, _ := runCLI(t, "--help")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	testutil.AssertContainsAll(t, out, "Usage: dropdash", "-robot-tree", "-export-chart", "-serve")
}

func TestRun_InvalidConfig(t *testing.T) {
	code, _, errOut := runCLI(t, "--config", filepath.Join(t.TempDir(), "c.yaml"), "--source", "ftp")
	if code != 2 || !strings.Contains(errOut, "unknown source kind") {
		t.Errorf("expected config error, got %d %q", code, errOut)
	}
}

func TestRun_NoSources(t *testing.T) {
	code, _, errOut := runCLI(t, "--config", filepath.Join(t.TempDir(), "c.yaml"), "--server", "", "--robot-tree")
	if code != 1 || !strings.Contains(errOut, "--init") {
		t.Errorf("expected discovery failure with a hint, got %d %q", code, errOut)
	}
}

func TestRun_RobotTree(t *testing.T) {
	uploadDir, cfgPath := uploadFixture(t)
	code, out, errOut := runCLI(t, "--config", cfgPath, "--dir", uploadDir, "--robot-tree")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	var got RobotTree
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.PageSize != 5 || len(got.Groups) != 2 {
		t.Fatalf("unexpected payload: page=%d groups=%d", got.PageSize, len(got.Groups))
	}
	for _, g := range got.Groups {
		switch g.ClientID {
		case "c1":
			if g.Label != "Front desk" || !g.ShowMore || len(g.Rows) != 5 {
				t.Errorf("c1: unexpected group %+v", g)
			}
		case "c2":
			if g.ShowMore || len(g.Rows) != 2 {
				t.Errorf("c2: unexpected group %+v", g)
			}
		}
	}
	if !strings.HasPrefix(got.Source, "dir:") {
		t.Errorf("expected dir source label, got %s", got.Source)
	}
}

func TestRun_RobotTreeQuery(t *testing.T) {
	uploadDir, cfgPath := uploadFixture(t)
	code, out, errOut := runCLI(t, "--config", cfgPath, "--dir", uploadDir, "--robot-tree", "--query", "upload", "--page-size", "1")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var got RobotTree
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	files := 0
	for _, g := range got.Groups {
		for _, r := range g.Rows {
			if r.Path != "" {
				files++
				if len(r.Actions) != 3 {
					t.Errorf("file row %s should carry 3 actions", r.Path)
				}
			}
		}
	}
	if got.Query != "upload" || files != 9 {
		t.Errorf("expected all 9 uploads to match, got %d (query %q)", files, got.Query)
	}
}

func TestRun_RobotStats(t *testing.T) {
	uploadDir, cfgPath := uploadFixture(t)
	code, out, errOut := runCLI(t, "--config", cfgPath, "--dir", uploadDir, "--robot-stats")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var got RobotStats
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Usage.Files != 9 || got.Usage.Clients != 2 || got.ClientCount != 2 {
		t.Errorf("unexpected stats %+v", got)
	}
	if got.Usage.Limit != config.DefaultStorageLimitBytes || got.Warning {
		t.Errorf("expected default limit without warning, got %+v", got.Usage)
	}
	if len(got.Usage.Days) != 7 {
		t.Errorf("expected 7 upload days, got %d", len(got.Usage.Days))
	}
}

func TestRun_Exports(t *testing.T) {
	uploadDir, cfgPath := uploadFixture(t)
	outDir := t.TempDir()
	chart := filepath.Join(outDir, "uploads.svg")
	tree := filepath.Join(outDir, "tree.md")

	code, _, errOut := runCLI(t, "--config", cfgPath, "--dir", uploadDir,
		"--export-chart", chart, "--export-tree", tree, "--expand-all")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	testutil.AssertFileExists(t, chart)

	md, err := os.ReadFile(tree)
	if err != nil {
		t.Fatalf("read tree: %v", err)
	}
	testutil.AssertContainsAll(t, string(md), "# Uploads", "## Front desk", "## Back office", "`c2/2024-01-02/upload.pdf`")
}

func TestRun_ExportTreePreview(t *testing.T) {
	uploadDir, cfgPath := uploadFixture(t)
	code, out, errOut := runCLI(t, "--config", cfgPath, "--dir", uploadDir, "--export-tree", "-")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	testutil.AssertContainsAll(t, out, "Uploads", "Front desk")
}
