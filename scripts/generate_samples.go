//go:build ignore

// generate_samples.go creates sample upload folders for trying the dashboard
// and for benchmarking tree rendering.
// Usage: go run scripts/generate_samples.go
//
// Creates, per dataset under testdata/samples/<name>/:
//
//	uploads/       one folder per client, date folders underneath
//	clients.json   client registry matching the upload folders
//	blobs.db       SQLite blob index covering the same files
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/dropdash/pkg/model"
	"github.com/vanderheijden86/dropdash/pkg/testutil"
)

type datasetSpec struct {
	name    string
	clients int
	days    int
}

var datasets = []datasetSpec{
	{"small", 3, 7},
	{"medium", 20, 30},
	{"large", 100, 90},
}

func main() {
	outputDir := filepath.Join("testdata", "samples")

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d clients x %d days)...\n", ds.name, ds.clients, ds.days)

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:       int64(ds.clients*1000 + ds.days),
			Clients:    ds.clients,
			Days:       ds.days,
			MaxFiles:   4,
			MaxSubdirs: 2,
		})
		forest := gen.Forest()

		root := filepath.Join(outputDir, ds.name)
		if err := os.RemoveAll(root); err != nil {
			fail("clearing %s: %v", root, err)
		}
		uploads := filepath.Join(root, "uploads")

		var paths []string
		clients := make(map[string]model.Client, len(forest))
		for id, group := range forest {
			if err := writeTree(filepath.Join(uploads, id), group.Tree, &paths); err != nil {
				fail("writing %s: %v", id, err)
			}
			clients[id] = model.Client{Label: group.Label, Type: model.ClientTypeStarMachine}
		}

		data, err := json.MarshalIndent(clients, "", "  ")
		if err != nil {
			fail("marshal clients: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, "clients.json"), data, 0o644); err != nil {
			fail("write clients.json: %v", err)
		}

		if err := writeBlobIndex(filepath.Join(root, "blobs.db"), paths, clients); err != nil {
			fail("write blob index: %v", err)
		}

		fmt.Printf("  Wrote %s (%d files)\n", root, len(paths))
	}

	fmt.Println("Done.")
}

func writeTree(dir string, tree map[string]model.RawNode, paths *[]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, n := range tree {
		p := filepath.Join(dir, name)
		switch {
		case n.IsFolder():
			if err := writeTree(p, n.Children, paths); err != nil {
				return err
			}
		case n.IsFile():
			if err := os.WriteFile(p, []byte(n.Path), 0o644); err != nil {
				return err
			}
			*paths = append(*paths, n.Path)
		}
	}
	return nil
}

func writeBlobIndex(path string, paths []string, clients map[string]model.Client) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE blobs (pathname TEXT PRIMARY KEY, size INTEGER, uploaded_at TEXT)`,
		`CREATE TABLE clients (id TEXT PRIMARY KEY, label TEXT, type TEXT)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stamp := time.Now().UTC().Format("2006-01-02 15:04:05")
	for _, p := range paths {
		if _, err := tx.Exec(`INSERT INTO blobs VALUES (?, ?, ?)`, "uploads/"+p, len(p), stamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	for id, c := range clients {
		if _, err := tx.Exec(`INSERT INTO clients VALUES (?, ?, ?)`, id, c.Label, c.Type); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
