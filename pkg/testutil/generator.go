// Package testutil provides deterministic upload-tree fixtures and assertion
// helpers shared by package tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/dropdash/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed        int64     // Random seed for determinism (0 = use current time)
	Clients     int       // Number of clients (default 2)
	Days        int       // Date folders per client (default 7)
	MaxFiles    int       // Upper bound of files per folder (default 3)
	MaxSubdirs  int       // Upper bound of subfolders per date folder (default 1)
	BaseDay     time.Time // First date folder (default 2024-01-01)
	ClientIDLen int       // Length of generated client ids (default 12)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42,
		Clients:     2,
		Days:        7,
		MaxFiles:    3,
		MaxSubdirs:  1,
		BaseDay:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ClientIDLen: 12,
	}
}

// Generator creates raw upload trees.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Clients <= 0 {
		cfg.Clients = def.Clients
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}
	if cfg.MaxSubdirs < 0 {
		cfg.MaxSubdirs = 0
	}
	if cfg.BaseDay.IsZero() {
		cfg.BaseDay = def.BaseDay
	}
	if cfg.ClientIDLen <= 0 {
		cfg.ClientIDLen = def.ClientIDLen
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Forest generates a full per-client mapping as served by GET /files.
// Every client gets cfg.Days date folders, each with 1..MaxFiles files and up
// to MaxSubdirs subfolders.
func (g *Generator) Forest() map[string]model.ClientGroup {
	out := make(map[string]model.ClientGroup, g.cfg.Clients)
	for c := 0; c < g.cfg.Clients; c++ {
		id := g.clientID(c)
		tree := make(map[string]model.RawNode, g.cfg.Days)
		for d := 0; d < g.cfg.Days; d++ {
			day := g.cfg.BaseDay.AddDate(0, 0, d).Format("2006-01-02")
			tree[day] = g.dayFolder(id, day)
		}
		out[id] = model.ClientGroup{Label: fmt.Sprintf("Site %d", c+1), Tree: tree}
	}
	return out
}

func (g *Generator) clientID(i int) string {
	const hex = "0123456789abcdef"
	b := make([]byte, g.cfg.ClientIDLen)
	for j := range b {
		b[j] = hex[g.rng.Intn(len(hex))]
	}
	// Prefix keeps ids unique even on rng collisions.
	return fmt.Sprintf("%02d%s", i, b[2:])
}

func (g *Generator) dayFolder(clientID, day string) model.RawNode {
	children := make(map[string]model.RawNode)
	files := 1 + g.rng.Intn(g.cfg.MaxFiles)
	for i := 0; i < files; i++ {
		name := fmt.Sprintf("report_%02d.pdf", i)
		children[name] = File(clientID + "/" + day + "/" + name)
	}
	if g.cfg.MaxSubdirs > 0 {
		subdirs := g.rng.Intn(g.cfg.MaxSubdirs + 1)
		for s := 0; s < subdirs; s++ {
			sub := fmt.Sprintf("batch_%d", s)
			name := "scan.tif"
			children[sub] = Folder(map[string]model.RawNode{
				name: File(clientID + "/" + day + "/" + sub + "/" + name),
			})
		}
	}
	return Folder(children)
}

// File returns a raw file entry.
func File(path string) model.RawNode {
	return model.RawNode{Type: model.NodeTypeFile, Path: path}
}

// Folder returns a raw folder entry.
func Folder(children map[string]model.RawNode) model.RawNode {
	return model.RawNode{Type: model.NodeTypeFolder, Children: children}
}

// DateFolders returns n date folders named 2024-01-01 onwards, each holding a
// single file.
func DateFolders(clientID string, n int) map[string]model.RawNode {
	tree := make(map[string]model.RawNode, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		day := base.AddDate(0, 0, i).Format("2006-01-02")
		tree[day] = Folder(map[string]model.RawNode{
			"upload.pdf": File(clientID + "/" + day + "/upload.pdf"),
		})
	}
	return tree
}

// Single wraps one client's tree in a forest mapping.
func Single(clientID, label string, tree map[string]model.RawNode) map[string]model.ClientGroup {
	return map[string]model.ClientGroup{clientID: {Label: label, Tree: tree}}
}
