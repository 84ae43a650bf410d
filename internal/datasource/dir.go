package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// DefaultStorageLimit is the server's upload quota.
const DefaultStorageLimit = int64(5) * 1024 * 1024 * 1024

// DirSource reads a local upload folder laid out as <client>/<rel...>.
type DirSource struct {
	root         string
	clientsFile  string
	storageLimit int64
}

// NewDirSource creates a source rooted at uploadDir. An empty clientsFile
// means DefaultClientsFile(uploadDir); a missing file yields empty labels.
func NewDirSource(uploadDir, clientsFile string, storageLimit int64) *DirSource {
	if clientsFile == "" {
		clientsFile = DefaultClientsFile(uploadDir)
	}
	if storageLimit <= 0 {
		storageLimit = DefaultStorageLimit
	}
	return &DirSource{root: uploadDir, clientsFile: clientsFile, storageLimit: storageLimit}
}

// Root returns the upload folder.
func (s *DirSource) Root() string { return s.root }

// Load walks the upload folder. File paths are slash-separated and relative
// to the upload root, the same shape GET /files reports.
func (s *DirSource) Load(ctx context.Context) (model.Snapshot, error) {
	clients, err := ReadClientsFile(s.clientsFile)
	if err != nil {
		debug.Warn("reading %s: %v", s.clientsFile, err)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading upload dir: %w", err)
	}

	groups := make(map[string]model.ClientGroup)
	for id, c := range clients {
		if c.Type == model.ClientTypeStarMachine {
			groups[id] = model.ClientGroup{Label: c.Label, Tree: map[string]model.RawNode{}}
		}
	}

	stats := &model.Analytics{
		StorageLimitBytes: s.storageLimit,
		UploadsByDay:      map[string]int{},
		UploadsByClient:   map[string]int{},
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return model.Snapshot{}, err
		}
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		stats.UploadsByClient[id] = 0
		groups[id] = model.ClientGroup{
			Label: clients[id].Label,
			Tree:  s.walk(filepath.Join(s.root, id), id, stats),
		}
	}
	if s.storageLimit > 0 {
		stats.StorageUsagePercent = float64(stats.TotalSizeBytes) / float64(s.storageLimit) * 100
	}

	return model.Snapshot{
		Groups:    groups,
		Clients:   clients,
		Analytics: stats,
		FetchedAt: time.Now(),
	}, nil
}

// walk builds the nested mapping for one directory. Read errors are logged
// and leave that subtree empty.
func (s *DirSource) walk(dir, clientID string, stats *model.Analytics) map[string]model.RawNode {
	tree := make(map[string]model.RawNode)
	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.Warn("building tree for %s: %v", dir, err)
		return tree
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			tree[e.Name()] = model.RawNode{
				Type:     model.NodeTypeFolder,
				Children: s.walk(full, clientID, stats),
			}
			continue
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		tree[e.Name()] = model.RawNode{Type: model.NodeTypeFile, Path: rel}

		if info, err := e.Info(); err == nil {
			stats.TotalSizeBytes += info.Size()
		}
		stats.TotalFiles++
		stats.UploadsByClient[clientID]++
		for _, seg := range strings.Split(rel, "/") {
			if filetree.IsDay(seg) {
				stats.UploadsByDay[seg]++
				break
			}
		}
	}
	return tree
}

// ReadClientsFile decodes clients.json. A missing file is not an error.
func ReadClientsFile(path string) (map[string]model.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]model.Client{}, nil
		}
		return map[string]model.Client{}, err
	}
	clients := map[string]model.Client{}
	if err := json.Unmarshal(data, &clients); err != nil {
		return map[string]model.Client{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return clients, nil
}

// LocalActions performs file actions directly on an upload folder.
type LocalActions struct {
	root string
}

// NewLocalActions operates on files under root.
func NewLocalActions(root string) *LocalActions {
	return &LocalActions{root: root}
}

// resolve maps a slash path to a file under root, rejecting escapes.
func (a *LocalActions) resolve(filePath string) (string, error) {
	clean := path.Clean("/" + filePath)
	full := filepath.Join(a.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(a.root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", filePath, ErrNotFound)
	}
	return full, nil
}

// View returns the on-disk location of the file.
func (a *LocalActions) View(_ context.Context, filePath string) (string, error) {
	full, err := a.resolve(filePath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("%s: %w", filePath, ErrNotFound)
	}
	return full, nil
}

// Download copies the file into destDir without overwriting anything there.
func (a *LocalActions) Download(ctx context.Context, filePath, destDir string) (string, error) {
	full, err := a.View(ctx, filePath)
	if err != nil {
		return "", err
	}
	src, err := os.Open(full)
	if err != nil {
		return "", err
	}
	defer src.Close()

	return saveDownload(destDir, filepath.Base(full), func(w io.Writer) error {
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("copying %s: %w", filePath, err)
		}
		return nil
	})
}

// Delete removes the file, then its containing folder if that is now empty,
// then the folder above it if that is empty too.
func (a *LocalActions) Delete(_ context.Context, filePath string) error {
	full, err := a.resolve(filePath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", filePath, ErrNotFound)
		}
		return fmt.Errorf("deleting %s: %w", filePath, err)
	}
	debug.Log("deleted %s", full)

	dir := filepath.Dir(full)
	for i := 0; i < 2 && dir != filepath.Clean(a.root); i++ {
		if !removeIfEmpty(dir) {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func removeIfEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return false
	}
	if err := os.Remove(dir); err != nil {
		debug.Warn("pruning %s: %v", dir, err)
		return false
	}
	return true
}
