package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// BlobPrefix is the namespace every upload lives under in blob storage.
const BlobPrefix = "uploads/"

// Blob is one row of the blob index.
type Blob struct {
	Pathname   string
	Size       int64
	UploadedAt time.Time
}

// SQLiteReader provides read access to a blob index database
type SQLiteReader struct {
	db           *sql.DB
	path         string
	storageLimit int64
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("sqlite %s: %v", pragma, err)
		}
	}

	return &SQLiteReader{
		db:           db,
		path:         source.Path,
		storageLimit: DefaultStorageLimit,
	}, nil
}

// WithStorageLimit sets the quota reported in the analytics of Load.
func (r *SQLiteReader) WithStorageLimit(limit int64) *SQLiteReader {
	if limit > 0 {
		r.storageLimit = limit
	}
	return r
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CountBlobs returns the number of indexed uploads
func (r *SQLiteReader) CountBlobs(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs WHERE pathname LIKE 'uploads/%'").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LoadBlobs reads every upload row ordered by pathname
func (r *SQLiteReader) LoadBlobs(ctx context.Context) ([]Blob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pathname, size, uploaded_at
		FROM blobs
		WHERE pathname LIKE 'uploads/%'
		ORDER BY pathname
	`)
	if err != nil {
		return nil, fmt.Errorf("querying blobs: %w", err)
	}
	defer rows.Close()

	var blobs []Blob
	for rows.Next() {
		var b Blob
		var size sql.NullInt64
		var uploadedAt sql.NullString
		if err := rows.Scan(&b.Pathname, &size, &uploadedAt); err != nil {
			debug.Warn("skipping blob row: %v", err)
			continue
		}
		b.Size = size.Int64
		if uploadedAt.Valid {
			b.UploadedAt = parseTimestamp(uploadedAt.String)
		}
		blobs = append(blobs, b)
	}
	return blobs, rows.Err()
}

// LoadLabels reads the optional clients table. Databases without one yield
// an empty map.
func (r *SQLiteReader) LoadLabels(ctx context.Context) map[string]model.Client {
	out := map[string]model.Client{}
	rows, err := r.db.QueryContext(ctx, `SELECT id, label, type FROM clients`)
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var label, typ sql.NullString
		if err := rows.Scan(&id, &label, &typ); err != nil {
			continue
		}
		out[id] = model.Client{Label: label.String, Type: typ.String}
	}
	return out
}

// GetLastModified returns the most recent upload time
func (r *SQLiteReader) GetLastModified(ctx context.Context) (time.Time, error) {
	var uploadedAt sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT MAX(uploaded_at) FROM blobs").Scan(&uploadedAt)
	if err != nil {
		return time.Time{}, err
	}
	if !uploadedAt.Valid {
		return time.Time{}, nil
	}
	return parseTimestamp(uploadedAt.String), nil
}

// Load builds a snapshot from the blob index.
func (r *SQLiteReader) Load(ctx context.Context) (model.Snapshot, error) {
	blobs, err := r.LoadBlobs(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	clients := r.LoadLabels(ctx)

	paths := make([]string, len(blobs))
	stats := &model.Analytics{
		StorageLimitBytes: r.storageLimit,
		UploadsByDay:      map[string]int{},
		UploadsByClient:   map[string]int{},
	}
	for i, b := range blobs {
		paths[i] = b.Pathname
		parts := strings.Split(strings.TrimPrefix(b.Pathname, BlobPrefix), "/")
		if len(parts) < 2 {
			continue
		}
		stats.TotalFiles++
		stats.TotalSizeBytes += b.Size
		stats.UploadsByClient[parts[0]]++
		for _, seg := range parts[1:] {
			if filetree.IsDay(seg) {
				stats.UploadsByDay[seg]++
				break
			}
		}
	}
	if r.storageLimit > 0 {
		stats.StorageUsagePercent = float64(stats.TotalSizeBytes) / float64(r.storageLimit) * 100
	}

	labels := make(map[string]string, len(clients))
	for id, c := range clients {
		labels[id] = c.Label
	}
	return model.Snapshot{
		Groups:    TreeFromPaths(paths, labels),
		Clients:   clients,
		Analytics: stats,
		FetchedAt: time.Now(),
	}, nil
}

// TreeFromPaths groups uploads/<client>/<rel...> pathnames per client into
// nested mappings. A file's path is its pathname without the uploads/
// prefix. Pathnames outside the prefix, or with fewer than two segments
// after it, are ignored. When a name is used both as a file and as a folder
// the folder wins.
func TreeFromPaths(pathnames []string, labels map[string]string) map[string]model.ClientGroup {
	sorted := append([]string(nil), pathnames...)
	sort.Strings(sorted)

	out := make(map[string]model.ClientGroup)
	for _, p := range sorted {
		if !strings.HasPrefix(p, BlobPrefix) {
			continue
		}
		rel := strings.TrimPrefix(p, BlobPrefix)
		parts := strings.Split(rel, "/")
		if len(parts) < 2 {
			continue
		}
		id := parts[0]
		g, ok := out[id]
		if !ok {
			g = model.ClientGroup{Label: labels[id], Tree: map[string]model.RawNode{}}
			out[id] = g
		}
		insertPath(g.Tree, parts[1:], rel)
	}
	return out
}

func insertPath(tree map[string]model.RawNode, parts []string, full string) {
	name := parts[0]
	if name == "" {
		return
	}
	if len(parts) == 1 {
		if existing, ok := tree[name]; ok && existing.IsFolder() {
			return
		}
		tree[name] = model.RawNode{Type: model.NodeTypeFile, Path: full}
		return
	}
	node, ok := tree[name]
	if !ok || !node.IsFolder() {
		node = model.RawNode{Type: model.NodeTypeFolder, Children: map[string]model.RawNode{}}
		tree[name] = node
	}
	insertPath(node.Children, parts[1:], full)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
