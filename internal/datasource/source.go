// Package datasource discovers, validates and loads the upload forest that
// feeds the dashboard. A forest can come from the upload server over HTTP,
// from a local upload folder, or from a SQLite blob index.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeHTTP is a running upload server
	SourceTypeHTTP SourceType = "http"
	// SourceTypeDir is a local upload folder laid out as <client>/<day>/...
	SourceTypeDir SourceType = "dir"
	// SourceTypeSQLite is a SQLite blob index (blobs table)
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher = more authoritative)
const (
	PriorityHTTP   = 100
	PrioritySQLite = 80
	PriorityDir    = 50
)

var (
	// ErrNoSources is returned when discovery finds nothing usable.
	ErrNoSources = errors.New("no valid data sources")
	// ErrNotFound is returned when a file action targets a path the source
	// does not hold.
	ErrNotFound = errors.New("file not found")
)

// DataSource represents a potential source of upload data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the server base URL, the upload folder or the database file
	Path string `json:"path"`
	// ClientsFile holds client labels for dir sources (optional)
	ClientsFile string `json:"clients_file,omitempty"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time (the probe time for HTTP)
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// ServerURL is probed with GET /files when non-empty
	ServerURL string
	// UploadDir is used as a dir source when it exists
	UploadDir string
	// ClientsFile overrides <UploadDir>/../clients.json
	ClientsFile string
	// DBPath is used as a SQLite source when it exists
	DBPath string
	// HTTPClient is used for the server probe (defaults to a 3s client)
	HTTPClient *http.Client
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages (optional)
	Logger func(msg string)
}

// DiscoverSources lists every configured source that exists, freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	var sources []DataSource

	if opts.ServerURL != "" {
		sources = append(sources, DataSource{
			Type:     SourceTypeHTTP,
			Path:     opts.ServerURL,
			Priority: PriorityHTTP,
			ModTime:  time.Now(),
		})
		opts.Logger(fmt.Sprintf("Found server: %s", opts.ServerURL))
	}

	if opts.DBPath != "" {
		if info, err := os.Stat(opts.DBPath); err == nil && !info.IsDir() {
			sources = append(sources, DataSource{
				Type:     SourceTypeSQLite,
				Path:     opts.DBPath,
				Priority: PrioritySQLite,
				ModTime:  info.ModTime(),
			})
			opts.Logger(fmt.Sprintf("Found SQLite: %s (mod=%s)", opts.DBPath, info.ModTime().Format(time.RFC3339)))
		}
	}

	if opts.UploadDir != "" {
		if info, err := os.Stat(opts.UploadDir); err == nil && info.IsDir() {
			clients := opts.ClientsFile
			if clients == "" {
				clients = DefaultClientsFile(opts.UploadDir)
			}
			sources = append(sources, DataSource{
				Type:        SourceTypeDir,
				Path:        opts.UploadDir,
				ClientsFile: clients,
				Priority:    PriorityDir,
				ModTime:     info.ModTime(),
			})
			opts.Logger(fmt.Sprintf("Found upload dir: %s (mod=%s)", opts.UploadDir, info.ModTime().Format(time.RFC3339)))
		}
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(ctx, &sources[i], opts.HTTPClient); err != nil {
				opts.Logger(fmt.Sprintf("Validation failed for %s: %v", sources[i].Path, err))
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	// A live server always wins; files are ranked by priority, then freshness.
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].Priority != sources[j].Priority {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	return sources, nil
}

// ValidateSource checks that a source can be read and records the result on s.
func ValidateSource(ctx context.Context, s *DataSource, client *http.Client) error {
	err := validate(ctx, s, client)
	s.Valid = err == nil
	if err != nil {
		s.ValidationError = err.Error()
	} else {
		s.ValidationError = ""
	}
	return err
}

func validate(ctx context.Context, s *DataSource, client *http.Client) error {
	switch s.Type {
	case SourceTypeHTTP:
		if client == nil {
			client = &http.Client{Timeout: 3 * time.Second}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(s.Path, "files"), nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return nil

	case SourceTypeDir:
		if _, err := os.ReadDir(s.Path); err != nil {
			return fmt.Errorf("cannot read upload dir: %w", err)
		}
		return nil

	case SourceTypeSQLite:
		r, err := NewSQLiteReader(*s)
		if err != nil {
			return err
		}
		defer r.Close()
		if _, err := r.CountBlobs(ctx); err != nil {
			return fmt.Errorf("blob index unreadable: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown source type: %s", s.Type)
	}
}

// SelectBestSource returns the first valid source of an already ranked list.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, ErrNoSources
}

// DefaultClientsFile is where the upload server keeps clients.json relative to
// its upload folder.
func DefaultClientsFile(uploadDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(uploadDir)), "clients.json")
}
