package datasource

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/vanderheijden86/dropdash/pkg/model"
)

// Source produces one snapshot per refresh cycle.
type Source interface {
	Load(ctx context.Context) (model.Snapshot, error)
}

// Actions performs the per-file row actions.
type Actions interface {
	// View returns a local file that the OS opener can show.
	View(ctx context.Context, filePath string) (string, error)
	// Download copies the file into destDir and returns its new location.
	Download(ctx context.Context, filePath, destDir string) (string, error)
	// Delete removes the file from the store.
	Delete(ctx context.Context, filePath string) error
}

// OpenOptions carries the settings needed to open any source type.
type OpenOptions struct {
	HTTP         HTTPOptions
	StorageLimit int64
}

// Backend bundles a source with the actions it supports.
type Backend struct {
	Info    DataSource
	Source  Source
	Actions Actions // nil when the store is read-only
	closer  func() error
}

// Close releases resources held by the backend.
func (b *Backend) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// Open builds the backend for a source, dispatching on its type.
func Open(source DataSource, opts OpenOptions) (*Backend, error) {
	switch source.Type {
	case SourceTypeHTTP:
		src := NewHTTPSource(source.Path, NewHTTPClient(opts.HTTP))
		return &Backend{Info: source, Source: src, Actions: NewHTTPActions(src)}, nil

	case SourceTypeDir:
		src := NewDirSource(source.Path, source.ClientsFile, opts.StorageLimit)
		return &Backend{Info: source, Source: src, Actions: NewLocalActions(source.Path)}, nil

	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		reader.WithStorageLimit(opts.StorageLimit)
		return &Backend{Info: source, Source: reader, closer: reader.Close}, nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}

// OpenBest discovers, validates and opens the best available source.
func OpenBest(ctx context.Context, disc DiscoveryOptions, opts OpenOptions) (*Backend, error) {
	disc.ValidateAfterDiscovery = true
	sources, err := DiscoverSources(ctx, disc)
	if err != nil {
		return nil, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, err
	}
	return Open(best, opts)
}

// OpenerCommand returns the platform command that opens a file with its
// default application.
func OpenerCommand(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
