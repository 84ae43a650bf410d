package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// HTTPOptions tunes the retrying client used against the upload server.
type HTTPOptions struct {
	RetryMax int
	Timeout  time.Duration
}

// NewHTTPClient returns a retrying client whose retry chatter goes to the
// debug log.
func NewHTTPClient(opts HTTPOptions) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	c.Logger = debugLogger{}
	return c
}

// debugLogger adapts pkg/debug to retryablehttp.LeveledLogger.
type debugLogger struct{}

func (debugLogger) Error(msg string, kv ...interface{}) { debug.Fields("http error: "+msg, kv...) }
func (debugLogger) Warn(msg string, kv ...interface{})  { debug.Fields("http warn: "+msg, kv...) }
func (debugLogger) Info(msg string, kv ...interface{})  { debug.Fields("http: "+msg, kv...) }
func (debugLogger) Debug(msg string, kv ...interface{}) { debug.Fields("http: "+msg, kv...) }

// HTTPSource loads snapshots from a running upload server.
type HTTPSource struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewHTTPSource creates a source for the server at baseURL. A nil client
// gets NewHTTPClient defaults.
func NewHTTPSource(baseURL string, client *retryablehttp.Client) *HTTPSource {
	if client == nil {
		client = NewHTTPClient(HTTPOptions{RetryMax: 4, Timeout: 15 * time.Second})
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Load fetches /files, /admin/clients and /api/analytics concurrently.
// Only /files is required; the other two degrade to nil with a debug note.
func (s *HTTPSource) Load(ctx context.Context) (model.Snapshot, error) {
	start := time.Now()
	defer func() { debug.LogTiming("http load", time.Since(start)) }()

	var (
		groups    map[string]model.ClientGroup
		clients   map[string]model.Client
		analytics model.Analytics
		haveStats bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.getJSON(gctx, "files", &groups); err != nil {
			return fmt.Errorf("listing files: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.getJSON(gctx, "admin/clients", &clients); err != nil {
			debug.Warn("client list unavailable: %v", err)
			clients = nil
		}
		return nil
	})
	g.Go(func() error {
		if err := s.getJSON(gctx, "api/analytics", &analytics); err != nil {
			debug.Warn("analytics unavailable: %v", err)
			return nil
		}
		haveStats = true
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		Groups:    groups,
		Clients:   clients,
		FetchedAt: time.Now(),
	}
	if snap.Groups == nil {
		snap.Groups = map[string]model.ClientGroup{}
	}
	if haveStats {
		snap.Analytics = &analytics
	}
	return snap, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, joinURL(s.baseURL, endpoint), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /%s: %s", endpoint, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding /%s: %w", endpoint, err)
	}
	return nil
}

// HTTPActions performs file actions against the upload server.
type HTTPActions struct {
	baseURL string
	client  *retryablehttp.Client
	// deleter never retries: a DELETE whose response was lost may already
	// have been applied.
	deleter *retryablehttp.Client
}

// NewHTTPActions shares the source's client configuration.
func NewHTTPActions(src *HTTPSource) *HTTPActions {
	deleter := retryablehttp.NewClient()
	deleter.HTTPClient = src.client.HTTPClient
	deleter.Logger = src.client.Logger
	deleter.RetryMax = 0
	return &HTTPActions{baseURL: src.baseURL, client: src.client, deleter: deleter}
}

// View fetches the file with ?view=true into a temp file and returns its
// location for the OS opener.
func (a *HTTPActions) View(ctx context.Context, filePath string) (string, error) {
	f, err := os.CreateTemp("", "dropdash-*"+path.Ext(filePath))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()

	if err := a.fetch(ctx, fileURL(a.baseURL, filePath)+"?view=true", f); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Download saves the file under destDir using its base name, picking
// "name (1).ext" and so on when that name is taken.
func (a *HTTPActions) Download(ctx context.Context, filePath, destDir string) (string, error) {
	return saveDownload(destDir, path.Base(filePath), func(w io.Writer) error {
		return a.fetch(ctx, fileURL(a.baseURL, filePath), w)
	})
}

// Delete issues DELETE /files/<path>.
func (a *HTTPActions) Delete(ctx context.Context, filePath string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, fileURL(a.baseURL, filePath), nil)
	if err != nil {
		return err
	}
	resp, err := a.deleter.Do(req)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", filePath, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		debug.Log("deleted %s", filePath)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", filePath, ErrNotFound)
	default:
		return fmt.Errorf("deleting %s: %s", filePath, resp.Status)
	}
}

func (a *HTTPActions) fetch(ctx context.Context, u string, w io.Writer) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	return nil
}

func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// fileURL escapes each segment of a slash-separated file path.
func fileURL(base, filePath string) string {
	parts := strings.Split(strings.Trim(filePath, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return joinURL(base, "files/"+strings.Join(parts, "/"))
}
