package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
	"github.com/vanderheijden86/dropdash/pkg/testutil"
)

type fakeSource struct {
	mu    sync.Mutex
	snap  model.Snapshot
	err   error
	calls int
}

func (s *fakeSource) Load(context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.snap, s.err
}

func (s *fakeSource) set(snap model.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap, s.err = snap, err
}

type fakeActions struct {
	mu      sync.Mutex
	dir     string
	deleted []string
}

func (a *fakeActions) View(_ context.Context, p string) (string, error) {
	if strings.Contains(p, "missing") {
		return "", datasource.ErrNotFound
	}
	local := filepath.Join(a.dir, filepath.Base(p))
	return local, os.WriteFile(local, []byte("%PDF-1.4"), 0o644)
}

func (a *fakeActions) Download(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (a *fakeActions) Delete(_ context.Context, p string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, p)
	return nil
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Groups: map[string]model.ClientGroup{
			"c1": {Label: "Front desk", Tree: testutil.DateFolders("c1", 7)},
			"c2": {Label: "Back office", Tree: testutil.DateFolders("c2", 2)},
		},
		Clients: map[string]model.Client{
			"c1": {Label: "Front desk", Type: model.ClientTypeStarMachine},
			"c2": {Label: "back office", Type: model.ClientTypePC},
		},
		FetchedAt: time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC),
	}
}

func newTestHandler(t *testing.T, actions datasource.Actions) (http.Handler, *fakeSource, *Mirror) {
	t.Helper()
	src := &fakeSource{snap: testSnapshot()}
	m := NewMirror(src)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	r := NewRouter(m, actions, Options{
		Tree:         filetree.Options{PageSize: 5},
		StorageLimit: 1000,
		WarnPercent:  80,
		Quiet:        true,
	})
	return r.SetupRoutes(), src, m
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v\nbody: %s", method, target, err, rec.Body.String())
		}
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode data: %v\nbody: %s", err, rec.Body.String())
	}
	return env.Data
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, resp := do(t, h, http.MethodGet, "/health")

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected healthy response, got %d %+v", rec.Code, resp)
	}
	st := decodeData[Status](t, rec)
	if !st.Loaded || st.Loads != 1 || st.FetchedAt != "2024-01-08T09:30:00Z" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestTree_Paginated(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/tree")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	groups := decodeData[[]filetree.Group](t, rec)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	byID := map[string]filetree.Group{}
	for _, g := range groups {
		byID[g.ClientID] = g
	}
	c1 := byID["c1"]
	if !c1.ShowMore || len(c1.Rows) != 5 || c1.FileCount != 7 {
		t.Errorf("expected 5 of 7 entries with show more, got %d rows show_more=%v files=%d", len(c1.Rows), c1.ShowMore, c1.FileCount)
	}
	if byID["c2"].ShowMore {
		t.Error("c2 has only 2 entries and should not offer show more")
	}
}

func TestTree_RevealExpandAndSearch(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	rec, _ := do(t, h, http.MethodGet, "/api/tree?reveal_all=true&expand=all")
	for _, g := range decodeData[[]filetree.Group](t, rec) {
		if g.ShowMore || len(g.Rows) != 2*g.FileCount {
			t.Errorf("client %s: expected everything open, got %d rows", g.ClientID, len(g.Rows))
		}
	}

	rec, _ = do(t, h, http.MethodGet, "/api/tree?q=2024-01-07")
	groups := decodeData[[]filetree.Group](t, rec)
	var names []string
	for _, g := range groups {
		for _, r := range g.Rows {
			names = append(names, r.ClientID+":"+r.Name)
		}
	}
	// The matching folder is shown but stays closed.
	testutil.AssertStrings(t, names, "c1:2024-01-07")

	rec, _ = do(t, h, http.MethodGet, "/api/tree?q=upload&open=c2/2024-01-01")
	names = names[:0]
	for _, g := range decodeData[[]filetree.Group](t, rec) {
		for _, r := range g.Rows {
			if r.Path != "" {
				names = append(names, r.Path)
			}
		}
	}
	if len(names) != 9 {
		t.Errorf("expected every upload to match, got %v", names)
	}
}

func TestTree_OpenParam(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/tree/c2?open=c2/2024-01-02")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	g := decodeData[filetree.Group](t, rec)
	if g.ClientID != "c2" || len(g.Rows) != 3 {
		t.Fatalf("expected c2 with one open folder, got %+v", g)
	}
	if !g.Rows[0].Open || g.Rows[1].Path != "c2/2024-01-02/upload.pdf" {
		t.Errorf("expected 2024-01-02 open with its file, got %+v", g.Rows[:2])
	}
}

func TestTree_UnknownClient(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, resp := do(t, h, http.MethodGet, "/api/tree/nope")
	if rec.Code != http.StatusNotFound || resp.Success {
		t.Errorf("expected 404 failure, got %d %+v", rec.Code, resp)
	}
}

func TestStats(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/stats")

	st := decodeData[StatsResponse](t, rec)
	if st.Files != 9 || st.Clients != 2 || st.Limit != 1000 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(st.Days) != 7 || st.Days[0].Files != 2 {
		t.Errorf("unexpected uploads by day %+v", st.Days)
	}
	if st.Warning {
		t.Error("no usage known, should not warn")
	}
}

func TestStats_WarningFromAnalytics(t *testing.T) {
	h, src, m := newTestHandler(t, nil)
	snap := testSnapshot()
	snap.Analytics = &model.Analytics{TotalFiles: 9, TotalSizeBytes: 900, StorageLimitBytes: 1000}
	src.set(snap, nil)
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec, _ := do(t, h, http.MethodGet, "/api/stats")
	st := decodeData[StatsResponse](t, rec)
	if !st.Warning || st.Percent != 90 {
		t.Errorf("expected 90%% with warning, got %+v", st)
	}
}

func TestClients_SortedByLabel(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/clients")

	clients := decodeData[[]ClientEntry](t, rec)
	if len(clients) != 2 || clients[0].ID != "c2" || clients[1].TypeName != "Star Machine" {
		t.Errorf("unexpected clients %+v", clients)
	}
}

func TestNotLoaded(t *testing.T) {
	src := &fakeSource{err: errors.New("server down")}
	m := NewMirror(src)
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	h := NewRouter(m, nil, Options{Quiet: true}).SetupRoutes()

	rec, resp := do(t, h, http.MethodGet, "/api/tree")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(resp.Message, "server down") {
		t.Errorf("expected 503 naming the cause, got %d %+v", rec.Code, resp)
	}
	if st := m.Status(); st.Loaded || st.LastError == "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRefresh_KeepsSnapshotOnError(t *testing.T) {
	h, src, m := newTestHandler(t, nil)
	src.set(model.Snapshot{}, errors.New("timeout"))

	rec, resp := do(t, h, http.MethodPost, "/api/refresh")
	if rec.Code != http.StatusBadGateway || resp.Success {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if _, err := m.Snapshot(); err != nil {
		t.Errorf("previous snapshot should survive, got %v", err)
	}
	if m.Status().LastError == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestFiles_ReadOnly(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	rec, _ := do(t, h, http.MethodDelete, "/api/files/c1/2024-01-01/upload.pdf")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 without actions, got %d", rec.Code)
	}
}

func TestFiles_GetAndDelete(t *testing.T) {
	actions := &fakeActions{dir: t.TempDir()}
	h, src, _ := newTestHandler(t, actions)

	rec, _ := do(t, h, http.MethodGet, "/api/files/c1/2024-01-01/upload.pdf")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Errorf("expected file body, got %d %q", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodGet, "/api/files/c1/missing.pdf")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	before := src.calls
	rec, resp := do(t, h, http.MethodDelete, "/api/files/c1/2024-01-01/upload.pdf")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected delete success, got %d %+v", rec.Code, resp)
	}
	testutil.AssertStrings(t, actions.deleted, "c1/2024-01-01/upload.pdf")
	if src.calls != before+1 {
		t.Errorf("delete should refresh the mirror once, got %d loads", src.calls-before)
	}
}

func TestFilePathParam_RejectsTraversal(t *testing.T) {
	actions := &fakeActions{dir: t.TempDir()}
	h, _, _ := newTestHandler(t, actions)

	rec, _ := do(t, h, http.MethodDelete, "/api/files/c1/../../etc/passwd")
	if rec.Code == http.StatusOK {
		t.Error("traversal path must not succeed")
	}
	if len(actions.deleted) != 0 {
		t.Errorf("nothing should be deleted, got %v", actions.deleted)
	}
}

func TestMirror_Run(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	m := NewMirror(src)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for m.Status().Loads < 2 {
		select {
		case <-deadline:
			t.Fatal("mirror did not refresh in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestServer_ServeAndShutdown(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	m := NewMirror(src)
	_ = m.Refresh(context.Background())
	srv := NewServer("127.0.0.1:0", m, NewRouter(m, nil, Options{Quiet: true}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if err := <-errc; err != nil {
		t.Errorf("Serve should return nil after shutdown, got %v", err)
	}
}

// gatedSource blocks every Load until release is closed and records how many
// loads ran at once.
type gatedSource struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	entered     chan struct{}
	release     chan struct{}
}

func (s *gatedSource) Load(context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()

	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return testSnapshot(), nil
}

func TestMirror_RefreshesDoNotOverlap(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := NewMirror(src)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Refresh(context.Background())
		}()
	}

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no load started")
	}
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Refresh error: %v", err)
		}
	}
	if src.maxInFlight != 1 {
		t.Errorf("expected at most 1 load in flight, got %d", src.maxInFlight)
	}
	if _, err := m.Snapshot(); err != nil {
		t.Errorf("expected a snapshot after refresh, got %v", err)
	}
}
