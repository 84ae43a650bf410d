package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32

	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() {
		called.Store(true)
	})
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

// uploadRoot creates root/c1/2024-01-01/a.pdf.
func uploadRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	day := filepath.Join(root, "c1", "2024-01-01")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(day, "a.pdf"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func waitChanged(t *testing.T, w *Watcher, what string) {
	t.Helper()
	select {
	case <-w.Changed():
	case <-time.After(time.Second):
		t.Errorf("timeout waiting for change notification: %s", what)
	}
}

func TestWatcher_DetectsNestedUpload(t *testing.T) {
	root := uploadRoot(t)

	var (
		changeMu sync.Mutex
		changed  bool
	)
	w, err := NewWatcher(root,
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(func() {
			changeMu.Lock()
			changed = true
			changeMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	// A write two levels below the root.
	if err := os.WriteFile(filepath.Join(root, "c1", "2024-01-01", "b.pdf"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, "nested write")

	changeMu.Lock()
	wasChanged := changed
	changeMu.Unlock()
	if !wasChanged {
		t.Error("expected OnChange to run")
	}
}

func TestWatcher_WatchesNewFolders(t *testing.T) {
	root := uploadRoot(t)

	w, err := NewWatcher(root, WithDebounceDuration(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify unavailable on this filesystem")
	}

	newDay := filepath.Join(root, "c2", "2024-02-01")
	if err := os.MkdirAll(newDay, 0o755); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, "new client folder")

	// Let the watch on the new folder settle, then write inside it.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(newDay, "x.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, "write in new folder")
}

func TestWatcher_PollingFallback(t *testing.T) {
	root := uploadRoot(t)

	w, err := NewWatcher(root,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Error("expected watcher to be in polling mode")
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.Remove(filepath.Join(root, "c1", "2024-01-01", "a.pdf"))
	}()
	waitChanged(t, w, "deleted upload via polling")
}

func TestWatcher_DatabaseFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "blobs.db")
	if err := os.WriteFile(db, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(db, WithDebounceDuration(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify unavailable on this filesystem")
	}

	time.Sleep(50 * time.Millisecond)
	// Unrelated siblings are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Changed():
		t.Error("unrelated file should not trigger a change")
	case <-time.After(150 * time.Millisecond):
	}

	if err := os.WriteFile(db+"-wal", []byte("wal"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, "wal write")
}

func TestWatcher_EnvForcePolling(t *testing.T) {
	for _, name := range []string{"DROPDASH_FORCE_POLLING", "DROPDASH_FORCE_POLL"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "1")

			w, err := NewWatcher(uploadRoot(t),
				WithDebounceDuration(10*time.Millisecond),
				WithPollInterval(25*time.Millisecond),
			)
			if err != nil {
				t.Fatal(err)
			}
			if err := w.Start(); err != nil {
				t.Fatal(err)
			}
			defer w.Stop()

			if !w.IsPolling() {
				t.Fatalf("expected polling mode when %s is set", name)
			}
		})
	}
}

func TestWatcher_RemoteFilesystem_UsesPolling(t *testing.T) {
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w, err := NewWatcher(uploadRoot(t),
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to use polling on remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Fatalf("expected filesystem type %v, got %v", FSTypeNFS, got)
	}
}

func TestWatcher_RootRemoved(t *testing.T) {
	root := uploadRoot(t)

	var (
		errMu    sync.Mutex
		gotError error
	)
	w, err := NewWatcher(root,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			errMu.Lock()
			gotError = err
			errMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	errMu.Lock()
	receivedError := gotError
	errMu.Unlock()
	if receivedError != ErrFileRemoved {
		t.Errorf("expected ErrFileRemoved, got %v", receivedError)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := NewWatcher(uploadRoot(t))
	if err != nil {
		t.Fatal(err)
	}

	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if !w.IsStarted() {
		t.Error("watcher should be started after Start()")
	}
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()
	if w.IsStarted() {
		t.Error("watcher should not be started after Stop()")
	}
	w.Stop()
}

func TestWatcher_PathAndInterval(t *testing.T) {
	root := uploadRoot(t)
	w, err := NewWatcher(root, WithPollInterval(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	absPath, _ := filepath.Abs(root)
	if w.Path() != absPath {
		t.Errorf("expected path %s, got %s", absPath, w.Path())
	}
	if got := w.PollInterval(); got != 500*time.Millisecond {
		t.Errorf("expected poll interval 500ms, got %v", got)
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType   FilesystemType
		expected string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.expected {
			t.Errorf("FilesystemType(%d).String() = %q, expected %q", tc.fsType, got, tc.expected)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL"); got != tc.expected {
				t.Errorf("envBool(%q) = %v, expected %v", tc.value, got, tc.expected)
			}
		})
	}
}

func TestDetectFilesystemType_EmptyPath(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, expected FSTypeUnknown", got)
	}
}

func TestDetectFilesystemType_NonExistentPath(t *testing.T) {
	// Falls back to the nearest existing ancestor.
	_ = DetectFilesystemType(filepath.Join(t.TempDir(), "does", "not", "exist"))
}
