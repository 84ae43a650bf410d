// Package watcher notifies the dashboard when the upload store changes on
// disk. Directory targets are watched recursively; file targets (a blob
// index database) are watched through their parent directory.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/dropdash/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched path was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked when the target changes.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// fingerprint summarizes a target for the polling fallback.
type fingerprint struct {
	exists bool
	files  int
	size   int64
	mtime  time.Time
}

func (f fingerprint) differs(o fingerprint) bool {
	return f.exists != o.exists || f.files != o.files || f.size != o.size || !f.mtime.Equal(o.mtime)
}

// Watcher monitors an upload folder or a database file using fsnotify with
// a polling fallback.
type Watcher struct {
	path             string
	isDir            bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	last        fingerprint

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a new watcher for the given path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching the target for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.path)
	if err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	w.isDir = err == nil && info.IsDir()

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.forcePollEnv = envBool("DROPDASH_FORCE_POLLING") || envBool("DROPDASH_FORCE_POLL")
	w.fsType = DetectFilesystemType(w.path)
	if isRemoteFilesystem(w.fsType) {
		w.useFallback = true
	}

	forcePoll := w.forcePoll || w.forcePollEnv
	if forcePoll {
		w.useFallback = true
	}

	w.last = w.snapshot()

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err := w.addWatches(fsw); err != nil {
				debug.Log("watcher: fsnotify unavailable for %s: %v", w.path, err)
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		} else {
			w.useFallback = true
		}
	}

	if w.useFallback {
		go w.watchPolling()
	}

	debug.Log("watcher: started on %s (dir=%v, polling=%v, fs=%s)", w.path, w.isDir, w.useFallback, w.fsType)
	w.started = true
	return nil
}

// addWatches registers every directory under a directory target, or the
// parent directory of a file target.
func (w *Watcher) addWatches(fsw *fsnotify.Watcher) error {
	if !w.isDir {
		return fsw.Add(filepath.Dir(w.path))
	}
	return filepath.WalkDir(w.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == w.path {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
}

// Stop stops watching.
// The change channel stays open: closing it would race notifyChange and
// wake any pending Changed() receiver in a loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when the target changes.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	return w.path
}

// FilesystemType returns the best-effort filesystem classification for the watched path.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// relevant reports whether an event path concerns the target. For a file
// target, SQLite's -wal and -journal siblings count.
func (w *Watcher) relevant(name string) bool {
	if w.isDir {
		return true
	}
	base := filepath.Base(w.path)
	ev := filepath.Base(name)
	return ev == base || ev == base+"-wal" || ev == base+"-journal"
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify() {
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	fsw := w.fsWatcher
	events := fsw.Events
	errs := fsw.Errors
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}

			if event.Name == w.path && event.Op&fsnotify.Remove != 0 {
				w.onError(ErrFileRemoved)
				continue
			}

			// New client or day folders need their own watch.
			if w.isDir && event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(fsw, event.Name)
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(p); err != nil {
				debug.Warn("watcher: cannot watch %s: %v", p, err)
			}
		}
		return nil
	})
}

// snapshot fingerprints the target: file count, total size and newest mtime.
func (w *Watcher) snapshot() fingerprint {
	info, err := os.Stat(w.path)
	if err != nil {
		return fingerprint{}
	}
	if !info.IsDir() {
		return fingerprint{exists: true, files: 1, size: info.Size(), mtime: info.ModTime()}
	}
	fp := fingerprint{exists: true, mtime: info.ModTime()}
	_ = filepath.WalkDir(w.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.ModTime().After(fp.mtime) {
			fp.mtime = fi.ModTime()
		}
		if !d.IsDir() {
			fp.files++
			fp.size += fi.Size()
		}
		return nil
	})
	return fp
}

// watchPolling monitors using periodic fingerprints.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			if _, err := os.Stat(w.path); err != nil {
				if os.IsNotExist(err) {
					w.mu.RLock()
					hadTarget := w.last.exists
					w.mu.RUnlock()
					if hadTarget {
						w.onError(ErrFileRemoved)
					}
				} else if os.IsPermission(err) {
					w.onError(ErrPermission)
				} else {
					w.onError(err)
				}
			}

			current := w.snapshot()
			w.mu.Lock()
			changed := current.differs(w.last)
			if changed {
				w.last = current
			}
			w.mu.Unlock()

			if changed && current.exists {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	if !started {
		return
	}

	w.onChange()

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
