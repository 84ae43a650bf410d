package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/debug"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// ErrNotLoaded is returned while the mirror has no snapshot yet.
var ErrNotLoaded = errors.New("no snapshot loaded yet")

// Mirror caches the latest snapshot of a source for concurrent readers.
type Mirror struct {
	src   datasource.Source
	loads singleflight.Group

	mu      sync.RWMutex
	snap    model.Snapshot
	loaded  bool
	lastErr error
	count   int
}

// NewMirror returns an empty mirror over src.
func NewMirror(src datasource.Source) *Mirror {
	return &Mirror{src: src}
}

// Refresh loads a new snapshot. On failure the previous snapshot is kept.
// Callers arriving while a load is in flight wait for that load and share
// its result, so loads never overlap.
func (m *Mirror) Refresh(ctx context.Context) error {
	_, err, _ := m.loads.Do("load", func() (any, error) {
		return nil, m.load(ctx)
	})
	return err
}

func (m *Mirror) load(ctx context.Context) error {
	start := time.Now()
	snap, err := m.src.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastErr = err
		debug.Log("server: refresh failed after %s: %v", time.Since(start), err)
		return fmt.Errorf("refresh: %w", err)
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	m.snap = snap
	m.loaded = true
	m.lastErr = nil
	m.count++
	debug.LogTiming("server.Refresh", time.Since(start))
	return nil
}

// Snapshot returns the cached snapshot. Callers must treat it as read-only.
func (m *Mirror) Snapshot() (model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		if m.lastErr != nil {
			return model.Snapshot{}, fmt.Errorf("%w: %v", ErrNotLoaded, m.lastErr)
		}
		return model.Snapshot{}, ErrNotLoaded
	}
	return m.snap, nil
}

// Status describes the mirror for health checks.
type Status struct {
	Loaded    bool   `json:"loaded"`
	FetchedAt string `json:"fetched_at,omitempty"`
	Loads     int    `json:"loads"`
	LastError string `json:"last_error,omitempty"`
}

// Status reports whether a snapshot is cached and the last refresh error.
func (m *Mirror) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Status{Loaded: m.loaded, Loads: m.count}
	if m.loaded {
		s.FetchedAt = m.snap.FetchedAt.Format(time.RFC3339)
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// Run refreshes every interval until ctx is done. Refresh errors are logged
// and retried on the next tick.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Refresh(ctx)
		}
	}
}
