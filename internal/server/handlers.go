package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
	"github.com/vanderheijden86/dropdash/pkg/model"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// BaseHandler provides the JSON helpers shared by all handlers.
type BaseHandler struct{}

func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{Success: false, Message: message})
}

func (h *BaseHandler) sendSuccess(w http.ResponseWriter, message string, data any) {
	h.sendJSON(w, http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// snapshotOr503 writes 503 when the mirror has nothing to serve yet.
func (h *BaseHandler) snapshotOr503(w http.ResponseWriter, m *Mirror) (model.Snapshot, bool) {
	snap, err := m.Snapshot()
	if err != nil {
		h.sendError(w, http.StatusServiceUnavailable, err.Error())
		return model.Snapshot{}, false
	}
	return snap, true
}

// HealthHandler reports liveness and cache status.
type HealthHandler struct {
	BaseHandler
	mirror *Mirror
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.sendSuccess(w, "dropdash is healthy", h.mirror.Status())
}

// ParseView reads q, reveal_all, expand=all and repeated open=<id>
// parameters.
func ParseView(r *http.Request) filetree.View {
	v := r.URL.Query()
	reveal, _ := strconv.ParseBool(v.Get("reveal_all"))
	return filetree.View{
		Query:     v.Get("q"),
		RevealAll: reveal,
		ExpandAll: v.Get("expand") == "all",
		Expanded:  v["open"],
	}
}

// TreeHandler serves rendered client trees.
type TreeHandler struct {
	BaseHandler
	mirror *Mirror
	opts   filetree.Options
}

// ListGroups handles GET /api/tree.
func (h *TreeHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshotOr503(w, h.mirror)
	if !ok {
		return
	}
	groups := filetree.RenderView(snap.Groups, h.opts, ParseView(r))
	h.sendSuccess(w, "", groups)
}

// GetGroup handles GET /api/tree/{clientID}.
func (h *TreeHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshotOr503(w, h.mirror)
	if !ok {
		return
	}
	clientID := chi.URLParam(r, "clientID")
	raw, found := snap.Groups[clientID]
	if !found {
		h.sendError(w, http.StatusNotFound, "unknown client "+clientID)
		return
	}
	v := ParseView(r)
	v.RevealAll = true
	groups := filetree.RenderView(map[string]model.ClientGroup{clientID: raw}, h.opts, v)
	h.sendSuccess(w, "", groups[0])
}

// StatsHandler serves totals, storage usage and uploads by day.
type StatsHandler struct {
	BaseHandler
	mirror      *Mirror
	opts        filetree.Options
	limit       int64
	warnPercent float64
}

// StatsResponse is the payload of GET /api/stats.
type StatsResponse struct {
	filetree.Usage
	Warning bool `json:"warning"`
}

// GetStats handles GET /api/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshotOr503(w, h.mirror)
	if !ok {
		return
	}
	f := filetree.BuildForest(snap.Groups, filetree.WithMaxDepth(h.opts.MaxDepth))
	u := filetree.ComputeUsage(f, snap.Analytics, h.limit)
	h.sendSuccess(w, "", StatsResponse{Usage: u, Warning: u.Warn(h.warnPercent)})
}

// ClientEntry is one row of GET /api/clients.
type ClientEntry struct {
	ID string `json:"id"`
	model.Client
	TypeName string `json:"type_name"`
}

// ClientsHandler serves the client registry.
type ClientsHandler struct {
	BaseHandler
	mirror *Mirror
}

// ListClients handles GET /api/clients. Sources without a registry answer
// with an empty list.
func (h *ClientsHandler) ListClients(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshotOr503(w, h.mirror)
	if !ok {
		return
	}
	out := make([]ClientEntry, 0, len(snap.Clients))
	for id, c := range snap.Clients {
		out = append(out, ClientEntry{ID: id, Client: c, TypeName: c.TypeName()})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Label), strings.ToLower(out[j].Label)
		if li != lj {
			return li < lj
		}
		return out[i].ID < out[j].ID
	})
	h.sendSuccess(w, "", out)
}

// SystemHandler triggers out-of-band refreshes.
type SystemHandler struct {
	BaseHandler
	mirror *Mirror
}

// Refresh handles POST /api/refresh.
func (h *SystemHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.mirror.Refresh(r.Context()); err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.sendSuccess(w, "refreshed", h.mirror.Status())
}

// FileHandler proxies file actions to the backend.
type FileHandler struct {
	BaseHandler
	mirror  *Mirror
	actions datasource.Actions
	timeout time.Duration
}

func filePathParam(r *http.Request) (string, bool) {
	p := chi.URLParam(r, "*")
	if p == "" {
		return "", false
	}
	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean != p {
		return "", false
	}
	return clean, true
}

func (h *FileHandler) actionContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

// GetFile handles GET /api/files/*. The backend materializes the file
// locally and it is streamed back.
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	if h.actions == nil {
		h.sendError(w, http.StatusMethodNotAllowed, "source is read-only")
		return
	}
	p, ok := filePathParam(r)
	if !ok {
		h.sendError(w, http.StatusBadRequest, "invalid file path")
		return
	}
	ctx, cancel := h.actionContext(r)
	defer cancel()

	local, err := h.actions.View(ctx, p)
	if err != nil {
		h.sendActionError(w, err)
		return
	}
	if _, err := os.Stat(local); err != nil {
		h.sendActionError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(path.Base(p), `"`, "")+`"`)
	http.ServeFile(w, r, local)
}

// DeleteFile handles DELETE /api/files/* and refreshes the mirror.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if h.actions == nil {
		h.sendError(w, http.StatusMethodNotAllowed, "source is read-only")
		return
	}
	p, ok := filePathParam(r)
	if !ok {
		h.sendError(w, http.StatusBadRequest, "invalid file path")
		return
	}
	ctx, cancel := h.actionContext(r)
	defer cancel()

	if err := h.actions.Delete(ctx, p); err != nil {
		h.sendActionError(w, err)
		return
	}
	_ = h.mirror.Refresh(r.Context())
	h.sendSuccess(w, "deleted "+p, nil)
}

func (h *FileHandler) sendActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, datasource.ErrNotFound), errors.Is(err, os.ErrNotExist):
		h.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.sendError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.sendError(w, http.StatusBadGateway, err.Error())
	}
}
