package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/delayboard/delayboard/server/internal/aggregate"
	"github.com/delayboard/delayboard/server/internal/alerts"
	"github.com/delayboard/delayboard/server/internal/store"
)

// AlertSource lists the alerts to expose on /api/v1/alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads dataset reports from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler wired to the given store and alert source and
// registers all routes. al may be nil.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/datasets", h.listDatasets)
	h.mux.HandleFunc("/api/v1/datasets/", h.dataset) // subtree, extracts {id}[/view]
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: overall status and dataset counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	resp := HealthResponse{
		DatasetCount: len(entries),
		AlertCount:   len(h.activeAlerts()),
	}
	for _, e := range entries {
		if e.OK() {
			resp.ReadyCount++
		} else {
			resp.FailedCount++
		}
	}
	switch {
	case resp.DatasetCount == 0:
		resp.Status = "unknown"
	case resp.FailedCount > 0:
		resp.Status = "degraded"
	default:
		resp.Status = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listDatasets returns GET /api/v1/datasets: one summary per dataset.
func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	out := make([]DatasetSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, toDatasetSummary(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// dataset dispatches GET /api/v1/datasets/{id} and its views.
func (h *Handler) dataset(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/datasets/"), "/")
	if rest == "" {
		h.listDatasets(w, r)
		return
	}
	id, view, _ := strings.Cut(rest, "/")

	e, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "dataset not found")
		return
	}
	if !e.OK() {
		jsonErr(w, http.StatusUnprocessableEntity, fmt.Sprintf("dataset %s failed to load: %v", id, e.Err))
		return
	}
	rep := toReportResponse(e)

	switch view {
	case "":
		jsonResp(w, http.StatusOK, rep)

	case "sweeps":
		sweeps := rep.Sweeps
		if p := r.URL.Query().Get("partition"); p != "" {
			if !validPartition(p) {
				jsonErr(w, http.StatusBadRequest, "unknown partition: want all|mobile|connect")
				return
			}
			sweeps = filterSweeps(sweeps, p)
		}
		jsonResp(w, http.StatusOK, sweeps)

	case "gaps":
		jsonResp(w, http.StatusOK, GapsResponse{DatasetID: id, Gaps: rep.Gaps})

	case "insights":
		jsonResp(w, http.StatusOK, rep.Insights)

	default:
		jsonErr(w, http.StatusNotFound, "unknown dataset view")
	}
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

// snapshot returns GET /api/v1/snapshot: everything the dashboard renders.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the snapshot payload from the store. It is shared
// with the WebSocket hub.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	resp := SnapshotResponse{
		Datasets:    make([]DatasetSummary, 0, len(entries)),
		Reports:     make([]ReportResponse, 0, len(entries)),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		resp.Datasets = append(resp.Datasets, toDatasetSummary(e))
		if e.OK() {
			resp.Reports = append(resp.Reports, toReportResponse(e))
		}
	}
	return resp
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.alerts == nil {
		return []*alerts.Alert{}
	}
	out := h.alerts.Active()
	if out == nil {
		out = []*alerts.Alert{}
	}
	return out
}

func validPartition(p string) bool {
	for _, known := range aggregate.Partitions {
		if string(known) == p {
			return true
		}
	}
	return false
}

func filterSweeps(in []SweepResponse, partition string) []SweepResponse {
	out := make([]SweepResponse, 0, 1)
	for _, s := range in {
		if s.Partition == partition {
			out = append(out, s)
		}
	}
	return out
}
