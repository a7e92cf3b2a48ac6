package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"waypoint-optimizer/internal/ingest"
	"waypoint-optimizer/internal/models"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// RunListResponse is a page of stored runs
type RunListResponse struct {
	Runs   []models.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func parsePaging(r *http.Request) (limit, offset int) {
	limit = defaultRunLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxRunLimit)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// HandleListRuns handles GET /api/v1/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	runs, total, err := h.DB.Runs().List(r.Context(), limit, offset)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	log.Printf("[HTTP] GET /api/v1/runs: limit=%d offset=%d total=%d", limit, offset, total)

	resp := RunListResponse{Runs: runs, Total: total, Limit: limit, Offset: offset}
	if h.isHTMX(r) {
		h.renderTemplate(w, "runs.html", resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// runPath splits /api/v1/runs/{id}[/export]
func runPath(path string) (id, action string) {
	rest := strings.TrimPrefix(path, "/api/v1/runs/")
	id, action, _ = strings.Cut(rest, "/")
	return id, action
}

// HandleGetRun handles GET /api/v1/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, _ := runPath(r.URL.Path)

	run, err := h.DB.Runs().GetByID(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if run == nil {
		h.handleNotFound(w, r, "Run not found")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// HandleExportRun handles GET /api/v1/runs/{id}/export
func (h *Handler) HandleExportRun(w http.ResponseWriter, r *http.Request) {
	id, _ := runPath(r.URL.Path)

	run, err := h.DB.Runs().GetByID(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if run == nil {
		h.handleNotFound(w, r, "Run not found")
		return
	}

	buf, err := ingest.WriteRunXLSX(run)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="route-%s.xlsx"`, run.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleDeleteRun handles DELETE /api/v1/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, _ := runPath(r.URL.Path)

	if err := h.DB.Runs().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, r, "Run not found")
			return
		}
		h.renderError(w, r, err)
		return
	}

	log.Printf("[HTTP] DELETE /api/v1/runs/%s: deleted", id)
	if h.isHTMX(r) {
		// htmx swaps the removed row out with an empty body
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeRun dispatches /api/v1/runs/{id} and /api/v1/runs/{id}/export
func (h *Handler) ServeRun(w http.ResponseWriter, r *http.Request) {
	id, action := runPath(r.URL.Path)
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case action == "export" && r.Method == http.MethodGet:
		h.HandleExportRun(w, r)
	case action != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.HandleGetRun(w, r)
	case r.Method == http.MethodDelete:
		h.HandleDeleteRun(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
