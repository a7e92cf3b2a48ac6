package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"log"
	"net/http"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/geocoding"
	"waypoint-optimizer/internal/ingest"
	"waypoint-optimizer/internal/routing"
)

// TemplateSet holds base templates and page templates separately
type TemplateSet struct {
	Base  *template.Template
	Pages map[string]string
	Funcs template.FuncMap
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB        database.DataStore
	Geocoder  geocoding.Geocoder
	Datasets  *DatasetStore
	Templates *TemplateSet

	// Geodesic is the distance used to build every model
	Geodesic distance.Func
	// GeodesicName tags cached distances with the provider that produced
	// them. A custom Geodesic without a name bypasses the cache.
	GeodesicName string
	// Workers bounds solver and matrix parallelism, zero means NumCPU
	Workers int
	// MaxUploadBytes caps dataset uploads
	MaxUploadBytes int64
	// MaxRows caps the data rows read from a spreadsheet, zero reads all
	MaxRows int
	// GeocodeMissing resolves rows without coordinates through Geocoder
	GeocodeMissing bool
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// isHTMX checks if the request is an htmx request
func (h *Handler) isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeAlert writes an htmx alert fragment
func (h *Handler) writeAlert(w http.ResponseWriter, status int, class, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<div class="alert %s">%s</div>`, class, html.EscapeString(message))
}

// handleNotFound handles 404 errors with htmx support
func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request, message string) {
	if h.isHTMX(r) {
		h.writeAlert(w, http.StatusNotFound, "alert-warning", message)
		return
	}
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors with htmx support
func (h *Handler) handleValidationError(w http.ResponseWriter, r *http.Request, message string) {
	if h.isHTMX(r) {
		h.writeAlert(w, http.StatusBadRequest, "alert-warning", message)
		return
	}
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleSolverError maps solver failures to 422 responses
func (h *Handler) handleSolverError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *routing.ErrInvalidConfig
	switch {
	case errors.As(err, &cfgErr):
		if h.isHTMX(r) {
			h.writeAlert(w, http.StatusUnprocessableEntity, "alert-warning", cfgErr.Error())
			return
		}
		h.writeError(w, http.StatusUnprocessableEntity, "SOLVER_CONFIG", cfgErr.Error(), map[string]string{
			"field":  cfgErr.Field,
			"reason": cfgErr.Reason,
		})
	case errors.Is(err, routing.ErrNoWaypoints):
		if h.isHTMX(r) {
			h.writeAlert(w, http.StatusUnprocessableEntity, "alert-warning", err.Error())
			return
		}
		h.writeError(w, http.StatusUnprocessableEntity, "SOLVER_CONFIG", err.Error(), nil)
	default:
		h.renderError(w, r, err)
	}
}

// handleIngestError maps spreadsheet failures to 400 / 422 responses
func (h *Handler) handleIngestError(w http.ResponseWriter, r *http.Request, err error, result *ingest.Result) {
	if errors.Is(err, ingest.ErrUnsupportedFormat) {
		h.handleValidationError(w, r, err.Error())
		return
	}

	var parseErr *ingest.ErrParseFailed
	if !errors.As(err, &parseErr) && !errors.Is(err, ingest.ErrNoWaypoints) {
		h.renderError(w, r, err)
		return
	}

	if h.isHTMX(r) {
		h.writeAlert(w, http.StatusUnprocessableEntity, "alert-warning", err.Error())
		return
	}
	var details interface{}
	if result != nil {
		details = map[string]interface{}{"skipped": result.Skipped}
	}
	h.writeError(w, http.StatusUnprocessableEntity, "INGEST_FAILED", err.Error(), details)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// renderTemplate renders an HTML template
func (h *Handler) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Always clone to avoid "cannot Clone after executed" error
	tmpl, err := h.Templates.Base.Clone()
	if err != nil {
		log.Printf("[ERROR] Template clone error: template=%s err=%v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if pageContent, ok := h.Templates.Pages[name]; ok {
		// page templates define "content" and render inside layout.html
		if _, err = tmpl.New(name).Parse(pageContent); err != nil {
			log.Printf("[ERROR] Template parse error: template=%s err=%v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
			log.Printf("[ERROR] Template execute error: template=%s err=%v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[ERROR] Template partial error: template=%s err=%v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// renderError renders an error response (JSON for API, HTML for htmx)
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if h.isHTMX(r) {
		log.Printf("[ERROR] Internal error: %v", err)
		h.writeAlert(w, http.StatusInternalServerError, "alert-error", err.Error())
		return
	}
	h.handleInternalError(w, err)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"
	cached := 0

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	} else if n, err := h.DB.DistanceCache().Count(r.Context()); err == nil {
		cached = n
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           status,
		"version":          "1.0.0",
		"database":         dbStatus,
		"cached_distances": cached,
		"datasets":         h.Datasets.Len(),
	})
}

// HandleClearDistanceCache handles DELETE /api/v1/distance-cache
func (h *Handler) HandleClearDistanceCache(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.DistanceCache().Clear(r.Context()); err != nil {
		h.renderError(w, r, err)
		return
	}
	log.Printf("[HTTP] DELETE /api/v1/distance-cache: cleared")
	w.WriteHeader(http.StatusNoContent)
}
