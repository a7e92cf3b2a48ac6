package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"waypoint-optimizer/internal/ingest"
	"waypoint-optimizer/internal/models"
)

// defaultMaxUpload is used when Handler.MaxUploadBytes is unset
const defaultMaxUpload = 10 << 20

// DatasetResponse is returned after an upload and by GET /api/v1/datasets/{id}
type DatasetResponse struct {
	Dataset  *models.Dataset     `json:"dataset"`
	Skipped  []ingest.SkippedRow `json:"skipped,omitempty"`
	Geocoded int                 `json:"geocoded,omitempty"`
}

// HandleUploadDataset handles POST /api/v1/datasets
func (h *Handler) HandleUploadDataset(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Printf("[HTTP] POST /api/v1/datasets: upload exceeds %d bytes", limit)
			h.handleValidationError(w, r, "File is too large.")
			return
		}
		log.Printf("[HTTP] POST /api/v1/datasets: form_parse_error err=%v", err)
		h.handleValidationError(w, r, "Invalid upload. Send the spreadsheet in the \"file\" field.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleValidationError(w, r, "Please choose a spreadsheet to upload.")
		return
	}
	defer file.Close()

	opts := ingest.Options{
		Sheet:   strings.TrimSpace(r.FormValue("sheet")),
		MaxRows: h.MaxRows,
	}
	if h.GeocodeMissing && h.Geocoder != nil {
		opts.Geocoder = h.Geocoder
	}

	log.Printf("[HTTP] POST /api/v1/datasets: file=%s size=%d", header.Filename, header.Size)
	result, err := ingest.Read(r.Context(), header.Filename, file, opts)
	if err != nil {
		log.Printf("[ERROR] Failed to read dataset: file=%s err=%v", header.Filename, err)
		h.handleIngestError(w, r, err, result)
		return
	}

	ds := h.Datasets.Create(header.Filename, result.Waypoints, len(result.Skipped))
	resp := DatasetResponse{Dataset: ds, Skipped: result.Skipped, Geocoded: result.Geocoded}

	if h.isHTMX(r) {
		h.renderTemplate(w, "waypoints.html", resp)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// HandleGetDataset handles GET /api/v1/datasets/{id}
func (h *Handler) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/datasets/")
	ds := h.Datasets.Get(id)
	if ds == nil {
		log.Printf("[HTTP] GET /api/v1/datasets/%s: not found", id)
		h.handleNotFound(w, r, "Dataset not found. Please upload it again.")
		return
	}

	resp := DatasetResponse{Dataset: ds}
	if h.isHTMX(r) {
		h.renderTemplate(w, "waypoints.html", resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleListDatasets handles GET /api/v1/datasets
func (h *Handler) HandleListDatasets(w http.ResponseWriter, r *http.Request) {
	type summary struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Waypoints int    `json:"waypoints"`
	}

	list := h.Datasets.List()
	out := make([]summary, len(list))
	for i, ds := range list {
		out[i] = summary{ID: ds.ID, Name: ds.Name, Waypoints: len(ds.Waypoints)}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": out})
}

// HandleDeleteDataset handles DELETE /api/v1/datasets/{id}
func (h *Handler) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/datasets/")
	if !h.Datasets.Delete(id) {
		h.handleNotFound(w, r, "Dataset not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
