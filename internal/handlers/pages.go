package handlers

import (
	"net/http"

	"waypoint-optimizer/internal/routing"
)

// AlgorithmOption is one entry of the dashboard's solver picker
type AlgorithmOption struct {
	Value string
	Title string
}

// HandleIndexPage handles GET /
func (h *Handler) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	options := make([]AlgorithmOption, len(routing.Algorithms))
	for i, a := range routing.Algorithms {
		options[i] = AlgorithmOption{Value: string(a), Title: a.Title()}
	}

	data := map[string]interface{}{
		"Title":      "Route Optimizer",
		"ActivePage": "home",
		"Algorithms": options,
		"Defaults":   routing.DefaultParams(),
		"Datasets":   h.Datasets.List(),
	}

	h.renderTemplate(w, "index.html", data)
}

// HandleHistoryPage handles GET /history
func (h *Handler) HandleHistoryPage(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	runs, total, err := h.DB.Runs().List(r.Context(), limit, offset)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"Title":      "Run History",
		"ActivePage": "history",
		"Runs":       RunListResponse{Runs: runs, Total: total, Limit: limit, Offset: offset},
	}

	h.renderTemplate(w, "history.html", data)
}
