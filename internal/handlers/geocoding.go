package handlers

import (
	"log"
	"net/http"
	"strings"

	"waypoint-optimizer/internal/geocoding"
)

const minSearchLength = 4

// AddressSuggestions is rendered under the start or end anchor input
type AddressSuggestions struct {
	// Target is "start" or "end"
	Target string
	Places []geocoding.Place
}

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("address"))
	target := r.URL.Query().Get("target")
	if target != "end" {
		target = "start"
	}

	var places []geocoding.Place
	if len(query) >= minSearchLength && h.Geocoder != nil {
		found, err := h.Geocoder.Search(r.Context(), query, 5)
		if err != nil {
			log.Printf("[ERROR] Failed to search addresses: query=%s err=%v", query, err)
		} else {
			places = found
		}
	}
	log.Printf("[HTTP] GET /api/v1/address-search: query=%s target=%s results=%d", query, target, len(places))

	if h.isHTMX(r) {
		if len(places) == 0 {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.renderTemplate(w, "address_suggestions.html", AddressSuggestions{Target: target, Places: places})
		return
	}

	if places == nil {
		places = []geocoding.Place{}
	}
	h.writeJSON(w, http.StatusOK, places)
}
