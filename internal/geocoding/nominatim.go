package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"waypoint-optimizer/internal/models"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	userAgent      = "WaypointOptimizer/1.0"
)

// Place is a geocoded location
type Place struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder turns free-text addresses into coordinates. It fills in
// spreadsheet rows that have a name but no coordinates and resolves the start
// and end anchors typed into the dashboard.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Place, error)
	GeocodeWithRetry(ctx context.Context, query string, maxRetries int) (*Place, error)
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// ErrGeocodingFailed is returned when a query cannot be resolved
type ErrGeocodingFailed struct {
	Query  string
	Reason string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for %q: %s", e.Query, e.Reason)
}

type nominatimGeocoder struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *time.Ticker
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a geocoder for the public Nominatim API, which
// allows one request per second.
func NewNominatimGeocoder() Geocoder {
	return newNominatim(defaultBaseURL, time.Second)
}

func newNominatim(baseURL string, interval time.Duration) *nominatimGeocoder {
	return &nominatimGeocoder{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: time.NewTicker(interval),
	}
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, query string) (*Place, error) {
	places, err := g.lookup(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		log.Printf("[GEOCODING] No results: query=%s", query)
		return nil, &ErrGeocodingFailed{Query: query, Reason: "no results found"}
	}
	log.Printf("[GEOCODING] Resolved: query=%s lat=%.6f lng=%.6f", query, places[0].Coords.Lat, places[0].Coords.Lng)
	return &places[0], nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, query string, maxRetries int) (*Place, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		place, err := g.Geocode(ctx, query)
		if err == nil {
			return place, nil
		}
		lastErr = err

		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[GEOCODING] Retry %d/%d: query=%s backoff=%v err=%v", attempt+1, maxRetries, query, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	return g.lookup(ctx, query, limit)
}

func (g *nominatimGeocoder) lookup(ctx context.Context, query string, limit int) ([]Place, error) {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	queryURL := g.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding request failed: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[ERROR] Geocoding API error: query=%s status=%d", query, resp.StatusCode)
		return nil, &ErrGeocodingFailed{Query: query, Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))}
	}

	var raw []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			log.Printf("[ERROR] Skipping unparseable geocoding result: query=%s lat=%s lon=%s", query, r.Lat, r.Lon)
			continue
		}
		places = append(places, Place{
			Coords:      models.Coordinates{Lat: lat, Lng: lng},
			DisplayName: r.DisplayName,
		})
	}
	return places, nil
}
