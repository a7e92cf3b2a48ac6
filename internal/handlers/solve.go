package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/models"
	"waypoint-optimizer/internal/routing"
)

// SolveRequest runs one solver on an uploaded dataset. Params starts from
// routing.DefaultParams, so a request only names the tunables it changes.
type SolveRequest struct {
	DatasetID string             `json:"dataset_id"`
	Algorithm string             `json:"algorithm"`
	Start     models.Coordinates `json:"start"`
	End       models.Coordinates `json:"end"`
	// StartAddress and EndAddress are geocoded when given
	StartAddress string         `json:"start_address,omitempty"`
	EndAddress   string         `json:"end_address,omitempty"`
	Seed         int64          `json:"seed"`
	Params       routing.Params `json:"params"`
}

// SolveResponse is the outcome of POST /api/v1/solve
type SolveResponse struct {
	Run         *models.Run                `json:"run"`
	Result      *models.OptimizationResult `json:"result"`
	Stops       []models.Waypoint          `json:"stops"`
	Improvement float64                    `json:"improvement_pct"`
	MapsURL     string                     `json:"maps_url,omitempty"`
}

// HandleSolve handles POST /api/v1/solve
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	req := SolveRequest{Params: routing.DefaultParams()}

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/x-www-form-urlencoded") || strings.Contains(contentType, "multipart/form-data") {
		if err := parseSolveForm(r, &req); err != nil {
			log.Printf("[HTTP] POST /api/v1/solve: form_parse_error err=%v", err)
			h.handleValidationError(w, r, err.Error())
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/solve: invalid_json err=%v", err)
		h.handleValidationError(w, r, "Invalid request body")
		return
	}

	if req.DatasetID == "" {
		h.handleValidationError(w, r, "Please upload a dataset first.")
		return
	}
	ds := h.Datasets.Get(req.DatasetID)
	if ds == nil {
		h.handleNotFound(w, r, "Dataset not found. Please upload it again.")
		return
	}

	algorithm, err := routing.ParseAlgorithm(req.Algorithm)
	if err != nil {
		h.handleSolverError(w, r, err)
		return
	}

	if err := h.resolveAnchors(r.Context(), &req); err != nil {
		log.Printf("[ERROR] Failed to resolve anchors: err=%v", err)
		h.handleValidationError(w, r, err.Error())
		return
	}

	params := req.Params
	if req.Seed != 0 {
		params = params.WithSeed(req.Seed)
	}
	params = params.WithWorkers(h.Workers)

	log.Printf("[HTTP] POST /api/v1/solve: dataset=%s algorithm=%s waypoints=%d", ds.ID, algorithm, len(ds.Waypoints))

	resp, err := h.solve(r.Context(), ds, algorithm, req.Start, req.End, params)
	if err != nil {
		log.Printf("[ERROR] Solve failed: dataset=%s algorithm=%s err=%v", ds.ID, algorithm, err)
		h.handleSolverError(w, r, err)
		return
	}

	if h.isHTMX(r) {
		h.renderTemplate(w, "result.html", resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) solve(ctx context.Context, ds *models.Dataset, algorithm routing.Algorithm, start, end models.Coordinates, params routing.Params) (*SolveResponse, error) {
	problem := routing.Problem{Waypoints: ds.Coordinates(), Start: start, End: end}

	geodesic, provider := h.Geodesic, h.GeodesicName
	if geodesic == nil {
		geodesic, provider = distance.Vincenty, distance.ProviderVincenty
	}
	var modelOpts []distance.ModelOption
	if h.Workers > 0 {
		modelOpts = append(modelOpts, distance.WithWorkers(h.Workers))
	}
	if h.DB != nil && provider != "" {
		modelOpts = append(modelOpts, distance.WithCache(h.DB.DistanceCache(), provider))
	}

	solver, err := routing.New(algorithm, problem, params,
		routing.WithGeodesic(geodesic),
		routing.WithDistanceOptions(modelOpts...),
	)
	if err != nil {
		return nil, err
	}

	result, err := solver.Optimize(ctx)
	if err != nil {
		return nil, err
	}

	stops := lo.Map(result.Route, func(idx int, _ int) models.Waypoint {
		return ds.Waypoints[idx]
	})

	paramsJSON, err := json.Marshal(routing.ParamsFor(algorithm, params))
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	run := &models.Run{
		DatasetName:   ds.Name,
		Algorithm:     string(algorithm),
		Params:        string(paramsJSON),
		Route:         result.Route,
		StopNames:     lo.Map(stops, func(w models.Waypoint, _ int) string { return w.Label() }),
		Path:          result.Path,
		DistanceKm:    result.DistanceKm,
		BaselineKm:    result.BaselineKm,
		WaypointCount: len(ds.Waypoints),
		ElapsedMs:     result.Elapsed.Milliseconds(),
		Seed:          result.Seed,
		Start:         start,
		End:           end,
	}
	if h.DB != nil {
		if run, err = h.DB.Runs().Create(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
	}

	return &SolveResponse{
		Run:         run,
		Result:      result,
		Stops:       stops,
		Improvement: result.Improvement(),
		MapsURL:     distance.GoogleMapsURL(result.Path),
	}, nil
}

// resolveAnchors geocodes the start and end addresses when they were given
func (h *Handler) resolveAnchors(ctx context.Context, req *SolveRequest) error {
	lookup := func(address string, into *models.Coordinates) error {
		if strings.TrimSpace(address) == "" {
			return nil
		}
		if h.Geocoder == nil {
			return fmt.Errorf("cannot look up %q: geocoding is not configured", address)
		}
		place, err := h.Geocoder.GeocodeWithRetry(ctx, address, 3)
		if err != nil {
			return err
		}
		*into = place.Coords
		return nil
	}
	if err := lookup(req.StartAddress, &req.Start); err != nil {
		return err
	}
	return lookup(req.EndAddress, &req.End)
}

// parseSolveForm reads the dashboard form. Only the chosen algorithm's
// iteration and population fields are read.
func parseSolveForm(r *http.Request, req *SolveRequest) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form data: %w", err)
	}

	req.DatasetID = r.FormValue("dataset_id")
	req.Algorithm = r.FormValue("algorithm")
	req.StartAddress = r.FormValue("start_address")
	req.EndAddress = r.FormValue("end_address")

	floatField := func(name string, into *float64) error {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", name)
		}
		*into = f
		return nil
	}
	intField := func(name string, into *int) error {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a whole number", name)
		}
		*into = n
		return nil
	}

	var seed int
	fields := []error{
		floatField("start_lat", &req.Start.Lat),
		floatField("start_lng", &req.Start.Lng),
		floatField("end_lat", &req.End.Lat),
		floatField("end_lng", &req.End.Lng),
		intField("seed", &seed),
	}

	p := &req.Params
	switch routing.Algorithm(strings.ToLower(req.Algorithm)) {
	case routing.AlgorithmACO:
		fields = append(fields,
			intField("iterations", &p.ACO.Iterations),
			intField("population", &p.ACO.Ants),
			intField("n_best", &p.ACO.Best),
			floatField("decay", &p.ACO.Decay),
			floatField("alpha", &p.ACO.Alpha),
			floatField("beta", &p.ACO.Beta),
		)
	case routing.AlgorithmGenetic:
		fields = append(fields,
			intField("iterations", &p.GA.Generations),
			intField("population", &p.GA.PopSize),
			intField("elite_size", &p.GA.EliteSize),
			floatField("mutation_rate", &p.GA.MutationRate),
		)
	case routing.AlgorithmPSO:
		fields = append(fields,
			intField("iterations", &p.PSO.Iterations),
			intField("population", &p.PSO.Particles),
			floatField("inertia_weight", &p.PSO.Inertia),
			floatField("c1", &p.PSO.C1),
			floatField("c2", &p.PSO.C2),
		)
	case routing.AlgorithmBPSO:
		fields = append(fields,
			intField("iterations", &p.BPSO.Iterations),
			intField("population", &p.BPSO.Particles),
			floatField("inertia_weight", &p.BPSO.Inertia),
			floatField("c1", &p.BPSO.C1),
			floatField("c2", &p.BPSO.C2),
		)
		if policy := r.FormValue("mask_policy"); policy != "" {
			p.BPSO.MaskPolicy = policy
		}
	}

	for _, err := range fields {
		if err != nil {
			return err
		}
	}
	req.Seed = int64(seed)
	return nil
}
