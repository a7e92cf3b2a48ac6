package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/urfave/cli"

	"waypoint-optimizer/internal/database"
	"waypoint-optimizer/internal/distance"
	"waypoint-optimizer/internal/geocoding"
	"waypoint-optimizer/internal/ingest"
	"waypoint-optimizer/internal/models"
	"waypoint-optimizer/internal/routing"
	"waypoint-optimizer/internal/sqlite"
)

func main() {
	app := cli.NewApp()
	app.Name = "solve"
	app.Usage = "order the waypoints of a spreadsheet between a fixed start and end"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "input, i", Usage: "waypoint spreadsheet (.xlsx or .csv)"},
		cli.StringFlag{Name: "sheet", Usage: "worksheet to read, defaults to the first one"},
		cli.StringFlag{Name: "algorithm, a", Value: "aco", Usage: "aco, ga, pso, bpso, nn or all"},
		cli.StringFlag{Name: "start", Usage: `start anchor as "lat,lng" or an address`},
		cli.StringFlag{Name: "end", Usage: `end anchor as "lat,lng" or an address`},
		cli.Int64Flag{Name: "seed", Usage: "random seed, 0 uses the default"},
		cli.IntFlag{Name: "iterations", Usage: "override the iteration count"},
		cli.IntFlag{Name: "population", Usage: "override the ant, population or particle count"},
		cli.IntFlag{Name: "workers", Usage: "parallel workers, 0 uses every CPU"},
		cli.StringFlag{Name: "geodesic", Value: "vincenty", Usage: "vincenty or haversine"},
		cli.IntFlag{Name: "max-rows", Usage: "read at most this many data rows"},
		cli.BoolFlag{Name: "geocode-missing", Usage: "geocode rows without coordinates"},
		cli.StringFlag{Name: "db", Usage: "distance cache database, defaults to ~/.waypoint-optimizer/data.db"},
		cli.BoolFlag{Name: "no-cache", Usage: "do not read or write the distance cache"},
		cli.StringFlag{Name: "output, o", Usage: "write the JSON report here instead of stdout"},
	}
	app.Action = solve

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// SystemInfo describes the machine a report was produced on
type SystemInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	Cores    int    `json:"cores"`
	Memory   string `json:"memory"`
}

// RunReport is the outcome of one solver
type RunReport struct {
	Algorithm      string   `json:"algorithm"`
	Title          string   `json:"title"`
	DistanceKm     float64  `json:"distance_km"`
	BaselineKm     float64  `json:"baseline_km"`
	ImprovementPct float64  `json:"improvement_pct"`
	Iterations     int      `json:"iterations"`
	Seed           int64    `json:"seed"`
	ElapsedMs      int64    `json:"elapsed_ms"`
	Route          []int    `json:"route"`
	Stops          []string `json:"stops"`
	MapsURL        string   `json:"maps_url"`
}

// Report is printed once all solvers have finished
type Report struct {
	System    SystemInfo          `json:"system"`
	Input     string              `json:"input"`
	Waypoints int                 `json:"waypoints"`
	Skipped   []ingest.SkippedRow `json:"skipped,omitempty"`
	Start     models.Coordinates  `json:"start"`
	End       models.Coordinates  `json:"end"`
	Runs      []RunReport         `json:"runs"`
	CreatedAt time.Time           `json:"created_at"`
}

func solve(c *cli.Context) error {
	input := c.String("input")
	if input == "" {
		return fmt.Errorf("--input is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	algorithms, err := parseAlgorithms(c.String("algorithm"))
	if err != nil {
		return err
	}

	provider, err := distance.ProviderName(c.String("geodesic"))
	if err != nil {
		return err
	}
	geodesic, err := distance.ByName(provider)
	if err != nil {
		return err
	}

	geocoder := geocoding.NewNominatimGeocoder()

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	opts := ingest.Options{Sheet: c.String("sheet"), MaxRows: c.Int("max-rows")}
	if c.Bool("geocode-missing") {
		opts.Geocoder = geocoder
	}
	parsed, err := ingest.Read(ctx, input, f, opts)
	if err != nil {
		return err
	}
	for _, s := range parsed.Skipped {
		log.Printf("[INGEST] Skipped row %d: %s", s.Row, s.Reason)
	}

	start, err := parseAnchor(ctx, c.String("start"), geocoder)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseAnchor(ctx, c.String("end"), geocoder)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}

	var modelOpts []distance.ModelOption
	if w := c.Int("workers"); w > 0 {
		modelOpts = append(modelOpts, distance.WithWorkers(w))
	}
	if !c.Bool("no-cache") {
		store, err := openStore(c.String("db"))
		if err != nil {
			return err
		}
		defer store.Close()
		modelOpts = append(modelOpts, distance.WithCache(store.DistanceCache(), provider))
	}

	coords := lo.Map(parsed.Waypoints, func(w models.Waypoint, _ int) models.Coordinates { return w.Coords })
	model, err := distance.NewModel(ctx, coords, start, end, geodesic, modelOpts...)
	if err != nil {
		return err
	}

	params := applyOverrides(routing.DefaultParams(), c.Int("iterations"), c.Int("population")).
		WithSeed(c.Int64("seed")).
		WithWorkers(c.Int("workers"))

	report := Report{
		System:    systemInfo(),
		Input:     input,
		Waypoints: len(parsed.Waypoints),
		Skipped:   parsed.Skipped,
		Start:     start,
		End:       end,
		CreatedAt: time.Now().UTC(),
	}

	problem := routing.Problem{Waypoints: coords, Start: start, End: end}
	for _, algorithm := range algorithms {
		solver, err := routing.New(algorithm, problem, params, routing.WithModel(model))
		if err != nil {
			return err
		}
		result, err := solver.Optimize(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", algorithm, err)
		}
		report.Runs = append(report.Runs, RunReport{
			Algorithm:      string(algorithm),
			Title:          algorithm.Title(),
			DistanceKm:     result.DistanceKm,
			BaselineKm:     result.BaselineKm,
			ImprovementPct: result.Improvement(),
			Iterations:     result.Iterations,
			Seed:           result.Seed,
			ElapsedMs:      result.Elapsed.Milliseconds(),
			Route:          result.Route,
			Stops:          lo.Map(result.Route, func(idx int, _ int) string { return parsed.Waypoints[idx].Label() }),
			MapsURL:        distance.GoogleMapsURL(result.Path),
		})
		log.Printf("[TIMING] %s: %.3f km in %v", algorithm, result.DistanceKm, result.Elapsed)
	}

	var out io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		out = file
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func parseAlgorithms(name string) ([]routing.Algorithm, error) {
	if strings.EqualFold(strings.TrimSpace(name), "all") {
		return routing.Algorithms, nil
	}
	algorithm, err := routing.ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}
	return []routing.Algorithm{algorithm}, nil
}

// parseAnchor reads "lat,lng", falling back to geocoding the text as an address
func parseAnchor(ctx context.Context, value string, geocoder geocoding.Geocoder) (models.Coordinates, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.Coordinates{}, fmt.Errorf("an anchor is required")
	}

	if latText, lngText, ok := strings.Cut(value, ","); ok {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(latText), 64)
		lng, lngErr := strconv.ParseFloat(strings.TrimSpace(lngText), 64)
		if latErr == nil && lngErr == nil {
			c := models.Coordinates{Lat: lat, Lng: lng}
			if !c.IsValid() {
				return models.Coordinates{}, fmt.Errorf("coordinates %q are out of range", value)
			}
			return c, nil
		}
	}

	if geocoder == nil {
		return models.Coordinates{}, fmt.Errorf("%q is not a coordinate pair", value)
	}
	place, err := geocoder.GeocodeWithRetry(ctx, value, 3)
	if err != nil {
		return models.Coordinates{}, err
	}
	log.Printf("[GEOCODING] %q resolved to %s", value, place.DisplayName)
	return place.Coords, nil
}

// applyOverrides sets the iteration and population counts of every solver
func applyOverrides(p routing.Params, iterations, population int) routing.Params {
	if iterations > 0 {
		p.ACO.Iterations = iterations
		p.GA.Generations = iterations
		p.PSO.Iterations = iterations
		p.BPSO.Iterations = iterations
	}
	if population > 0 {
		p.ACO.Ants = population
		p.ACO.Best = min(p.ACO.Best, population)
		p.GA.PopSize = population
		p.GA.EliteSize = min(p.GA.EliteSize, population-1)
		p.PSO.Particles = population
		p.BPSO.Particles = population
	}
	return p
}

func openStore(path string) (*sqlite.Store, error) {
	if path == "" {
		var err error
		if path, err = database.GetDefaultDBPath(); err != nil {
			return nil, err
		}
	}
	return sqlite.New(path)
}

func systemInfo() SystemInfo {
	var info SystemInfo
	if h, err := host.Info(); err == nil {
		info.Platform = fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion)
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPU = cpus[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		info.Cores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.Memory = fmt.Sprintf("%d GB", vm.Total/1024/1024/1024)
	}
	return info
}
