package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"waypoint-optimizer/internal/models"
)

// Algorithm names a solver
type Algorithm string

const (
	AlgorithmACO             Algorithm = "aco"
	AlgorithmGenetic         Algorithm = "ga"
	AlgorithmPSO             Algorithm = "pso"
	AlgorithmBPSO            Algorithm = "bpso"
	AlgorithmNearestNeighbor Algorithm = "nn"
)

// Algorithms lists every solver in the order the dashboard offers them
var Algorithms = []Algorithm{AlgorithmACO, AlgorithmGenetic, AlgorithmPSO, AlgorithmBPSO, AlgorithmNearestNeighbor}

// ParseAlgorithm resolves a solver name
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "aco", "ant-colony":
		return AlgorithmACO, nil
	case "ga", "genetic", "ga-2opt":
		return AlgorithmGenetic, nil
	case "pso", "particle-swarm":
		return AlgorithmPSO, nil
	case "bpso", "binary-pso":
		return AlgorithmBPSO, nil
	case "nn", "nearest-neighbor", "greedy":
		return AlgorithmNearestNeighbor, nil
	}
	return "", &ErrInvalidConfig{Field: "algorithm", Reason: fmt.Sprintf("unknown algorithm %q", name)}
}

// Title returns a display name
func (a Algorithm) Title() string {
	switch a {
	case AlgorithmACO:
		return "Ant Colony Optimization"
	case AlgorithmGenetic:
		return "Genetic Algorithm + 2-opt"
	case AlgorithmPSO:
		return "Particle Swarm Optimization"
	case AlgorithmBPSO:
		return "Binary Particle Swarm Optimization"
	case AlgorithmNearestNeighbor:
		return "Nearest Neighbour"
	}
	return string(a)
}

// Problem is a fixed start / fixed end routing problem
type Problem struct {
	Waypoints []models.Coordinates
	Start     models.Coordinates
	End       models.Coordinates
}

func (p Problem) validate() error {
	if len(p.Waypoints) == 0 {
		return ErrNoWaypoints
	}
	for i, w := range p.Waypoints {
		if !w.IsValid() {
			return &ErrInvalidConfig{Field: fmt.Sprintf("waypoints[%d]", i), Reason: "coordinates out of range"}
		}
	}
	if !p.Start.IsValid() {
		return &ErrInvalidConfig{Field: "start", Reason: "coordinates out of range"}
	}
	if !p.End.IsValid() {
		return &ErrInvalidConfig{Field: "end", Reason: "coordinates out of range"}
	}
	return nil
}

// Solver runs one optimization. Each call is an independent run; a solver
// keeps no state between calls.
type Solver interface {
	Optimize(ctx context.Context) (*models.OptimizationResult, error)
}

// ErrNoWaypoints is returned when a problem has nothing to visit
var ErrNoWaypoints = errors.New("routing problem has no waypoints")

// ErrInvalidConfig is returned before any iteration runs when a tunable or
// input is out of range
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid solver configuration: %s %s", e.Field, e.Reason)
}
