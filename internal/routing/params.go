package routing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Common holds the settings every solver shares
type Common struct {
	// Seed selects the random stream. Zero uses DefaultSeed.
	Seed int64 `json:"seed"`
	// Workers bounds per-iteration parallelism. Zero uses runtime.NumCPU.
	Workers int `json:"workers" validate:"gte=0"`
}

// DefaultSeed is used when no seed is given
const DefaultSeed = 42

// ACOParams tunes the ant colony solver
type ACOParams struct {
	Common
	Ants       int     `json:"n_ants" validate:"gt=0"`
	Best       int     `json:"n_best" validate:"gt=0,ltefield=Ants"`
	Iterations int     `json:"n_iterations" validate:"gt=0"`
	Decay      float64 `json:"decay" validate:"gt=0,lte=1"`
	Alpha      float64 `json:"alpha" validate:"gte=0"`
	Beta       float64 `json:"beta" validate:"gte=0"`
	// WrapAround also reinforces the edge from the last waypoint back to the
	// first, as a closed tour would.
	WrapAround bool `json:"wrap_around"`
}

// GAParams tunes the genetic solver
type GAParams struct {
	Common
	PopSize      int     `json:"pop_size" validate:"gt=0"`
	EliteSize    int     `json:"elite_size" validate:"gte=0,ltfield=PopSize"`
	MutationRate float64 `json:"mutation_rate" validate:"gte=0,lte=1"`
	Generations  int     `json:"generations" validate:"gt=0"`
	// TournamentSize of zero uses 5
	TournamentSize int  `json:"tournament_size" validate:"gte=0"`
	TwoOpt         bool `json:"two_opt"`
}

// PSOParams tunes the permutation particle swarm solver
type PSOParams struct {
	Common
	Particles  int     `json:"num_particles" validate:"gt=0"`
	Iterations int     `json:"num_iterations" validate:"gt=0"`
	Inertia    float64 `json:"inertia_weight" validate:"gte=0"`
	C1         float64 `json:"c1" validate:"gte=0"`
	C2         float64 `json:"c2" validate:"gte=0"`
	// StagnationLimit re-randomizes the swarm after that many iterations
	// without improving the overall best. Zero disables restarts.
	StagnationLimit int `json:"stagnation_limit" validate:"gte=0"`
}

// Mask policies for the binary swarm
const (
	MaskForceAll   = "force-all"
	MaskAtLeastOne = "at-least-one"
)

// BPSOParams tunes the binary particle swarm solver
type BPSOParams struct {
	PSOParams
	// MaskPolicy decides what happens when a sampled mask leaves waypoints out
	MaskPolicy string `json:"mask_policy" validate:"omitempty,oneof=force-all at-least-one"`
	// Steepness is the k in sigmoid(k*v). Zero uses 2.
	Steepness float64 `json:"sigmoid_k" validate:"gte=0"`
}

// Params carries the tunables of every solver so callers can pick one at runtime
type Params struct {
	ACO  ACOParams  `json:"aco"`
	GA   GAParams   `json:"ga"`
	PSO  PSOParams  `json:"pso"`
	BPSO BPSOParams `json:"bpso"`
}

// DefaultParams returns the dashboard defaults
func DefaultParams() Params {
	pso := PSOParams{
		Particles:  10,
		Iterations: 100,
		Inertia:    0.5,
		C1:         1.5,
		C2:         1.5,
	}
	return Params{
		ACO: ACOParams{
			Ants:       10,
			Best:       5,
			Iterations: 100,
			Decay:      0.95,
			Alpha:      1,
			Beta:       2,
		},
		GA: GAParams{
			PopSize:        50,
			EliteSize:      10,
			MutationRate:   0.01,
			Generations:    100,
			TournamentSize: 5,
			TwoOpt:         true,
		},
		PSO: pso,
		BPSO: BPSOParams{
			PSOParams:  pso,
			MaskPolicy: MaskForceAll,
			Steepness:  2,
		},
	}
}

// WithSeed sets the seed of every solver
func (p Params) WithSeed(seed int64) Params {
	p.ACO.Seed = seed
	p.GA.Seed = seed
	p.PSO.Seed = seed
	p.BPSO.Seed = seed
	return p
}

// WithWorkers sets the worker count of every solver
func (p Params) WithWorkers(workers int) Params {
	p.ACO.Workers = workers
	p.GA.Workers = workers
	p.PSO.Workers = workers
	p.BPSO.Workers = workers
	return p
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateParams converts validator failures into ErrInvalidConfig
func validateParams(params any) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate parameters: %w", err)
	}

	fe := verrs[0]
	return &ErrInvalidConfig{Field: fe.Field(), Reason: describeRule(fe.Tag(), fe.Param())}
}

func describeRule(tag, param string) string {
	switch tag {
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be at least " + param
	case "lt":
		return "must be less than " + param
	case "lte":
		return "must be at most " + param
	case "ltfield":
		return "must be less than " + fieldLabel(param)
	case "ltefield":
		return "must not exceed " + fieldLabel(param)
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	}
	return "failed rule " + tag
}

func fieldLabel(goName string) string {
	switch goName {
	case "Ants":
		return "n_ants"
	case "PopSize":
		return "pop_size"
	}
	return goName
}
