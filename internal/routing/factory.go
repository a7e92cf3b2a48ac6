package routing

// New builds the solver for algorithm using its section of params
func New(algorithm Algorithm, problem Problem, params Params, opts ...Option) (Solver, error) {
	var (
		solver Solver
		err    error
	)
	switch algorithm {
	case AlgorithmACO:
		solver, err = asSolver(NewACO(problem, params.ACO, opts...))
	case AlgorithmGenetic:
		solver, err = asSolver(NewGenetic(problem, params.GA, opts...))
	case AlgorithmPSO:
		solver, err = asSolver(NewPSO(problem, params.PSO, opts...))
	case AlgorithmBPSO:
		solver, err = asSolver(NewBPSO(problem, params.BPSO, opts...))
	case AlgorithmNearestNeighbor:
		solver, err = asSolver(NewNearestNeighbor(problem, true, opts...))
	default:
		return nil, &ErrInvalidConfig{Field: "algorithm", Reason: "unknown algorithm " + string(algorithm)}
	}
	if err != nil {
		return nil, err
	}
	return solver, nil
}

// asSolver drops the typed nil a failed constructor returns
func asSolver[S Solver](s S, err error) (Solver, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ParamsFor returns the tunables of one algorithm, for storing alongside a run
func ParamsFor(algorithm Algorithm, params Params) any {
	switch algorithm {
	case AlgorithmACO:
		return params.ACO
	case AlgorithmGenetic:
		return params.GA
	case AlgorithmPSO:
		return params.PSO
	case AlgorithmBPSO:
		return params.BPSO
	}
	return struct{}{}
}
