package routing

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"waypoint-optimizer/internal/models"
)

// ProgressFunc receives one event per iteration. It is called on the solver
// goroutine and must not block.
type ProgressFunc func(models.ProgressEvent)

// ChannelProgress forwards events to ch, dropping them when ch is full
func ChannelProgress(ch chan<- models.ProgressEvent) ProgressFunc {
	return func(e models.ProgressEvent) {
		select {
		case ch <- e:
		default:
		}
	}
}

// tracker accumulates the convergence history of a run
type tracker struct {
	notify  ProgressFunc
	history []models.ProgressEvent
}

func newTracker(notify ProgressFunc, iterations int) *tracker {
	return &tracker{
		notify:  notify,
		history: make([]models.ProgressEvent, 0, iterations),
	}
}

// record summarises the costs evaluated in one iteration
func (t *tracker) record(iteration int, costs []float64, best float64) {
	e := models.ProgressEvent{
		Iteration:    iteration,
		BestDistance: best,
	}
	if len(costs) > 0 {
		e.IterationBest = costs[floats.MinIdx(costs)]
		e.MeanDistance = stat.Mean(costs, nil)
		if len(costs) > 1 {
			e.StdDev = stat.StdDev(costs, nil)
		}
	}
	t.history = append(t.history, e)
	if t.notify != nil {
		t.notify(e)
	}
}
