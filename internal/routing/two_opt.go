package routing

import (
	"waypoint-optimizer/internal/distance"
)

// twoOptEpsilon is the smallest gain worth a reversal
const twoOptEpsilon = 1e-10

// twoOpt applies first-improvement 2-opt to an anchored route: every accepted
// reversal restarts the scan, and it stops after a full pass with no gain.
// The input is not modified.
func twoOpt(m *distance.Model, route []int) []int {
	stops := cloneRoute(route)
	n := len(stops)
	if n < 2 {
		return stops
	}

	// leg lengths to the neighbours of a position; the ends border the anchors
	before := func(pos, node int) float64 {
		if pos == 0 {
			return m.FromStart(node)
		}
		return m.Distance(stops[pos-1], node)
	}
	after := func(pos, node int) float64 {
		if pos == n-1 {
			return m.ToEnd(node)
		}
		return m.Distance(node, stops[pos+1])
	}

	improved := true
	for improved {
		improved = false
	scan:
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				// Current edges: prev(i)->stops[i] and stops[j]->next(j)
				// After reverse: prev(i)->stops[j] and stops[i]->next(j)
				current := before(i, stops[i]) + after(j, stops[j])
				reversed := before(i, stops[j]) + after(j, stops[i])
				if reversed < current-twoOptEpsilon {
					reverse(stops, i, j)
					improved = true
					break scan
				}
			}
		}
	}

	return stops
}
