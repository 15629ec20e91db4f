package adaptivity

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownStrategy is returned for a marking strategy name that is not
// recognised
var ErrUnknownStrategy = errors.New("unknown marking strategy")

// Mark flags the cells to refine from their error indicators.
//
//	dorfler           smallest set of largest indicators whose sum reaches
//	                  fraction of the total
//	maximum           indicators at least fraction × the largest one
//	equidistribution  indicators above fraction × the mean
func Mark(indicators []float64, strategy string, fraction float64) ([]bool, error) {
	if fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("marking fraction %g outside [0, 1]", fraction)
	}
	markers := make([]bool, len(indicators))
	if len(indicators) == 0 {
		switch strategy {
		case Dorfler, Maximum, Equidistribution:
			return markers, nil
		}
	}

	switch strategy {
	case Dorfler:
		total := 0.0
		for _, e := range indicators {
			total += e
		}
		order := make([]int, len(indicators))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return indicators[order[a]] > indicators[order[b]]
		})
		sum := 0.0
		for _, c := range order {
			if sum >= fraction*total {
				break
			}
			markers[c] = true
			sum += indicators[c]
		}

	case Maximum:
		largest := indicators[0]
		for _, e := range indicators[1:] {
			if e > largest {
				largest = e
			}
		}
		for c, e := range indicators {
			markers[c] = e >= fraction*largest
		}

	case Equidistribution:
		mean := 0.0
		for _, e := range indicators {
			mean += e
		}
		mean /= float64(len(indicators))
		for c, e := range indicators {
			markers[c] = e > fraction*mean
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	return markers, nil
}

// CountMarked returns the number of flagged cells
func CountMarked(markers []bool) int {
	n := 0
	for _, m := range markers {
		if m {
			n++
		}
	}
	return n
}
