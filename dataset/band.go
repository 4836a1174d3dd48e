package dataset

import "sort"

// Bander assigns a mass band to a mass in grams.
type Bander interface {
	Band(massGrams float64) MassBand
}

// FixedBander buckets mass by the documented fixed boundaries. Boundaries are
// closed on the left and open on the right: exactly 1000g is Large, 999.99g
// is Medium. Downstream aggregate counts depend on this edge convention.
type FixedBander struct{}

func (FixedBander) Band(massGrams float64) MassBand {
	switch {
	case massGrams < 10:
		return BandMicroscopic
	case massGrams < 100:
		return BandSmall
	case massGrams < 1000:
		return BandMedium
	case massGrams < 10000:
		return BandLarge
	case massGrams < 1000000:
		return BandVeryLarge
	default:
		return BandMassive
	}
}

// QuantileBander buckets mass into six equal-count bins derived from an
// observed mass distribution. This is the documented alternative binning
// configuration (dataset.binning = "quantile"), not the reference behavior.
type QuantileBander struct {
	// cuts[i] is the lower bound of band i+1; len(cuts) == len(MassBands)-1
	cuts []float64
}

// NewQuantileBander derives bin boundaries from the given masses. With fewer
// masses than bands, every mass lands in the lowest band.
func NewQuantileBander(masses []float64) *QuantileBander {
	sorted := make([]float64, len(masses))
	copy(sorted, masses)
	sort.Float64s(sorted)

	n := len(MassBands)
	cuts := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if len(sorted) == 0 {
			break
		}
		idx := i * len(sorted) / n
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		cuts = append(cuts, sorted[idx])
	}
	return &QuantileBander{cuts: cuts}
}

func (q *QuantileBander) Band(massGrams float64) MassBand {
	for i, cut := range q.cuts {
		if massGrams < cut {
			return MassBands[i]
		}
	}
	return MassBands[len(MassBands)-1]
}
