package permtest

import (
	"github.com/montanaflynn/stats"
)

// DistributionSummary condenses a null distribution for reporting.
type DistributionSummary struct {
	Size   int
	Mean   float64
	Median float64
	P95    float64
	Max    float64
}

// Summarize computes the headline statistics of a null distribution. An
// empty distribution (single-permutation run) summarises to the zero value.
func Summarize(null []float64) (DistributionSummary, error) {
	s := DistributionSummary{Size: len(null)}
	if len(null) == 0 {
		return s, nil
	}
	var err error
	if s.Mean, err = stats.Mean(null); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(null); err != nil {
		return s, err
	}
	if s.P95, err = stats.Percentile(null, 95); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(null); err != nil {
		return s, err
	}
	return s, nil
}
