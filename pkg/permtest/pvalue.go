package permtest

import "sort"

// PValues converts an observed enhanced image into voxelwise p-values by
// rank against a completed null distribution:
//
//	p = (1 + #{null >= observed}) / (1 + len(null))
//
// The +1 terms count the observed statistic as a member of its own null,
// which keeps every p-value inside (0, 1] and makes the estimator monotonic
// in the observed value. An empty null (a run with only the identity
// permutation) yields p = 1 everywhere.
func PValues(null, observed []float64) []float64 {
	sorted := make([]float64, len(null))
	copy(sorted, null)
	sort.Float64s(sorted)

	denom := float64(1 + len(sorted))
	p := make([]float64, len(observed))
	for i, v := range observed {
		// entries >= v are those from the first index not less than v
		idx := sort.SearchFloat64s(sorted, v)
		greaterEqual := len(sorted) - idx
		p[i] = float64(1+greaterEqual) / denom
	}
	return p
}
