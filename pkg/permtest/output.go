package permtest

import (
	"fmt"

	"github.com/andrealuppi/mrtrix3/internal/textio"
)

// WriteResults persists the six flat output artifacts under the given path
// prefix: the positive and negative enhanced images, p-value images and
// null distribution dumps. Image files are addressed by graph node order;
// re-embedding into volumes is left to the imaging I/O tools.
func WriteResults(prefix string, res *Result) error {
	outputs := []struct {
		suffix string
		values []float64
	}{
		{"_tfce_pos.txt", res.ObservedPos},
		{"_tfce_neg.txt", res.ObservedNeg},
		{"_pvalue_pos.txt", res.PValuesPos},
		{"_pvalue_neg.txt", res.PValuesNeg},
		{"_permutation_pos.txt", res.NullPos},
		{"_permutation_neg.txt", res.NullNeg},
	}
	for _, out := range outputs {
		if err := textio.SaveVector(prefix+out.suffix, out.values); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
	}
	return nil
}
