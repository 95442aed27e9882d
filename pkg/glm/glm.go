// Package glm fits the general linear model at every graph node and returns
// the t-like statistic of a contrast of the fitted coefficients. One fit per
// permutation covers all nodes: the design factorisation is shared across
// the node dimension.
package glm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/andrealuppi/mrtrix3/pkg/permutation"
)

// Sentinel errors for model specification.
var (
	// ErrSubjectCount indicates a design whose row count differs from the
	// number of data columns (subjects).
	ErrSubjectCount = errors.New("glm: design rows do not match subject count")
	// ErrContrastLength indicates a contrast longer than the design width.
	ErrContrastLength = errors.New("glm: contrast has more entries than design columns")
	// ErrDegreesOfFreedom indicates a design with no residual degrees of freedom.
	ErrDegreesOfFreedom = errors.New("glm: design leaves no residual degrees of freedom")
)

// PadContrast right-pads a contrast vector with zeros to the design width.
// A contrast longer than the design is a configuration error.
func PadContrast(contrast []float64, cols int) ([]float64, error) {
	if len(contrast) > cols {
		return nil, fmt.Errorf("%w: %d entries, %d columns", ErrContrastLength, len(contrast), cols)
	}
	padded := make([]float64, cols)
	copy(padded, contrast)
	return padded, nil
}

// Validate checks the dimensional consistency of data (nodes x subjects),
// design (subjects x regressors) and contrast before any computation starts.
func Validate(data, design *mat.Dense, contrast []float64) error {
	_, subjects := data.Dims()
	rows, cols := design.Dims()
	if rows != subjects {
		return fmt.Errorf("%w: %d rows, %d subjects", ErrSubjectCount, rows, subjects)
	}
	if len(contrast) > cols {
		return fmt.Errorf("%w: %d entries, %d columns", ErrContrastLength, len(contrast), cols)
	}
	if rows-cols < 1 {
		return fmt.Errorf("%w: %d rows, %d regressors", ErrDegreesOfFreedom, rows, cols)
	}
	return nil
}

// applyPermutation returns the design with rows reordered or sign-flipped
// according to the descriptor. The identity descriptor returns the design
// unchanged so the observed statistic is computed on the exact input matrix.
func applyPermutation(design *mat.Dense, perm permutation.Descriptor) *mat.Dense {
	if perm.Identity {
		return design
	}
	rows, cols := design.Dims()
	out := mat.NewDense(rows, cols, nil)
	switch {
	case perm.Order != nil:
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out.Set(i, j, design.At(perm.Order[i], j))
			}
		}
	case perm.Signs != nil:
		for i := 0; i < rows; i++ {
			s := float64(perm.Signs[i])
			for j := 0; j < cols; j++ {
				out.Set(i, j, s*design.At(i, j))
			}
		}
	default:
		out.Copy(design)
	}
	return out
}

// ComputeStatistic fits the GLM under the permuted design and returns the
// per-node t statistic of the contrast. data is nodes x subjects; the
// returned slice has one value per node, in graph order.
//
// Nodes with zero residual variance (or a variance that rounds to a
// non-finite statistic) get the sentinel value 0 rather than an error: a
// flat data column is a degenerate observation, not a failure.
func ComputeStatistic(data, design *mat.Dense, contrast []float64, perm permutation.Descriptor) ([]float64, error) {
	if err := Validate(data, design, contrast); err != nil {
		return nil, err
	}
	nodes, subjects := data.Dims()
	_, regressors := design.Dims()
	dof := float64(subjects - regressors)

	c, err := PadContrast(contrast, regressors)
	if err != nil {
		return nil, err
	}
	cvec := mat.NewVecDense(regressors, c)

	x := applyPermutation(design, perm)

	// Least-squares fit of all nodes at once: Y is subjects x nodes.
	y := data.T()
	var qr mat.QR
	qr.Factorize(x)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("glm: least squares solve: %w", err)
		}
		// Ill-conditioned design: the solution is still defined, degenerate
		// nodes fall out as zero statistics below.
	}

	// Variance of the contrast estimate: sigma2 * c' (X'X)^-1 c. The second
	// factor is permutation-dependent but node-independent, computed once.
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var z mat.VecDense
	if err := z.SolveVec(&xtx, cvec); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("glm: normal equations solve: %w", err)
		}
	}
	cquad := mat.Dot(cvec, &z)

	var fitted mat.Dense
	fitted.Mul(x, &beta)

	statistic := make([]float64, nodes)
	for node := 0; node < nodes; node++ {
		ssr := 0.0
		for s := 0; s < subjects; s++ {
			r := y.At(s, node) - fitted.At(s, node)
			ssr += r * r
		}
		sigma2 := ssr / dof

		effect := 0.0
		for j := 0; j < regressors; j++ {
			effect += c[j] * beta.At(j, node)
		}

		se := math.Sqrt(sigma2 * cquad)
		t := effect / se
		if se == 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			t = 0
		}
		statistic[node] = t
	}
	return statistic, nil
}
