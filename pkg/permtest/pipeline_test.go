package permtest

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/andrealuppi/mrtrix3/pkg/connectivity"
	"github.com/andrealuppi/mrtrix3/pkg/glm"
	"github.com/andrealuppi/mrtrix3/pkg/permutation"
	"github.com/andrealuppi/mrtrix3/pkg/volume"
)

// twoVoxelFixture builds the smallest interesting scenario: two connected
// voxels, four subjects, intercept + group design, contrast on the group
// column.
func twoVoxelFixture(t *testing.T) (*connectivity.Graph, *mat.Dense, *mat.Dense, []float64) {
	t.Helper()
	mask, err := volume.New([]float64{1, 1}, 2, 1, 1, 1)
	require.NoError(t, err)
	graph, err := connectivity.Build(mask, connectivity.DefaultOptions())
	require.NoError(t, err)

	design := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 0,
		1, 1,
		1, 1,
	})
	data := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		1.5, 2.5, 3.5, 4.5,
	})
	return graph, data, design, []float64{0, 1}
}

func TestRunIdentityOnly(t *testing.T) {
	graph, data, design, contrast := twoVoxelFixture(t)

	res, err := Run(graph, data, design, contrast, Params{
		NumPermutations: 1,
		DH:              0.1,
		ExtentExponent:  0.5,
		HeightExponent:  2.0,
		Workers:         2,
		Seed:            1,
	}, nil)
	require.NoError(t, err)

	assert.Empty(t, res.NullPos)
	assert.Empty(t, res.NullNeg)
	for _, p := range res.PValuesPos {
		assert.Equal(t, 1.0, p, "with an empty null every p-value is 1")
	}
	for _, p := range res.PValuesNeg {
		assert.Equal(t, 1.0, p)
	}
}

func TestRunObservedMatchesDirectComputation(t *testing.T) {
	graph, data, design, contrast := twoVoxelFixture(t)

	res, err := Run(graph, data, design, contrast, Params{
		NumPermutations: 20,
		DH:              0.1,
		ExtentExponent:  0.5,
		HeightExponent:  2.0,
		Workers:         4,
		Seed:            123,
	}, nil)
	require.NoError(t, err)

	order := []int{0, 1, 2, 3}
	direct, err := glm.ComputeStatistic(data, design, contrast,
		permutation.Descriptor{Order: order, Identity: true})
	require.NoError(t, err)

	assert.Equal(t, direct, res.ObservedStatistic,
		"identity statistic must equal the unpermuted least-squares statistic")
	require.Len(t, res.NullPos, 19)
	require.Len(t, res.NullNeg, 19)
	require.Len(t, res.ObservedPos, graph.NumNodes())
	require.Len(t, res.ObservedNeg, graph.NumNodes())
}

func TestRunWorkerCountInvariance(t *testing.T) {
	graph, data, design, contrast := twoVoxelFixture(t)

	params := Params{
		NumPermutations: 60,
		DH:              0.25,
		ExtentExponent:  1.0,
		HeightExponent:  1.0,
		Seed:            77,
	}

	params.Workers = 1
	serial, err := Run(graph, data, design, contrast, params, nil)
	require.NoError(t, err)

	params.Workers = 8
	parallel, err := Run(graph, data, design, contrast, params, nil)
	require.NoError(t, err)

	// The null distributions are unordered multisets of maxima: sorted they
	// must match exactly, whatever the scheduling interleaving was.
	sortedSerial := append([]float64(nil), serial.NullPos...)
	sortedParallel := append([]float64(nil), parallel.NullPos...)
	sort.Float64s(sortedSerial)
	sort.Float64s(sortedParallel)
	assert.Equal(t, sortedSerial, sortedParallel)

	sortedSerial = append([]float64(nil), serial.NullNeg...)
	sortedParallel = append([]float64(nil), parallel.NullNeg...)
	sort.Float64s(sortedSerial)
	sort.Float64s(sortedParallel)
	assert.Equal(t, sortedSerial, sortedParallel)

	assert.Equal(t, serial.ObservedPos, parallel.ObservedPos)
	assert.Equal(t, serial.ObservedNeg, parallel.ObservedNeg)
}

func TestRunPValuesInUnitInterval(t *testing.T) {
	graph, data, design, contrast := twoVoxelFixture(t)

	res, err := Run(graph, data, design, contrast, Params{
		NumPermutations: 50,
		DH:              0.1,
		ExtentExponent:  0.5,
		HeightExponent:  2.0,
		Seed:            5,
	}, nil)
	require.NoError(t, err)

	for _, side := range [][]float64{res.PValuesPos, res.PValuesNeg} {
		require.Len(t, side, graph.NumNodes())
		for _, p := range side {
			assert.Greater(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestRunParameterValidation(t *testing.T) {
	graph, data, design, contrast := twoVoxelFixture(t)

	_, err := Run(graph, data, design, contrast, Params{NumPermutations: 0, DH: 0.1}, nil)
	assert.ErrorIs(t, err, ErrPermutationCount)

	_, err = Run(graph, data, design, contrast, Params{NumPermutations: 10, DH: 0}, nil)
	assert.Error(t, err)

	_, err = Run(graph, data, design, contrast, Params{NumPermutations: 10, DH: 0.1, Workers: -1}, nil)
	assert.ErrorIs(t, err, ErrWorkerCount)
}

func TestRunConfigurationErrorsBeforeComputation(t *testing.T) {
	graph, data, _, _ := twoVoxelFixture(t)

	// Design with the wrong subject count.
	badDesign := mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 0})
	_, err := Run(graph, data, badDesign, []float64{0, 1}, Params{
		NumPermutations: 10, DH: 0.1, ExtentExponent: 0.5, HeightExponent: 2,
	}, nil)
	assert.ErrorIs(t, err, glm.ErrSubjectCount)

	// Data with the wrong node count.
	badData := mat.NewDense(3, 4, make([]float64, 12))
	design := mat.NewDense(4, 2, []float64{1, 0, 1, 0, 1, 1, 1, 1})
	_, err = Run(graph, badData, design, []float64{0, 1}, Params{
		NumPermutations: 10, DH: 0.1, ExtentExponent: 0.5, HeightExponent: 2,
	}, nil)
	assert.ErrorIs(t, err, ErrNodeCount)
}

func TestRunSignFlipMode(t *testing.T) {
	mask, err := volume.New([]float64{1, 1, 1}, 3, 1, 1, 1)
	require.NoError(t, err)
	graph, err := connectivity.Build(mask, connectivity.DefaultOptions())
	require.NoError(t, err)

	design := mat.NewDense(5, 1, []float64{1, 1, 1, 1, 1})
	data := mat.NewDense(3, 5, []float64{
		1.0, 1.2, 0.8, 1.1, 0.9,
		2.0, 2.1, 1.9, 2.2, 1.8,
		0.1, -0.1, 0.05, 0.0, -0.05,
	})

	res, err := Run(graph, data, design, []float64{1}, Params{
		NumPermutations: 40,
		DH:              0.1,
		ExtentExponent:  0.5,
		HeightExponent:  2.0,
		Seed:            9,
		SignFlip:        true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, res.NullPos, 39)
	require.Len(t, res.PValuesPos, 3)
}
