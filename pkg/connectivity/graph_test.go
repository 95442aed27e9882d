package connectivity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrealuppi/mrtrix3/pkg/volume"
)

func maskFromData(t *testing.T, data []float64, w, h, d, frames int) *volume.Volume {
	t.Helper()
	v, err := volume.New(data, w, h, d, frames)
	require.NoError(t, err)
	return v
}

// assertSymmetric checks that every edge appears from both endpoints and
// that no node lists itself.
func assertSymmetric(t *testing.T, g *Graph) {
	t.Helper()
	for i, neighbors := range g.Adj {
		for _, j := range neighbors {
			assert.NotEqual(t, int32(i), j, "self-loop at node %d", i)
			assert.Contains(t, g.Adj[j], int32(i), "edge %d->%d has no reverse", i, j)
		}
	}
}

func TestBuildSingleVoxel(t *testing.T) {
	mask := maskFromData(t, []float64{0, 0, 0, 0, 1, 0, 0, 0, 0}, 3, 3, 1, 1)

	g, err := Build(mask, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, g.NumNodes())
	assert.Equal(t, 0, g.NumEdges())
	assert.Equal(t, volume.Coordinate{X: 1, Y: 1, Z: 0}, g.Coords[0])
}

func TestBuildTwoAdjacentVoxels(t *testing.T) {
	mask := maskFromData(t, []float64{1, 1}, 2, 1, 1, 1)

	g, err := Build(mask, DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, 2, g.NumNodes())
	assert.Equal(t, 1, g.NumEdges())
	assertSymmetric(t, g)
}

func TestBuildFaceVsFullConnectivity(t *testing.T) {
	// 2x2x2 fully active block: face connectivity gives 12 edges, full
	// connectivity connects every pair of the 8 voxels (28 edges).
	data := make([]float64, 8)
	for i := range data {
		data[i] = 1
	}
	mask := maskFromData(t, data, 2, 2, 2, 1)

	face, err := Build(mask, Options{Use26: false})
	require.NoError(t, err)
	assert.Equal(t, 12, face.NumEdges())
	assertSymmetric(t, face)

	full, err := Build(mask, Options{Use26: true})
	require.NoError(t, err)
	assert.Equal(t, 28, full.NumEdges())
	assertSymmetric(t, full)
}

func TestBuildDiagonalOnlyWith26(t *testing.T) {
	// Two voxels sharing only a corner.
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 1,
	}
	mask := maskFromData(t, data, 2, 2, 2, 1)

	face, err := Build(mask, Options{Use26: false})
	require.NoError(t, err)
	assert.Equal(t, 0, face.NumEdges())

	full, err := Build(mask, Options{Use26: true})
	require.NoError(t, err)
	assert.Equal(t, 1, full.NumEdges())
}

func TestBuildOrientationEdges(t *testing.T) {
	// One voxel, three orientation samples. Directions 0 and 1 are 5.7
	// degrees apart, direction 2 is orthogonal to both.
	dirs, err := volume.NewDirectionSet([][]float64{
		{1, 0, 0},
		{1, 0.1, 0},
		{0, 0, 1},
	})
	require.NoError(t, err)

	mask := maskFromData(t, []float64{1, 1, 1}, 1, 1, 1, 3)

	g, err := Build(mask, Options{Directions: dirs, AngleThreshold: 12})
	require.NoError(t, err)

	require.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 1, g.NumEdges())
	assertSymmetric(t, g)

	// Nodes 0 and 1 are the close pair.
	assert.Contains(t, g.Adj[0], int32(1))
	assert.Empty(t, g.Adj[2])
}

func TestBuildSpatialEdgesKeepOrientationIndex(t *testing.T) {
	// Two voxels x two orientations: spatial edges connect only nodes with
	// the same orientation index, and the orthogonal directions produce no
	// orientation edges.
	dirs, err := volume.NewDirectionSet([][]float64{
		{1, 0, 0},
		{0, 0, 1},
	})
	require.NoError(t, err)

	mask := maskFromData(t, []float64{1, 1, 1, 1}, 2, 1, 1, 2)

	g, err := Build(mask, Options{Directions: dirs, AngleThreshold: 12})
	require.NoError(t, err)

	require.Equal(t, 4, g.NumNodes())
	assert.Equal(t, 2, g.NumEdges())
	assertSymmetric(t, g)
	for i, neighbors := range g.Adj {
		for _, j := range neighbors {
			assert.Equal(t, g.Coords[i].Dir, g.Coords[j].Dir)
		}
	}
}

func TestBuildConfigurationErrors(t *testing.T) {
	mask4d := maskFromData(t, []float64{1, 1}, 1, 1, 1, 2)
	dirs, err := volume.NewDirectionSet([][]float64{{1, 0, 0}})
	require.NoError(t, err)

	_, err = Build(mask4d, Options{})
	assert.ErrorIs(t, err, ErrMissingDirections)

	_, err = Build(mask4d, Options{Directions: dirs, AngleThreshold: 12})
	assert.ErrorIs(t, err, ErrDirectionCount)

	dirs2, err := volume.NewDirectionSet([][]float64{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, err)
	_, err = Build(mask4d, Options{Directions: dirs2, AngleThreshold: 0})
	assert.ErrorIs(t, err, ErrAngleThreshold)

	empty := maskFromData(t, []float64{0, 0}, 2, 1, 1, 1)
	_, err = Build(empty, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoActiveVoxels)
}

func TestBuildNodeOrderIsDeterministic(t *testing.T) {
	data := make([]float64, 27)
	for i := range data {
		if i%2 == 0 {
			data[i] = 1
		}
	}
	mask := maskFromData(t, data, 3, 3, 3, 1)

	first, err := Build(mask, DefaultOptions())
	require.NoError(t, err)
	second, err := Build(mask, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first.Coords, second.Coords)
	assert.Equal(t, first.Adj, second.Adj)
}

func TestDirectionAngleMatchesThresholdBoundary(t *testing.T) {
	// A 10 degree pair sits on either side of thresholds just below and
	// just above it.
	theta := 10 * math.Pi / 180
	dirs, err := volume.NewDirectionSet([][]float64{
		{1, 0, 0},
		{math.Cos(theta), math.Sin(theta), 0},
	})
	require.NoError(t, err)

	mask := maskFromData(t, []float64{1, 1}, 1, 1, 1, 2)

	g, err := Build(mask, Options{Directions: dirs, AngleThreshold: 9.99})
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumEdges())

	g, err = Build(mask, Options{Directions: dirs, AngleThreshold: 10.01})
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumEdges())
}
