// Package connectivity builds the adjacency graph over the active voxels of
// an analysis mask. The graph is the one-time precomputation every
// permutation reuses for cluster extraction: it must never be rebuilt inside
// the permutation loop.
package connectivity

import (
	"errors"
	"fmt"

	"github.com/andrealuppi/mrtrix3/pkg/volume"
)

// Sentinel errors for graph construction.
var (
	// ErrNoActiveVoxels indicates a mask with no non-zero voxels.
	ErrNoActiveVoxels = errors.New("connectivity: mask contains no active voxels")
	// ErrMissingDirections indicates a 4-D mask supplied without a direction table.
	ErrMissingDirections = errors.New("connectivity: 4-D mask requires a direction table")
	// ErrDirectionCount indicates a direction table whose row count disagrees
	// with the mask's 4th-axis extent.
	ErrDirectionCount = errors.New("connectivity: direction count does not match mask 4th-axis extent")
	// ErrAngleThreshold indicates an angular threshold outside (0, 90] degrees.
	ErrAngleThreshold = errors.New("connectivity: angular threshold must lie in (0, 90] degrees")
)

// Options selects the neighborhood used for spatial adjacency and, for
// orientation-aware analyses, the direction table and angular threshold.
type Options struct {
	// Use26 selects the full 26-neighborhood; the default is the
	// 6-neighborhood of face-adjacent voxels.
	Use26 bool
	// Directions is required when the mask carries a 4th axis. One unit
	// vector per orientation sample.
	Directions *volume.DirectionSet
	// AngleThreshold is the maximum angle in degrees between two directions
	// at the same voxel for them to be considered adjacent.
	AngleThreshold float64
}

// DefaultOptions returns the builder defaults: 6-neighborhood, 12 degree
// angular threshold.
func DefaultOptions() Options {
	return Options{
		Use26:          false,
		AngleThreshold: 12,
	}
}

// Graph is the read-only adjacency structure over active (voxel, orientation)
// nodes. Coords holds the node coordinates in construction order, which is
// also the row order of the data matrix and of every output image. Adj[i]
// lists the neighbors of node i; adjacency is symmetric and free of
// self-loops.
type Graph struct {
	Coords []volume.Coordinate
	Adj    [][]int32
}

// NumNodes returns the number of active nodes.
func (g *Graph) NumNodes() int { return len(g.Coords) }

// NumEdges returns the number of undirected edges.
func (g *Graph) NumEdges() int {
	total := 0
	for _, nb := range g.Adj {
		total += len(nb)
	}
	return total / 2
}

// face-adjacent offsets, then the edge/corner offsets appended for the
// 26-neighborhood.
var faceOffsets = [][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

func cornerOffsets() [][3]int {
	var offs [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				// skip the face neighbors already covered
				if abs(dx)+abs(dy)+abs(dz) == 1 {
					continue
				}
				offs = append(offs, [3]int{dx, dy, dz})
			}
		}
	}
	return offs
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Build constructs the graph from a mask volume. Voxels (or, for a 4-D mask,
// (voxel, orientation) samples) with a non-zero mask value become nodes.
// Spatial edges connect nodes at neighboring voxel locations with the same
// orientation index; orientation edges connect nodes at the same voxel whose
// directions subtend an angle below opts.AngleThreshold.
//
// Time: O(V·d) with d = 6 or 26 plus the per-voxel orientation pairs.
func Build(mask *volume.Volume, opts Options) (*Graph, error) {
	orientationAware := mask.Frames > 1
	if orientationAware {
		if opts.Directions == nil {
			return nil, ErrMissingDirections
		}
		if opts.Directions.Len() != mask.Frames {
			return nil, fmt.Errorf("%w: %d directions, %d frames",
				ErrDirectionCount, opts.Directions.Len(), mask.Frames)
		}
		if opts.AngleThreshold <= 0 || opts.AngleThreshold > 90 {
			return nil, fmt.Errorf("%w: %g", ErrAngleThreshold, opts.AngleThreshold)
		}
	}

	// First pass: assign node indices in a fixed scan order (z, y, x outer to
	// inner, orientation innermost) so same-voxel orientation samples are
	// contiguous.
	nodeAt := make(map[volume.Coordinate]int32)
	var coords []volume.Coordinate
	for z := 0; z < mask.Depth; z++ {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				for d := 0; d < mask.Frames; d++ {
					if mask.Value(x, y, z, d) == 0 {
						continue
					}
					c := volume.Coordinate{X: x, Y: y, Z: z, Dir: d}
					nodeAt[c] = int32(len(coords))
					coords = append(coords, c)
				}
			}
		}
	}
	if len(coords) == 0 {
		return nil, ErrNoActiveVoxels
	}

	offsets := faceOffsets
	if opts.Use26 {
		offsets = append(append([][3]int{}, faceOffsets...), cornerOffsets()...)
	}

	adj := make([][]int32, len(coords))
	for i, c := range coords {
		// Spatial neighbors at the same orientation index. Scanning the full
		// offset set from every node yields each undirected edge from both
		// endpoints, so adjacency comes out symmetric with no bookkeeping.
		for _, off := range offsets {
			n := volume.Coordinate{X: c.X + off[0], Y: c.Y + off[1], Z: c.Z + off[2], Dir: c.Dir}
			if j, ok := nodeAt[n]; ok {
				adj[i] = append(adj[i], j)
			}
		}
		// Orientation neighbors within the same voxel.
		if orientationAware {
			for d := 0; d < mask.Frames; d++ {
				if d == c.Dir {
					continue
				}
				n := volume.Coordinate{X: c.X, Y: c.Y, Z: c.Z, Dir: d}
				j, ok := nodeAt[n]
				if !ok {
					continue
				}
				if opts.Directions.Angle(c.Dir, d) < opts.AngleThreshold {
					adj[i] = append(adj[i], j)
				}
			}
		}
	}

	return &Graph{Coords: coords, Adj: adj}, nil
}
