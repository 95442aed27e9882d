package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SampleMatrix assembles the node-by-subject data matrix the statistic
// computation operates on. Row i holds, for every subject volume, the value
// sampled at coords[i]; row order therefore matches the graph construction
// order and is preserved all the way through to the output images.
//
// Subject volumes must share the mask's spatial extents. A 3-D subject
// volume is sampled at the voxel location only; a 4-D one additionally at
// the coordinate's orientation index.
func SampleMatrix(subjects []*Volume, mask *Volume, coords []Coordinate) (*mat.Dense, error) {
	if len(subjects) == 0 {
		return nil, fmt.Errorf("%w: no subject volumes", ErrDimensionMismatch)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: no coordinates to sample", ErrCoordinateRange)
	}
	for s, vol := range subjects {
		if !vol.SameSpace(mask) {
			return nil, fmt.Errorf("%w: subject %d is %dx%dx%d, mask is %dx%dx%d",
				ErrDimensionMismatch, s,
				vol.Width, vol.Height, vol.Depth,
				mask.Width, mask.Height, mask.Depth)
		}
	}

	data := mat.NewDense(len(coords), len(subjects), nil)
	for s, vol := range subjects {
		for i, c := range coords {
			frame := 0
			if vol.Frames > 1 {
				if c.Dir >= vol.Frames {
					return nil, fmt.Errorf("%w: orientation %d, subject %d has %d frames",
						ErrCoordinateRange, c.Dir, s, vol.Frames)
				}
				frame = c.Dir
			}
			if !vol.InBounds(c.X, c.Y, c.Z) {
				return nil, fmt.Errorf("%w: (%d,%d,%d)", ErrCoordinateRange, c.X, c.Y, c.Z)
			}
			data.Set(i, s, vol.Value(c.X, c.Y, c.Z, frame))
		}
	}
	return data, nil
}
