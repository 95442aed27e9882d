// Package volume provides the dense scalar volumes consumed by the
// permutation testing engine: the analysis mask, per-subject input volumes
// and the direction table associated with a 4-D mask.
package volume

import (
	"errors"
	"fmt"
)

// Sentinel errors for volume construction and sampling.
var (
	// ErrBadExtents indicates non-positive or inconsistent axis extents.
	ErrBadExtents = errors.New("volume: extents must be positive and match the data length")
	// ErrDimensionMismatch indicates two volumes whose spatial extents differ.
	ErrDimensionMismatch = errors.New("volume: spatial dimensions do not match")
	// ErrCoordinateRange indicates a sampling coordinate outside the volume.
	ErrCoordinateRange = errors.New("volume: coordinate out of range")
)

// Coordinate addresses a single node of the connectivity graph: a voxel
// location plus the orientation sample index along the 4th axis.
// Dir is always 0 for plain 3-D analyses.
type Coordinate struct {
	X, Y, Z int
	Dir     int
}

// Volume is a dense scalar field over 3 spatial axes plus an optional 4th
// axis of orientation samples (Frames == 1 for plain 3-D volumes).
// Data is stored with x varying fastest, then y, z and frame.
//
// A Volume is immutable once handed to the engine; nothing in this module
// writes to Data after construction.
type Volume struct {
	Data   []float64
	Width  int // x extent
	Height int // y extent
	Depth  int // z extent
	Frames int // 4th-axis extent, 1 for 3-D volumes
}

// New creates a volume with the given extents, validating them against the
// length of data. Pass frames = 1 for a 3-D volume.
func New(data []float64, width, height, depth, frames int) (*Volume, error) {
	if width < 1 || height < 1 || depth < 1 || frames < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%dx%d", ErrBadExtents, width, height, depth, frames)
	}
	if len(data) != width*height*depth*frames {
		return nil, fmt.Errorf("%w: %dx%dx%dx%d with %d values",
			ErrBadExtents, width, height, depth, frames, len(data))
	}
	return &Volume{
		Data:   data,
		Width:  width,
		Height: height,
		Depth:  depth,
		Frames: frames,
	}, nil
}

// Index returns the flat index of (x, y, z, frame).
func (v *Volume) Index(x, y, z, frame int) int {
	return ((frame*v.Depth+z)*v.Height+y)*v.Width + x
}

// Value returns the scalar at (x, y, z, frame) without bounds checking;
// callers iterate within the extents.
func (v *Volume) Value(x, y, z, frame int) float64 {
	return v.Data[v.Index(x, y, z, frame)]
}

// InBounds reports whether (x, y, z) lies within the spatial extents.
func (v *Volume) InBounds(x, y, z int) bool {
	return x >= 0 && x < v.Width && y >= 0 && y < v.Height && z >= 0 && z < v.Depth
}

// SameSpace reports whether two volumes share the same spatial extents.
// The 4th axis is deliberately excluded: a 3-D subject volume may be sampled
// against a 4-D mask.
func (v *Volume) SameSpace(o *Volume) bool {
	return v.Width == o.Width && v.Height == o.Height && v.Depth == o.Depth
}
