package volume

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for direction tables.
var (
	// ErrBadDirectionRow indicates a direction row that is neither
	// [azimuth elevation] nor [x y z].
	ErrBadDirectionRow = errors.New("volume: direction rows must have 2 (az el) or 3 (x y z) values")
	// ErrZeroDirection indicates a direction vector with zero length.
	ErrZeroDirection = errors.New("volume: direction vector has zero length")
)

// DirectionSet holds one unit vector per orientation sample of a 4-D mask.
// Directions are axis-symmetric: d and -d describe the same orientation.
type DirectionSet struct {
	vecs [][3]float64
}

// NewDirectionSet builds a direction set from a numeric table with one row
// per direction. Rows of two values are interpreted as [azimuth elevation]
// in radians (the format written by the direction generation tools); rows of
// three values as Cartesian components, normalised to unit length.
func NewDirectionSet(rows [][]float64) (*DirectionSet, error) {
	vecs := make([][3]float64, len(rows))
	for i, row := range rows {
		switch len(row) {
		case 2:
			az, el := row[0], row[1]
			vecs[i] = [3]float64{
				math.Cos(az) * math.Sin(el),
				math.Sin(az) * math.Sin(el),
				math.Cos(el),
			}
		case 3:
			n := math.Sqrt(row[0]*row[0] + row[1]*row[1] + row[2]*row[2])
			if n == 0 {
				return nil, fmt.Errorf("%w: row %d", ErrZeroDirection, i)
			}
			vecs[i] = [3]float64{row[0] / n, row[1] / n, row[2] / n}
		default:
			return nil, fmt.Errorf("%w: row %d has %d", ErrBadDirectionRow, i, len(row))
		}
	}
	return &DirectionSet{vecs: vecs}, nil
}

// Len returns the number of directions.
func (d *DirectionSet) Len() int { return len(d.vecs) }

// Vector returns direction i as unit Cartesian components.
func (d *DirectionSet) Vector(i int) [3]float64 { return d.vecs[i] }

// Angle returns the angle in degrees between directions i and j, treating
// each direction as axis-symmetric: the dot product is taken in absolute
// value, so the result lies in [0, 90].
func (d *DirectionSet) Angle(i, j int) float64 {
	a, b := d.vecs[i], d.vecs[j]
	dot := math.Abs(a[0]*b[0] + a[1]*b[1] + a[2]*b[2])
	if dot > 1 {
		dot = 1 // guard acos against rounding
	}
	return math.Acos(dot) * 180 / math.Pi
}
