package volume

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadText reads a volume from the plain-text exchange format used by the
// command-line driver: a header line of 3 or 4 axis extents followed by the
// flat values in storage order (x fastest). Lines starting with '#' are
// skipped. Image formats proper (NIfTI, MIF, DICOM) are the business of the
// imaging I/O tools, not this engine.
func LoadText(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	var extents []int
	var data []float64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if extents == nil {
			for _, fld := range fields {
				n, err := strconv.Atoi(fld)
				if err != nil {
					return nil, fmt.Errorf("parsing volume header %q: %w", line, err)
				}
				extents = append(extents, n)
			}
			if len(extents) != 3 && len(extents) != 4 {
				return nil, fmt.Errorf("%w: header has %d extents", ErrBadExtents, len(extents))
			}
			continue
		}
		for _, fld := range fields {
			v, err := strconv.ParseFloat(fld, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing volume value %q: %w", fld, err)
			}
			data = append(data, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading volume: %w", err)
	}
	if extents == nil {
		return nil, fmt.Errorf("%w: empty file", ErrBadExtents)
	}
	frames := 1
	if len(extents) == 4 {
		frames = extents[3]
	}
	return New(data, extents[0], extents[1], extents[2], frames)
}

// SaveText writes a volume in the format read by LoadText, one z-slice row
// group per line block for readability.
func SaveText(path string, v *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating volume file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if v.Frames > 1 {
		fmt.Fprintf(w, "%d %d %d %d\n", v.Width, v.Height, v.Depth, v.Frames)
	} else {
		fmt.Fprintf(w, "%d %d %d\n", v.Width, v.Height, v.Depth)
	}
	for i, val := range v.Data {
		if i > 0 {
			if i%v.Width == 0 {
				w.WriteByte('\n')
			} else {
				w.WriteByte(' ')
			}
		}
		fmt.Fprintf(w, "%g", val)
	}
	w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing volume file: %w", err)
	}
	return nil
}
