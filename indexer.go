package tiffglob

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// AxisIndex is one axis coordinate extracted from a filename.
type AxisIndex struct {
	Axis  string
	Index int
}

// Indexer maps a file path to its coordinate along each logical axis.
// The order of the returned pairs fixes the table column order.
type Indexer func(path string) ([]AxisIndex, error)

var digitRuns = regexp.MustCompile(`\d+`)

// digitIndexer assigns the first len(axes) digit runs of the base
// filename, in order of appearance, to the given axes.
func digitIndexer(axes []string) Indexer {
	return func(path string) ([]AxisIndex, error) {
		runs := digitRuns.FindAllString(filepath.Base(path), -1)
		if len(runs) < len(axes) {
			return nil, fmt.Errorf("%w: found %d digit groups in %q, need %d", ErrInvalidArgument, len(runs), filepath.Base(path), len(axes))
		}
		out := make([]AxisIndex, len(axes))
		for i, axis := range axes {
			v, err := strconv.Atoi(runs[i])
			if err != nil {
				return nil, fmt.Errorf("%w: digit group %q in %q", ErrInvalidArgument, runs[i], filepath.Base(path))
			}
			out[i] = AxisIndex{Axis: axis, Index: v}
		}
		return out, nil
	}
}

// defaultIndexer parses four digit groups out of the filename and
// assigns them in order to the scene axis, T, C and Z. So for
// "S0_T1_C2_Z3.tif" it yields [{S 0} {T 1} {C 2} {Z 3}].
func defaultIndexer(sceneAxis string) Indexer {
	return digitIndexer([]string{sceneAxis, DimTime, DimChannel, DimSpatialZ})
}

// MicroManagerIndexer maps MicroManager MDA filenames of the form
// img_channel000_position001_time000000003_z004.tif to coordinates:
// the four digit groups are channel, scene, time and depth, in that
// fixed order.
func MicroManagerIndexer(path string) ([]AxisIndex, error) {
	return digitIndexer([]string{DimChannel, DefaultSceneAxis, DimTime, DimSpatialZ})(path)
}
