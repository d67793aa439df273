package tiffglob

// Canonical dimension names. DimSamples shares the letter "S" with the
// default scene axis on purpose: a samples column never comes out of an
// indexer, so the scene column occupies that slot in the priority order.
const (
	DimTime     = "T"
	DimChannel  = "C"
	DimSpatialZ = "Z"
	DimSpatialY = "Y"
	DimSpatialX = "X"
	DimSamples  = "S"
)

// DefaultSceneAxis is the table column that identifies scenes.
const DefaultSceneAxis = "S"

// DefaultDimensionOrder is the global axis order used when the caller
// does not request one.
var DefaultDimensionOrder = []string{DimTime, DimChannel, DimSpatialZ, DimSpatialY, DimSpatialX}

// dimensionPriority is the canonical axis priority: it drives table
// sorting, zero-column insertion and the deterministic grouping order.
var dimensionPriority = []string{DimTime, DimChannel, DimSpatialZ, DimSpatialY, DimSpatialX, DimSamples}

// DefaultChunkDims are the axes kept resident in each computed chunk
// when the caller does not choose a set.
var DefaultChunkDims = []string{DimSpatialZ, DimSpatialY, DimSpatialX, DimSamples}

// requiredChunkDims must always be chunk resident and are appended to
// any caller-supplied chunk axis set.
var requiredChunkDims = []string{DimSpatialY, DimSpatialX, DimSamples}

// DefaultSingleFileDims are the axes assumed for one decoded file when
// no single-file dimensions are declared.
var DefaultSingleFileDims = []string{DimSpatialY, DimSpatialX}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
