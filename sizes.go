package tiffglob

// DimSize is one (axis name, extent) pair.
type DimSize struct {
	Dim  string
	Size int
}

// Sizes is an ordered mapping from axis name to extent. Order is
// significant everywhere: it encodes axis priority for reshapes,
// permutations and the final chunk layout.
type Sizes []DimSize

// Index returns the position of dim, or -1 when absent.
func (s Sizes) Index(dim string) int {
	for i, ds := range s {
		if ds.Dim == dim {
			return i
		}
	}
	return -1
}

// Get returns the extent of dim and whether it is present.
func (s Sizes) Get(dim string) (int, bool) {
	if i := s.Index(dim); i >= 0 {
		return s[i].Size, true
	}
	return 0, false
}

// Has reports whether dim is present.
func (s Sizes) Has(dim string) bool {
	return s.Index(dim) >= 0
}

// Set updates dim in place or appends it at the end.
func (s *Sizes) Set(dim string, size int) {
	if i := s.Index(dim); i >= 0 {
		(*s)[i].Size = size
		return
	}
	*s = append(*s, DimSize{Dim: dim, Size: size})
}

// Dims returns the axis names in order.
func (s Sizes) Dims() []string {
	out := make([]string, len(s))
	for i, ds := range s {
		out[i] = ds.Dim
	}
	return out
}

// Shape returns the extents in order.
func (s Sizes) Shape() []int {
	out := make([]int, len(s))
	for i, ds := range s {
		out[i] = ds.Size
	}
	return out
}

// NumElements returns the product of all extents.
func (s Sizes) NumElements() int {
	n := 1
	for _, ds := range s {
		n *= ds.Size
	}
	return n
}

// chunkSizes computes the per-chunk extent of every axis for one scene.
// nunique holds the distinct value count of each table axis in column
// order; groupDims are excluded from the chunk. An axis present both in
// the table and in the single file is the merge case: its extent is the
// table count multiplied by the in-file extent.
func (r *Reader) chunkSizes(nunique Sizes, groupDims []string) Sizes {
	var sizes Sizes
	for _, ds := range nunique {
		if contains(groupDims, ds.Dim) {
			continue
		}
		if fileSize, ok := r.singleFileSizes.Get(ds.Dim); ok {
			sizes.Set(ds.Dim, fileSize*ds.Size)
		} else {
			sizes.Set(ds.Dim, ds.Size)
		}
	}

	for _, ds := range r.singleFileSizes {
		if !contains(r.chunkDims, ds.Dim) && !sizes.Has(ds.Dim) {
			sizes.Set(ds.Dim, ds.Size)
		}
	}

	for _, ds := range r.singleFileSizes {
		if !nunique.Has(ds.Dim) {
			sizes.Set(ds.Dim, ds.Size)
		}
	}

	return sizes
}

// axesOrder computes the permutation that makes each table-derived axis
// adjacent to (and before) its in-file counterpart, following the order
// of the target chunk mapping. Positions of in-file axes are offset by
// the number of unpacked table axes.
func (r *Reader) axesOrder(chunk, unpack Sizes) []int {
	var order []int
	for _, ds := range chunk {
		if i := unpack.Index(ds.Dim); i >= 0 {
			order = append(order, i)
		}
		if i := r.singleFileSizes.Index(ds.Dim); i >= 0 {
			order = append(order, len(unpack)+i)
		}
	}
	return order
}

// expandedShapes inserts singleton extents so that a grid of chunks and
// the chunks themselves conform for block concatenation. A grouping
// axis that is not chunk resident claims a grid position; once one has,
// later unplaced non-chunk axes are pushed into the chunk side so the
// two shapes stay mutually exclusive and jointly complete.
func expandedShapes(group, chunk Sizes) (Sizes, Sizes) {
	var blocks Sizes
	var chunks Sizes

	for i, gds := range group {
		if chunk.Has(gds.Dim) {
			if !blocks.Has(gds.Dim) {
				for j := 0; j < chunk.Index(gds.Dim); j++ {
					if !blocks.Has(chunk[j].Dim) {
						blocks.Set(chunk[j].Dim, 1)
					}
				}
				blocks.Set(gds.Dim, gds.Size)
			}
			continue
		}

		if len(blocks) <= i {
			blocks.Set(gds.Dim, gds.Size)
		} else {
			for _, bds := range blocks {
				if size, ok := chunk.Get(bds.Dim); ok {
					chunks.Set(bds.Dim, size)
				}
			}
			chunks.Set(gds.Dim, 1)
			blocks.Set(gds.Dim, gds.Size)
			for _, cds := range chunk {
				if !chunks.Has(cds.Dim) {
					chunks.Set(cds.Dim, cds.Size)
				}
			}
		}
	}

	for _, cds := range chunk {
		if !blocks.Has(cds.Dim) {
			blocks.Set(cds.Dim, 1)
		}
	}

	if len(chunks) == 0 {
		chunks = chunk
	}
	return blocks, chunks
}
