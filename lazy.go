package tiffglob

import (
	"context"

	"github.com/lumascope/tiffglob/internal/nd"
)

// chunkFunc materializes one chunk of a lazy array. Each chunk maps to
// one grouping-axis value combination, so the unit of deferred work
// stays aligned with file boundaries.
type chunkFunc func(ctx context.Context) (*nd.Array, error)

// LazyDataArray is a labeled array backed by a deferred grid of chunk
// computations. Nothing is decoded until Compute is called.
type LazyDataArray struct {
	Dims   []string
	Coords Coords
	Attrs  Attrs

	dtype      nd.DType
	gridShape  []int
	chunkShape []int
	chunks     []chunkFunc

	// perm reorders the assembled array into Dims; shape is the final
	// permuted shape.
	perm  []int
	shape []int
}

// Shape returns the final array shape without materializing any data.
func (l *LazyDataArray) Shape() []int {
	return append([]int(nil), l.shape...)
}

// GridShape returns the chunk grid layout: one cell per grouping-axis
// value combination, in pre-permutation dimension order.
func (l *LazyDataArray) GridShape() []int {
	return append([]int(nil), l.gridShape...)
}

// Compute materializes every chunk, stitches the grid into one array
// and applies the final dimension order.
func (l *LazyDataArray) Compute(ctx context.Context) (*DataArray, error) {
	arrays := make([]*nd.Array, len(l.chunks))
	for i, fn := range l.chunks {
		if fn == nil {
			continue
		}
		arr, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		arrays[i] = arr
	}

	full, err := nd.Assemble(arrays, l.gridShape, l.chunkShape, l.dtype)
	if err != nil {
		return nil, err
	}
	full, err = full.Transpose(l.perm...)
	if err != nil {
		return nil, err
	}

	return &DataArray{
		Dims:   append([]string(nil), l.Dims...),
		Coords: l.Coords,
		Attrs:  l.Attrs,
		data:   full,
	}, nil
}
