package tiffglob

import (
	"context"
	"fmt"

	"github.com/lumascope/tiffglob/internal/nd"
	"github.com/lumascope/tiffglob/internal/tiff"
)

// readSequence decodes a file list into one stacked array with a
// leading file axis: shape [len(paths)] + single-file series shape.
// All files must share one geometry and dtype.
func (r *Reader) readSequence(ctx context.Context, paths []string) (*nd.Array, error) {
	var out *nd.Array
	var fileShape []int
	pos := 0

	for i, p := range paths {
		data, err := r.fs.readAll(ctx, p)
		if err != nil {
			return nil, err
		}
		tf, err := tiff.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		arr, err := tf.DecodeSeries()
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}

		if i == 0 {
			fileShape = arr.Shape
			out = nd.New(arr.DType, append([]int{len(paths)}, fileShape...)...)
		} else if !shapeEqual(arr.Shape, fileShape) || arr.DType != out.DType {
			return nil, fmt.Errorf("file %s has shape %v dtype %s, want %v %s", p, arr.Shape, arr.DType, fileShape, out.DType)
		}
		copy(out.Data[pos:], arr.Data)
		pos += len(arr.Data)
	}
	return out, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// tagsFor extracts the first page's raw tag table of one file, plus
// the ImageDescription value when present.
func (r *Reader) tagsFor(ctx context.Context, path string) (Attrs, error) {
	data, err := r.fs.readAll(ctx, path)
	if err != nil {
		return Attrs{}, err
	}
	tf, err := tiff.Parse(data)
	if err != nil {
		return Attrs{}, fmt.Errorf("reading tags of %s: %w", path, err)
	}
	page := tf.Pages[0]
	desc, _ := page.Description()
	return Attrs{Tags: page.Tags(), Description: desc}, nil
}

// SizingPlan returns the full per-scene axis extents: the chunk plan
// with no grouping axes, i.e. the shape an immediate read realizes
// before the final axis reorder.
func (r *Reader) SizingPlan(scene int) (Sizes, error) {
	st, err := r.sceneTable(scene)
	if err != nil {
		return nil, err
	}
	return r.chunkSizes(st.nunique(), nil), nil
}

// ReadImmediate decodes and assembles one scene into a fully
// materialized labeled array in the scene's global axis order.
func (r *Reader) ReadImmediate(ctx context.Context, scene int) (*DataArray, error) {
	st, err := r.sceneTable(scene)
	if err != nil {
		return nil, err
	}
	nunique := st.nunique()

	attrs, err := r.tagsFor(ctx, st.Paths()[0])
	if err != nil {
		return nil, err
	}

	chunk := r.chunkSizes(nunique, nil)
	var unpack Sizes
	for _, ds := range nunique {
		if chunk.Has(ds.Dim) {
			unpack = append(unpack, ds)
		}
	}
	reshapeSizes := append(unpack.Shape(), r.singleFileSizes.Shape()...)

	arr, err := r.readSequence(ctx, st.Paths())
	if err != nil {
		return nil, err
	}
	if arr, err = arr.Reshape(reshapeSizes...); err != nil {
		return nil, err
	}
	if arr, err = arr.Transpose(r.axesOrder(chunk, unpack)...); err != nil {
		return nil, err
	}
	if arr, err = arr.Reshape(chunk.Shape()...); err != nil {
		return nil, err
	}

	dims := chunk.Dims()
	names, err := r.channelNamesForScene(scene, dims, chunk.Shape())
	if err != nil {
		return nil, err
	}

	da := &DataArray{
		Dims:   dims,
		Coords: coordsFor(dims, chunk.Shape(), scene, names),
		Attrs:  attrs,
		data:   arr,
	}
	return da.transpose(r.dimOrderFor(scene, dims))
}

// ReadLazy builds one scene as a deferred grid of per-group chunks,
// one chunk per grouping-axis value combination, without decoding any
// pixel data.
func (r *Reader) ReadLazy(ctx context.Context, scene int) (*LazyDataArray, error) {
	st, err := r.sceneTable(scene)
	if err != nil {
		return nil, err
	}
	nunique := st.nunique()

	attrs, err := r.tagsFor(ctx, st.Paths()[0])
	if err != nil {
		return nil, err
	}

	var groupDims []string
	for _, a := range st.Axes() {
		if !contains(r.chunkDims, a) {
			groupDims = append(groupDims, a)
		}
	}
	var groupSizes Sizes
	for _, d := range groupDims {
		n, _ := nunique.Get(d)
		groupSizes.Set(d, n)
	}

	chunk := r.chunkSizes(nunique, groupDims)
	var unpack Sizes
	for _, ds := range nunique {
		if chunk.Has(ds.Dim) && !groupSizes.Has(ds.Dim) {
			unpack = append(unpack, ds)
		}
	}
	reshapeSizes := append(unpack.Shape(), r.singleFileSizes.Shape()...)
	order := r.axesOrder(chunk, unpack)
	blocks, chunksExp := expandedShapes(groupSizes, chunk)

	var dims []string
	var gridShape, chunkShape []int
	var chunkFns []chunkFunc

	if len(groupDims) > 0 {
		dims = blocks.Dims()
		gridShape = blocks.Shape()
		chunkShape = chunksExp.Shape()
		gridStrides := nd.Strides(gridShape)

		// Group values need not be dense; address the grid by each
		// value's rank among the axis' distinct values.
		ranks := make(map[string]map[int]int, len(groupDims))
		for _, d := range groupDims {
			m := make(map[int]int)
			for i, v := range st.distinct(d) {
				m[v] = i
			}
			ranks[d] = m
		}

		chunkFns = make([]chunkFunc, nd.NumElements(gridShape))
		for _, g := range st.groupBy(groupDims) {
			flat := 0
			for bi, bds := range blocks {
				for gi, gd := range groupDims {
					if gd == bds.Dim {
						flat += ranks[gd][g.key[gi]] * gridStrides[bi]
					}
				}
			}
			paths := g.table.Paths()
			chunkFns[flat] = func(cctx context.Context) (*nd.Array, error) {
				arr, err := r.readSequence(cctx, paths)
				if err != nil {
					return nil, err
				}
				if arr, err = arr.Reshape(reshapeSizes...); err != nil {
					return nil, err
				}
				if arr, err = arr.Transpose(order...); err != nil {
					return nil, err
				}
				return arr.Reshape(chunkShape...)
			}
		}
	} else {
		// Single chunk covers the whole scene.
		dims = chunksExp.Dims()
		chunkShape = chunk.Shape()
		gridShape = make([]int, len(chunkShape))
		for i := range gridShape {
			gridShape[i] = 1
		}
		paths := st.Paths()
		chunkFns = []chunkFunc{func(cctx context.Context) (*nd.Array, error) {
			arr, err := r.readSequence(cctx, paths)
			if err != nil {
				return nil, err
			}
			if arr, err = arr.Reshape(reshapeSizes...); err != nil {
				return nil, err
			}
			if arr, err = arr.Transpose(order...); err != nil {
				return nil, err
			}
			return arr.Reshape(chunkShape...)
		}}
	}

	// Realized full shape: grid extents times right-aligned chunk
	// extents.
	padded := make([]int, len(gridShape))
	for i := range padded {
		padded[i] = 1
	}
	copy(padded[len(gridShape)-len(chunkShape):], chunkShape)
	full := make([]int, len(gridShape))
	for i := range full {
		full[i] = gridShape[i] * padded[i]
	}

	names, err := r.channelNamesForScene(scene, dims, full)
	if err != nil {
		return nil, err
	}
	coords := coordsFor(dims, full, scene, names)

	target := r.dimOrderFor(scene, dims)
	perm, err := dimsPermutation(dims, target)
	if err != nil {
		return nil, err
	}
	permShape := make([]int, len(perm))
	for i, p := range perm {
		permShape[i] = full[p]
	}

	return &LazyDataArray{
		Dims:       target,
		Coords:     coords,
		Attrs:      attrs,
		dtype:      r.dtype,
		gridShape:  gridShape,
		chunkShape: chunkShape,
		chunks:     chunkFns,
		perm:       perm,
		shape:      permShape,
	}, nil
}
