// Package nd implements C-order n-dimensional array primitives on flat
// little-endian byte buffers: reshape, transpose and block assembly.
package nd

import (
	"fmt"
)

// Kind is the element kind of an array.
type Kind int

const (
	Uint Kind = iota
	Int
	Float
)

// DType describes the element type of an array.
type DType struct {
	Kind Kind
	Size int // bytes per element
}

func (d DType) String() string {
	switch d.Kind {
	case Uint:
		return fmt.Sprintf("uint%d", d.Size*8)
	case Int:
		return fmt.Sprintf("int%d", d.Size*8)
	case Float:
		return fmt.Sprintf("float%d", d.Size*8)
	default:
		return fmt.Sprintf("unknown%d", d.Size*8)
	}
}

// Array is a C-order n-dimensional array over a flat little-endian buffer.
type Array struct {
	Data  []byte
	Shape []int
	DType DType
}

// New allocates a zero-filled array of the given dtype and shape.
func New(dt DType, shape ...int) *Array {
	return &Array{
		Data:  make([]byte, NumElements(shape)*dt.Size),
		Shape: append([]int(nil), shape...),
		DType: dt,
	}
}

// NumElements returns the element count of a shape.
func NumElements(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

// Strides computes the C-order element strides for a given shape.
func Strides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// Reshape returns a view of a with a new shape sharing the same buffer.
// The element count must be conserved.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if NumElements(shape) != NumElements(a.Shape) {
		return nil, fmt.Errorf("cannot reshape array of %d elements into shape %v", NumElements(a.Shape), shape)
	}
	return &Array{
		Data:  a.Data,
		Shape: append([]int(nil), shape...),
		DType: a.DType,
	}, nil
}

// Transpose returns a materialized copy of a with its axes permuted.
// perm must be a permutation of [0, len(Shape)).
func (a *Array) Transpose(perm ...int) (*Array, error) {
	if len(perm) != len(a.Shape) {
		return nil, fmt.Errorf("transpose permutation length %d does not match rank %d", len(perm), len(a.Shape))
	}
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("invalid transpose permutation %v", perm)
		}
		seen[p] = true
	}

	outShape := make([]int, len(perm))
	srcStrides := Strides(a.Shape)
	permStrides := make([]int, len(perm))
	for i, p := range perm {
		outShape[i] = a.Shape[p]
		permStrides[i] = srcStrides[p]
	}

	out := New(a.DType, outShape...)
	if len(outShape) == 0 {
		copy(out.Data, a.Data)
		return out, nil
	}

	itemSize := a.DType.Size
	dstStrides := Strides(outShape)

	var iterate func(dim int, srcIdx, dstIdx int)
	iterate = func(dim int, srcIdx, dstIdx int) {
		// Bulk copy when the innermost source dimension is contiguous.
		if dim == len(outShape)-1 {
			n := outShape[dim]
			if permStrides[dim] == 1 {
				byteLen := n * itemSize
				copy(out.Data[dstIdx*itemSize:dstIdx*itemSize+byteLen], a.Data[srcIdx*itemSize:srcIdx*itemSize+byteLen])
				return
			}
			for i := 0; i < n; i++ {
				src := (srcIdx + i*permStrides[dim]) * itemSize
				dst := (dstIdx + i) * itemSize
				copy(out.Data[dst:dst+itemSize], a.Data[src:src+itemSize])
			}
			return
		}
		for i := 0; i < outShape[dim]; i++ {
			iterate(dim+1, srcIdx+i*permStrides[dim], dstIdx+i*dstStrides[dim])
		}
	}
	iterate(0, 0, 0)

	return out, nil
}

// IterateGrid walks every coordinate of shape in C order.
func IterateGrid(shape []int, fn func(coords []int) error) error {
	if len(shape) == 0 {
		return fn([]int{})
	}
	for _, dim := range shape {
		if dim <= 0 {
			return nil
		}
	}
	coords := make([]int, len(shape))
	for {
		if err := fn(coords); err != nil {
			return err
		}
		i := len(shape) - 1
		for ; i >= 0; i-- {
			coords[i]++
			if coords[i] < shape[i] {
				break
			}
			coords[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// CopyBlock copies src entirely into dst at the given element offset
// per dimension. Ranks must match and the block must fit.
func CopyBlock(dst *Array, offset []int, src *Array) error {
	if len(dst.Shape) != len(src.Shape) || len(offset) != len(dst.Shape) {
		return fmt.Errorf("block rank mismatch: dst %v, src %v, offset %v", dst.Shape, src.Shape, offset)
	}
	for i := range dst.Shape {
		if offset[i] < 0 || offset[i]+src.Shape[i] > dst.Shape[i] {
			return fmt.Errorf("block %v at offset %v out of bounds for %v", src.Shape, offset, dst.Shape)
		}
	}
	if dst.DType != src.DType {
		return fmt.Errorf("block dtype mismatch: %s vs %s", dst.DType, src.DType)
	}

	itemSize := dst.DType.Size
	if len(dst.Shape) == 0 {
		copy(dst.Data[:itemSize], src.Data[:itemSize])
		return nil
	}

	dstStrides := Strides(dst.Shape)
	srcStrides := Strides(src.Shape)

	startDst := 0
	for i, off := range offset {
		startDst += off * dstStrides[i]
	}

	var iterate func(dim int, srcIdx, dstIdx int)
	iterate = func(dim int, srcIdx, dstIdx int) {
		if dim == len(src.Shape)-1 {
			byteLen := src.Shape[dim] * itemSize
			copy(dst.Data[dstIdx*itemSize:dstIdx*itemSize+byteLen], src.Data[srcIdx*itemSize:srcIdx*itemSize+byteLen])
			return
		}
		for i := 0; i < src.Shape[dim]; i++ {
			iterate(dim+1, srcIdx+i*srcStrides[dim], dstIdx+i*dstStrides[dim])
		}
	}
	iterate(0, 0, startDst)
	return nil
}

// Assemble concatenates a C-order grid of uniform chunks into one array.
// chunkShape is right-aligned against gridShape: when a chunk has lower
// rank than the grid it is treated as having leading singleton axes.
// The result shape is gridShape[i] * paddedChunkShape[i] per axis.
func Assemble(chunks []*Array, gridShape, chunkShape []int, dt DType) (*Array, error) {
	if len(chunkShape) > len(gridShape) {
		return nil, fmt.Errorf("chunk rank %d exceeds grid rank %d", len(chunkShape), len(gridShape))
	}
	if len(chunks) != NumElements(gridShape) {
		return nil, fmt.Errorf("got %d chunks for grid %v", len(chunks), gridShape)
	}

	padded := make([]int, len(gridShape))
	for i := range padded {
		padded[i] = 1
	}
	copy(padded[len(gridShape)-len(chunkShape):], chunkShape)

	fullShape := make([]int, len(gridShape))
	for i := range fullShape {
		fullShape[i] = gridShape[i] * padded[i]
	}

	out := New(dt, fullShape...)
	gridStrides := Strides(gridShape)
	offset := make([]int, len(gridShape))

	err := IterateGrid(gridShape, func(coords []int) error {
		flat := 0
		for i, c := range coords {
			flat += c * gridStrides[i]
			offset[i] = c * padded[i]
		}
		chunk := chunks[flat]
		if chunk == nil {
			return fmt.Errorf("missing chunk at grid coordinate %v", coords)
		}
		block, err := chunk.Reshape(padded...)
		if err != nil {
			return fmt.Errorf("chunk at %v: %w", coords, err)
		}
		return CopyBlock(out, offset, block)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
