package tiffglob

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/lumascope/tiffglob/internal/nd"
)

// DataArray is a fully materialized labeled array: pixel data plus
// dimension names, axis label coordinates and scene metadata.
type DataArray struct {
	Dims   []string
	Coords Coords
	Attrs  Attrs

	data *nd.Array
}

// Shape returns the array shape, one extent per dimension name.
func (d *DataArray) Shape() []int {
	return append([]int(nil), d.data.Shape...)
}

// DType returns the element type name, e.g. "uint16".
func (d *DataArray) DType() string {
	return d.data.DType.String()
}

// Bytes returns the raw little-endian pixel buffer in C order.
func (d *DataArray) Bytes() []byte {
	return d.data.Data
}

// transpose reorders the array to the target dimension names, which
// must be a permutation of the current ones.
func (d *DataArray) transpose(target []string) (*DataArray, error) {
	perm, err := dimsPermutation(d.Dims, target)
	if err != nil {
		return nil, err
	}
	arr, err := d.data.Transpose(perm...)
	if err != nil {
		return nil, err
	}
	return &DataArray{
		Dims:   append([]string(nil), target...),
		Coords: d.Coords,
		Attrs:  d.Attrs,
		data:   arr,
	}, nil
}

// dimsPermutation returns the permutation mapping dims onto target.
func dimsPermutation(dims, target []string) ([]int, error) {
	if len(target) != len(dims) {
		return nil, fmt.Errorf("%w: dimension order %v does not match array dims %v", ErrConflictingArguments, target, dims)
	}
	perm := make([]int, len(target))
	for i, t := range target {
		found := -1
		for j, d := range dims {
			if d == t {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("%w: dimension order %v does not match array dims %v", ErrConflictingArguments, target, dims)
		}
		perm[i] = found
	}
	return perm, nil
}

// Tensor converts the array into a gomlx tensor.
func (d *DataArray) Tensor() (*tensors.Tensor, error) {
	data := d.data.Data
	shape := d.data.Shape
	n := nd.NumElements(shape)

	switch d.data.DType {
	case nd.DType{Kind: nd.Uint, Size: 1}:
		return tensors.FromFlatDataAndDimensions(append([]uint8(nil), data...), shape...), nil
	case nd.DType{Kind: nd.Uint, Size: 2}:
		v := make([]uint16, n)
		for i := range v {
			v[i] = binary.LittleEndian.Uint16(data[i*2:])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Uint, Size: 4}:
		v := make([]uint32, n)
		for i := range v {
			v[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Uint, Size: 8}:
		v := make([]uint64, n)
		for i := range v {
			v[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Int, Size: 1}:
		v := make([]int8, n)
		for i := range v {
			v[i] = int8(data[i])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Int, Size: 2}:
		v := make([]int16, n)
		for i := range v {
			v[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Int, Size: 4}:
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Int, Size: 8}:
		v := make([]int64, n)
		for i := range v {
			v[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Float, Size: 4}:
		v := make([]float32, n)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case nd.DType{Kind: nd.Float, Size: 8}:
		v := make([]float64, n)
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", d.data.DType)
	}
}
