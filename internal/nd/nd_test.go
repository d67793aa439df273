package nd_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumascope/tiffglob/internal/nd"
)

var u8 = nd.DType{Kind: nd.Uint, Size: 1}

func arrayOf(t *testing.T, shape []int, data []byte) *nd.Array {
	t.Helper()
	a := nd.New(u8, shape...)
	require.Len(t, data, len(a.Data))
	copy(a.Data, data)
	return a
}

func TestStrides(t *testing.T) {
	require.Equal(t, []int{12, 4, 1}, nd.Strides([]int{2, 3, 4}))
	require.Equal(t, []int{1}, nd.Strides([]int{7}))
	require.Equal(t, []int{}, nd.Strides(nil))
}

func TestReshape(t *testing.T) {
	a := arrayOf(t, []int{2, 3}, []byte{0, 1, 2, 3, 4, 5})

	b, err := a.Reshape(3, 2)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, b.Shape)
	// Reshape is a view: same flat data.
	require.Equal(t, a.Data, b.Data)

	_, err = a.Reshape(4, 2)
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	// 2x3 -> 3x2
	a := arrayOf(t, []int{2, 3}, []byte{
		0, 1, 2,
		3, 4, 5,
	})
	b, err := a.Transpose(1, 0)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, b.Shape)
	require.Equal(t, []byte{
		0, 3,
		1, 4,
		2, 5,
	}, b.Data)

	// Transposing back round-trips.
	c, err := b.Transpose(1, 0)
	require.NoError(t, err)
	require.Equal(t, a.Data, c.Data)

	_, err = a.Transpose(0)
	require.Error(t, err)
	_, err = a.Transpose(0, 0)
	require.Error(t, err)
}

func TestTranspose3D(t *testing.T) {
	// Shape (2, 2, 2), move axis 0 to the middle: out[i][j][k] = in[j][i][k].
	a := arrayOf(t, []int{2, 2, 2}, []byte{0, 1, 2, 3, 4, 5, 6, 7})
	b, err := a.Transpose(1, 0, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 4, 5, 2, 3, 6, 7}, b.Data)
}

func TestCopyBlock(t *testing.T) {
	dst := nd.New(u8, 4, 4)
	src := arrayOf(t, []int{2, 2}, []byte{1, 2, 3, 4})

	require.NoError(t, nd.CopyBlock(dst, []int{2, 2}, src))
	require.Equal(t, []byte{
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 1, 2,
		0, 0, 3, 4,
	}, dst.Data)

	require.Error(t, nd.CopyBlock(dst, []int{3, 3}, src))
}

func TestAssemble(t *testing.T) {
	// 2x2 grid of 2x2 chunks -> 4x4.
	chunks := []*nd.Array{
		arrayOf(t, []int{2, 2}, []byte{1, 2, 3, 4}),
		arrayOf(t, []int{2, 2}, []byte{5, 6, 7, 8}),
		arrayOf(t, []int{2, 2}, []byte{9, 10, 11, 12}),
		arrayOf(t, []int{2, 2}, []byte{13, 14, 15, 16}),
	}
	out, err := nd.Assemble(chunks, []int{2, 2}, []int{2, 2}, u8)
	require.NoError(t, err)
	require.Equal(t, []int{4, 4}, out.Shape)
	require.Equal(t, []byte{
		1, 2, 5, 6,
		3, 4, 7, 8,
		9, 10, 13, 14,
		11, 12, 15, 16,
	}, out.Data)
}

func TestAssembleRightAligned(t *testing.T) {
	// Grid (2, 1, 1) of rank-2 chunks: the chunks get leading
	// singleton axes, the result is (2, 2, 2).
	chunks := []*nd.Array{
		arrayOf(t, []int{2, 2}, []byte{1, 2, 3, 4}),
		arrayOf(t, []int{2, 2}, []byte{5, 6, 7, 8}),
	}
	out, err := nd.Assemble(chunks, []int{2, 1, 1}, []int{2, 2}, u8)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 2}, out.Shape)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out.Data)
}

func TestAssembleMissingChunk(t *testing.T) {
	chunks := []*nd.Array{
		arrayOf(t, []int{2}, []byte{1, 2}),
		nil,
	}
	_, err := nd.Assemble(chunks, []int{2}, []int{2}, u8)
	require.ErrorContains(t, err, "missing chunk")
}

func TestIterateGrid(t *testing.T) {
	var visited [][]int
	err := nd.IterateGrid([]int{2, 3}, func(coords []int) error {
		visited = append(visited, append([]int(nil), coords...))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]int{
		{0, 0}, {0, 1}, {0, 2},
		{1, 0}, {1, 1}, {1, 2},
	}, visited)
}

func TestDTypeString(t *testing.T) {
	require.Equal(t, "uint8", nd.DType{Kind: nd.Uint, Size: 1}.String())
	require.Equal(t, "int16", nd.DType{Kind: nd.Int, Size: 2}.String())
	require.Equal(t, "float32", nd.DType{Kind: nd.Float, Size: 4}.String())
}
