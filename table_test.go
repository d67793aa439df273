package tiffglob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *FileTable {
	t.Helper()
	tbl, err := NewFileTable(
		[]string{"T", "C"},
		[][]int{{1, 0}, {0, 1}, {1, 1}, {0, 0}},
		[]string{"t1c0.tif", "t0c1.tif", "t1c1.tif", "t0c0.tif"},
	)
	require.NoError(t, err)
	return tbl
}

func TestNewFileTableValidation(t *testing.T) {
	_, err := NewFileTable([]string{"T"}, [][]int{{0, 1}}, []string{"a.tif"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFileTable([]string{"T"}, [][]int{{0}}, []string{"a.tif", "b.tif"})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTableSorted(t *testing.T) {
	got := testTable(t).sorted([]string{"T", "C"})
	require.Equal(t, []string{"t0c0.tif", "t0c1.tif", "t1c0.tif", "t1c1.tif"}, got.Paths())
	require.Equal(t, []int{0, 0, 1, 1}, got.Column("T"))
	require.Equal(t, []int{0, 1, 0, 1}, got.Column("C"))
}

func TestTableReordered(t *testing.T) {
	tbl, err := NewFileTable(
		[]string{"C", "S", "T", "Q"},
		[][]int{{0, 0, 0, 0}},
		[]string{"a.tif"},
	)
	require.NoError(t, err)

	got := tbl.reordered(dimensionPriority)
	require.Equal(t, []string{"T", "C", "S", "Q"}, got.Axes())
}

func TestTableZeroColumn(t *testing.T) {
	got := testTable(t).withZeroColumn("S")
	require.Equal(t, []string{"T", "C", "S"}, got.Axes())
	require.Equal(t, []int{0, 0, 0, 0}, got.Column("S"))
}

func TestTableFilterAndDrop(t *testing.T) {
	tbl := testTable(t).sorted([]string{"T", "C"})

	sub := tbl.filterEq("T", 1)
	require.Equal(t, []string{"t1c0.tif", "t1c1.tif"}, sub.Paths())

	sub = sub.drop("T")
	require.Equal(t, []string{"C"}, sub.Axes())
	require.Equal(t, []int{0, 1}, sub.Column("C"))
}

func TestTableDistinctAndNunique(t *testing.T) {
	tbl, err := NewFileTable(
		[]string{"T", "C"},
		[][]int{{4, 0}, {2, 1}, {4, 2}, {2, 0}},
		[]string{"a.tif", "b.tif", "c.tif", "d.tif"},
	)
	require.NoError(t, err)

	require.Equal(t, []int{2, 4}, tbl.distinct("T"))
	require.Equal(t, Sizes{{Dim: "T", Size: 2}, {Dim: "C", Size: 3}}, tbl.nunique())
}

func TestTableGroupBy(t *testing.T) {
	tbl := testTable(t).sorted([]string{"T", "C"})

	groups := tbl.groupBy([]string{"T"})
	require.Len(t, groups, 2)
	require.Equal(t, []int{0}, groups[0].key)
	require.Equal(t, []string{"t0c0.tif", "t0c1.tif"}, groups[0].table.Paths())
	require.Equal(t, []int{1}, groups[1].key)
	require.Equal(t, []string{"t1c0.tif", "t1c1.tif"}, groups[1].table.Paths())
}

func TestTableFromIndexer(t *testing.T) {
	paths := []string{"img_s0_t1_c2_z3.tif", "img_s0_t0_c1_z2.tif"}
	tbl, err := tableFromIndexer(paths, defaultIndexer("S"))
	require.NoError(t, err)
	require.Equal(t, []string{"S", "T", "C", "Z"}, tbl.Axes())
	require.Equal(t, []int{1, 0}, tbl.Column("T"))
	require.Equal(t, []int{2, 1}, tbl.Column("C"))
}
