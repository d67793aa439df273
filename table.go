package tiffglob

import (
	"fmt"
	"sort"
)

// FileTable is the coordinate table: one row per file, one integer
// column per logical axis, plus the file's path. Column order is
// explicit and significant; the table is immutable once built.
type FileTable struct {
	axes   []string
	coords map[string][]int
	paths  []string
}

// NewFileTable builds a table from explicit columns. rows[i] holds the
// coordinates of paths[i] in axis order.
func NewFileTable(axes []string, rows [][]int, paths []string) (*FileTable, error) {
	if len(rows) != len(paths) {
		return nil, fmt.Errorf("%w: %d index rows for %d paths", ErrInvalidArgument, len(rows), len(paths))
	}
	t := &FileTable{
		axes:   append([]string(nil), axes...),
		coords: make(map[string][]int, len(axes)),
		paths:  append([]string(nil), paths...),
	}
	for _, axis := range axes {
		t.coords[axis] = make([]int, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(axes) {
			return nil, fmt.Errorf("%w: index row %d has %d values for %d axes", ErrInvalidArgument, i, len(row), len(axes))
		}
		for j, axis := range axes {
			t.coords[axis][i] = row[j]
		}
	}
	return t, nil
}

// tableFromIndexer applies the indexer to every path. All paths must
// yield the same axes in the same order.
func tableFromIndexer(paths []string, indexer Indexer) (*FileTable, error) {
	var axes []string
	var rows [][]int
	for i, path := range paths {
		pairs, err := indexer(path)
		if err != nil {
			return nil, fmt.Errorf("indexing %q: %w", path, err)
		}
		if i == 0 {
			axes = make([]string, len(pairs))
			for j, p := range pairs {
				axes[j] = p.Axis
			}
		} else if len(pairs) != len(axes) {
			return nil, fmt.Errorf("%w: indexer yielded %d axes for %q, %d for %q", ErrInvalidArgument, len(pairs), path, len(axes), paths[0])
		}
		row := make([]int, len(pairs))
		for j, p := range pairs {
			if p.Axis != axes[j] {
				return nil, fmt.Errorf("%w: indexer axis order changed at %q: got %q, want %q", ErrInvalidArgument, path, p.Axis, axes[j])
			}
			row[j] = p.Index
		}
		rows = append(rows, row)
	}
	return NewFileTable(axes, rows, paths)
}

// Len returns the number of rows.
func (t *FileTable) Len() int { return len(t.paths) }

// Axes returns the column order.
func (t *FileTable) Axes() []string { return append([]string(nil), t.axes...) }

// Has reports whether the table has a column for axis.
func (t *FileTable) Has(axis string) bool {
	_, ok := t.coords[axis]
	return ok
}

// Column returns the coordinate column for axis.
func (t *FileTable) Column(axis string) []int { return t.coords[axis] }

// Paths returns the path column.
func (t *FileTable) Paths() []string { return t.paths }

// withZeroColumn returns a copy of t with a constant-zero column
// appended for axis.
func (t *FileTable) withZeroColumn(axis string) *FileTable {
	out := t.clone()
	out.axes = append(out.axes, axis)
	out.coords[axis] = make([]int, len(out.paths))
	return out
}

func (t *FileTable) clone() *FileTable {
	out := &FileTable{
		axes:   append([]string(nil), t.axes...),
		coords: make(map[string][]int, len(t.coords)),
		paths:  append([]string(nil), t.paths...),
	}
	for axis, col := range t.coords {
		out.coords[axis] = append([]int(nil), col...)
	}
	return out
}

// sorted returns a copy of t with rows stably ordered by the given
// axes, most significant first.
func (t *FileTable) sorted(by []string) *FileTable {
	idx := make([]int, len(t.paths))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, axis := range by {
			col := t.coords[axis]
			if col[idx[a]] != col[idx[b]] {
				return col[idx[a]] < col[idx[b]]
			}
		}
		return false
	})

	out := &FileTable{
		axes:   append([]string(nil), t.axes...),
		coords: make(map[string][]int, len(t.coords)),
		paths:  make([]string, len(t.paths)),
	}
	for _, axis := range t.axes {
		col := make([]int, len(idx))
		for i, j := range idx {
			col[i] = t.coords[axis][j]
		}
		out.coords[axis] = col
	}
	for i, j := range idx {
		out.paths[i] = t.paths[j]
	}
	return out
}

// reordered returns a copy of t with columns arranged to follow the
// given priority; axes outside the priority keep their relative order
// after it. Column order drives sizing and unpacking downstream, so it
// must agree with the row sort order.
func (t *FileTable) reordered(priority []string) *FileTable {
	out := t.clone()
	out.axes = out.axes[:0]
	for _, axis := range priority {
		if t.Has(axis) {
			out.axes = append(out.axes, axis)
		}
	}
	for _, axis := range t.axes {
		if !contains(priority, axis) {
			out.axes = append(out.axes, axis)
		}
	}
	return out
}

// filterEq returns the rows whose axis column equals v.
func (t *FileTable) filterEq(axis string, v int) *FileTable {
	col := t.coords[axis]
	out := &FileTable{
		axes:   append([]string(nil), t.axes...),
		coords: make(map[string][]int, len(t.coords)),
	}
	for _, a := range t.axes {
		out.coords[a] = nil
	}
	for i := range t.paths {
		if col[i] != v {
			continue
		}
		for _, a := range t.axes {
			out.coords[a] = append(out.coords[a], t.coords[a][i])
		}
		out.paths = append(out.paths, t.paths[i])
	}
	return out
}

// drop returns a copy of t without the given column.
func (t *FileTable) drop(axis string) *FileTable {
	out := &FileTable{
		coords: make(map[string][]int, len(t.coords)),
		paths:  append([]string(nil), t.paths...),
	}
	for _, a := range t.axes {
		if a == axis {
			continue
		}
		out.axes = append(out.axes, a)
		out.coords[a] = append([]int(nil), t.coords[a]...)
	}
	return out
}

// distinct returns the sorted distinct values of a column.
func (t *FileTable) distinct(axis string) []int {
	seen := make(map[int]bool)
	var vals []int
	for _, v := range t.coords[axis] {
		if !seen[v] {
			seen[v] = true
			vals = append(vals, v)
		}
	}
	sort.Ints(vals)
	return vals
}

// nunique returns the distinct value count of every column, in column
// order.
func (t *FileTable) nunique() Sizes {
	out := make(Sizes, 0, len(t.axes))
	for _, axis := range t.axes {
		out = append(out, DimSize{Dim: axis, Size: len(t.distinct(axis))})
	}
	return out
}

// group is one grouping-axis value combination and its member rows.
type group struct {
	key   []int
	table *FileTable
}

// groupBy partitions rows by their value combination along the given
// axes. Groups come out in ascending key order; each group's rows keep
// the table's row order.
func (t *FileTable) groupBy(axes []string) []group {
	type bucket struct {
		key  []int
		rows []int
	}
	byKey := make(map[string]*bucket)
	var order []string

	for i := range t.paths {
		key := make([]int, len(axes))
		id := ""
		for j, axis := range axes {
			key[j] = t.coords[axis][i]
			id += fmt.Sprintf("%d,", key[j])
		}
		b, ok := byKey[id]
		if !ok {
			b = &bucket{key: key}
			byKey[id] = b
			order = append(order, id)
		}
		b.rows = append(b.rows, i)
	}

	sort.Slice(order, func(a, b int) bool {
		ka, kb := byKey[order[a]].key, byKey[order[b]].key
		for i := range ka {
			if ka[i] != kb[i] {
				return ka[i] < kb[i]
			}
		}
		return false
	})

	out := make([]group, 0, len(order))
	for _, id := range order {
		b := byKey[id]
		sub := &FileTable{
			axes:   append([]string(nil), t.axes...),
			coords: make(map[string][]int, len(t.coords)),
		}
		for _, a := range t.axes {
			col := make([]int, len(b.rows))
			for i, r := range b.rows {
				col[i] = t.coords[a][r]
			}
			sub.coords[a] = col
		}
		for _, r := range b.rows {
			sub.paths = append(sub.paths, t.paths[r])
		}
		out = append(out, group{key: b.key, table: sub})
	}
	return out
}
