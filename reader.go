// Package tiffglob assembles one logical multi-dimensional image out of
// a collection of single- or few-dimensional TIFF files whose dimension
// indices are encoded in their filenames or in an external index table.
package tiffglob

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lumascope/tiffglob/internal/nd"
	"github.com/lumascope/tiffglob/internal/tiff"
)

// FileSource identifies the files to assemble: a glob pattern, an
// explicit ordered path list, or a pre-built coordinate table.
type FileSource struct {
	glob  string
	paths []string
	table *FileTable
}

// Glob selects files by pattern.
func Glob(pattern string) FileSource { return FileSource{glob: pattern} }

// Paths selects an explicit ordered file list.
func Paths(paths ...string) FileSource { return FileSource{paths: paths} }

// Table supplies a pre-built coordinate table, paths included.
func Table(t *FileTable) FileSource { return FileSource{table: t} }

type config struct {
	indexer         Indexer
	indexAxes       []string
	indexRows       [][]int
	hasIndexTable   bool
	sceneAxis       string
	chunkDims       []string
	dimOrder        string
	dimOrderList    []string
	channelFlat     []string
	channelNested   [][]string
	singleFileDims  []string
	singleFileShape []int
	fsOpts          string
}

// Option configures New.
type Option func(*config)

// WithIndexer sets the function mapping each path to its per-axis
// coordinates.
func WithIndexer(fn Indexer) Option {
	return func(c *config) { c.indexer = fn }
}

// WithIndexTable supplies pre-built coordinates: rows[i] holds the
// values of the given axes for the i-th resolved file.
func WithIndexTable(axes []string, rows [][]int) Option {
	return func(c *config) {
		c.indexAxes = axes
		c.indexRows = rows
		c.hasIndexTable = true
	}
}

// WithSceneAxis sets the table column that identifies scenes.
func WithSceneAxis(axis string) Option {
	return func(c *config) { c.sceneAxis = axis }
}

// WithChunkDims sets the axes that must stay resident within each
// computed chunk. Y, X and the samples axis are always added.
func WithChunkDims(dims ...string) Option {
	return func(c *config) { c.chunkDims = dims }
}

// WithDimensionOrder requests a global axis order, e.g. "TCZYX",
// applied to every scene.
func WithDimensionOrder(order string) Option {
	return func(c *config) { c.dimOrder = order }
}

// WithDimensionOrderPerScene requests one global axis order per scene.
func WithDimensionOrderPerScene(orders ...string) Option {
	return func(c *config) { c.dimOrderList = orders }
}

// WithChannelNames applies one channel name list to every scene.
func WithChannelNames(names ...string) Option {
	return func(c *config) { c.channelFlat = names }
}

// WithChannelNamesPerScene applies one channel name list per scene.
func WithChannelNamesPerScene(names ...[]string) Option {
	return func(c *config) { c.channelNested = names }
}

// WithSingleFileShape declares the shape of one decoded file instead of
// probing the first file for it.
func WithSingleFileShape(shape ...int) Option {
	return func(c *config) { c.singleFileShape = shape }
}

// WithSingleFileDims declares the axis names of one decoded file.
func WithSingleFileDims(dims ...string) Option {
	return func(c *config) { c.singleFileDims = dims }
}

// WithFSOptions forwards options verbatim to the blob bucket URL as its
// query string, e.g. "create_dir=true".
func WithFSOptions(opts string) Option {
	return func(c *config) { c.fsOpts = opts }
}

// Reader assembles multi-file TIFF datasets. All state is read-only
// after New, so a Reader may serve concurrent scene reads.
type Reader struct {
	fs    *fileSystem
	table *FileTable

	sceneAxis       string
	chunkDims       []string
	singleFileSizes Sizes
	dtype           nd.DType

	dimOrder     string
	dimOrderList []string

	channelFlat   []string
	channelNested [][]string

	scenes      []string
	sceneValues []int
}

// New builds a Reader: resolves the file source, builds and sorts the
// coordinate table, computes the scene list and probes the first file.
func New(ctx context.Context, source FileSource, opts ...Option) (*Reader, error) {
	cfg := config{
		sceneAxis:      DefaultSceneAxis,
		chunkDims:      DefaultChunkDims,
		singleFileDims: DefaultSingleFileDims,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	table, err := resolveSource(source, &cfg)
	if err != nil {
		return nil, err
	}

	chunkDims := make([]string, 0, len(cfg.chunkDims)+len(requiredChunkDims))
	for _, d := range cfg.chunkDims {
		chunkDims = append(chunkDims, strings.ToUpper(d))
	}
	for _, d := range requiredChunkDims {
		if !contains(chunkDims, d) {
			chunkDims = append(chunkDims, d)
		}
	}

	singleFileDims := append([]string(nil), cfg.singleFileDims...)

	// Axes in the canonical priority order that are absent from both
	// the table and the single-file axes become constant-zero columns;
	// present ones define the sort priority.
	var sortOrder []string
	for _, dim := range dimensionPriority {
		if !table.Has(dim) && !contains(singleFileDims, dim) {
			table = table.withZeroColumn(dim)
		}
		if table.Has(dim) {
			sortOrder = append(sortOrder, dim)
		}
	}
	table = table.sorted(sortOrder).reordered(dimensionPriority)

	if !table.Has(cfg.sceneAxis) {
		return nil, fmt.Errorf("%w: scene axis %q is not a table column", ErrInvalidArgument, cfg.sceneAxis)
	}

	r := &Reader{
		fs:            &fileSystem{opts: cfg.fsOpts},
		table:         table,
		sceneAxis:     cfg.sceneAxis,
		chunkDims:     chunkDims,
		dimOrder:      cfg.dimOrder,
		dimOrderList:  cfg.dimOrderList,
		channelFlat:   cfg.channelFlat,
		channelNested: cfg.channelNested,
	}

	r.sceneValues = table.distinct(cfg.sceneAxis)
	r.scenes = make([]string, len(r.sceneValues))
	for i := range r.sceneValues {
		r.scenes[i] = SceneID(i)
	}

	if cfg.dimOrderList != nil && len(cfg.dimOrderList) != len(r.scenes) {
		return nil, fmt.Errorf("%w: number of dimension order strings provided does not match the number of scenes found; number of scenes: %d, provided dimension order strings: %d",
			ErrConflictingArguments, len(r.scenes), len(cfg.dimOrderList))
	}
	if cfg.channelNested != nil && len(cfg.channelNested) != len(r.scenes) {
		return nil, fmt.Errorf("%w: number of channel name lists provided does not match the number of scenes found; number of scenes: %d, provided channel name lists: %d",
			ErrConflictingArguments, len(r.scenes), len(cfg.channelNested))
	}

	// Probe the first file: it must decode as a TIFF, and it supplies
	// the single-file shape and dtype when not declared.
	data, err := r.fs.readAll(ctx, table.Paths()[0])
	if err != nil {
		return nil, err
	}
	tf, err := tiff.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, table.Paths()[0], err)
	}
	r.dtype, err = tf.Pages[0].DType()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, table.Paths()[0], err)
	}

	shape := cfg.singleFileShape
	if shape == nil {
		shape, err = tf.SeriesShape()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, table.Paths()[0], err)
		}
	}
	if len(singleFileDims) != len(shape) {
		return nil, fmt.Errorf("%w: number of single file dimensions does not match the number of dimensions in a test file; dimensions in file: %d, provided dimensions: %d",
			ErrConflictingArguments, len(shape), len(singleFileDims))
	}
	r.singleFileSizes = make(Sizes, len(shape))
	for i, d := range singleFileDims {
		r.singleFileSizes[i] = DimSize{Dim: d, Size: shape[i]}
	}

	return r, nil
}

func resolveSource(source FileSource, cfg *config) (*FileTable, error) {
	if source.table != nil {
		if source.table.Len() == 0 {
			return nil, ErrNoFiles
		}
		return source.table.clone(), nil
	}

	paths := source.paths
	if source.glob != "" {
		matched, err := filepath.Glob(source.glob)
		if err != nil {
			return nil, fmt.Errorf("%w: glob %q: %v", ErrInvalidArgument, source.glob, err)
		}
		paths = matched
	} else if paths == nil {
		return nil, fmt.Errorf("%w: empty file source", ErrInvalidArgument)
	}
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	if cfg.hasIndexTable {
		return NewFileTable(cfg.indexAxes, cfg.indexRows, paths)
	}
	indexer := cfg.indexer
	if indexer == nil {
		indexer = defaultIndexer(cfg.sceneAxis)
	}
	return tableFromIndexer(paths, indexer)
}

// Scenes returns the deterministic scene identifiers, one per distinct
// scene-axis value in increasing order.
func (r *Reader) Scenes() []string {
	return append([]string(nil), r.scenes...)
}

// FileTable returns the sorted coordinate table.
func (r *Reader) FileTable() *FileTable {
	return r.table
}

// sceneTable returns the sub-table of one scene with the scene column
// removed.
func (r *Reader) sceneTable(scene int) (*FileTable, error) {
	if scene < 0 || scene >= len(r.sceneValues) {
		return nil, fmt.Errorf("%w: scene index %d out of range [0, %d)", ErrInvalidArgument, scene, len(r.sceneValues))
	}
	return r.table.filterEq(r.sceneAxis, r.sceneValues[scene]).drop(r.sceneAxis), nil
}

// dimOrderFor resolves the global axis order for one scene. When none
// was requested it is inferred from the default order restricted to
// realized axes, with any remaining realized axes appended.
func (r *Reader) dimOrderFor(scene int, actual []string) []string {
	var order string
	switch {
	case r.dimOrderList != nil:
		order = r.dimOrderList[scene]
	case r.dimOrder != "":
		order = r.dimOrder
	default:
		var dims []string
		for _, d := range DefaultDimensionOrder {
			if (r.table.Has(d) || contains(r.chunkDims, d)) && contains(actual, d) {
				dims = append(dims, d)
			}
		}
		for _, d := range actual {
			if !contains(dims, d) {
				dims = append(dims, d)
			}
		}
		return dims
	}

	dims := make([]string, 0, len(order))
	for _, c := range order {
		dims = append(dims, strings.ToUpper(string(c)))
	}
	return dims
}
