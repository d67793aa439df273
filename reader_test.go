package tiffglob_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/fileblob"

	"github.com/lumascope/tiffglob"
	"github.com/lumascope/tiffglob/internal/tiff"
)

// writeTIFF encodes one or more pages into a file in dir.
func writeTIFF(t *testing.T, dir, name string, images ...tiff.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, tiff.Encode(f, images...))
	return path
}

// plane builds a constant-valued 8-bit grayscale page.
func plane(width, height int, value byte) tiff.Image {
	pixels := make([]byte, width*height)
	for i := range pixels {
		pixels[i] = value
	}
	return tiff.Image{Width: width, Height: height, BitsPerSample: 8, Pixels: pixels}
}

// writeScene writes one file per (t, c, z) combination for a scene.
// Pixel values encode the file's coordinates so stitching order is
// verifiable: value = s*100 + t*24 + c*12 + z.
func writeScene(t *testing.T, dir string, s, nt, nc, nz, size int) {
	t.Helper()
	for ti := 0; ti < nt; ti++ {
		for ci := 0; ci < nc; ci++ {
			for zi := 0; zi < nz; zi++ {
				name := fmt.Sprintf("S%d_T%d_C%d_Z%d.tif", s, ti, ci, zi)
				img := plane(size, size, byte(s*100+ti*24+ci*12+zi))
				img.Description = fmt.Sprintf("scene %d", s)
				writeTIFF(t, dir, name, img)
			}
		}
	}
}

func TestReader_SingleScene(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 2, 3, 512)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")))
	require.NoError(t, err)

	require.Equal(t, []string{"Image:0"}, r.Scenes())
	require.Equal(t, 12, r.FileTable().Len())

	da, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"T", "C", "Z", "Y", "X"}, da.Dims)
	require.Equal(t, []int{2, 2, 3, 512, 512}, da.Shape())
	require.Equal(t, "uint8", da.DType())

	// Default channel identifiers, one per realized channel.
	require.Equal(t, []string{"Channel:0:0", "Channel:0:1"}, da.Coords["C"])

	// Every (t, c, z) plane must come from the file with those
	// coordinates.
	data := da.Bytes()
	planeLen := 512 * 512
	for ti := 0; ti < 2; ti++ {
		for ci := 0; ci < 2; ci++ {
			for zi := 0; zi < 3; zi++ {
				offset := ((ti*2+ci)*3 + zi) * planeLen
				want := byte(ti*24 + ci*12 + zi)
				require.Equal(t, want, data[offset], "plane t=%d c=%d z=%d", ti, ci, zi)
				require.Equal(t, want, data[offset+planeLen-1])
			}
		}
	}

	// Scene metadata carries the raw tag table and the description.
	require.Equal(t, "scene 0", da.Attrs.Description)
	require.Equal(t, "scene 0", da.Attrs.Tags[uint16(tiff.TagImageDescription)])
	require.Equal(t, uint64(512), da.Attrs.Tags[uint16(tiff.TagImageWidth)])
}

func TestReader_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 1, 2, 16)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")))
	require.NoError(t, err)

	first, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	second, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)

	require.Equal(t, first.Dims, second.Dims)
	require.Equal(t, first.Shape(), second.Shape())
	require.Equal(t, first.Bytes(), second.Bytes())
	require.Equal(t, first.Coords, second.Coords)
}

func TestReader_LazyMatchesImmediate(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 2, 3, 32)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")))
	require.NoError(t, err)

	immediate, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)

	lazy, err := r.ReadLazy(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, immediate.Dims, lazy.Dims)
	require.Equal(t, immediate.Shape(), lazy.Shape())

	// One chunk per (T, C) grouping combination.
	require.Equal(t, []int{2, 2, 1, 1, 1}, lazy.GridShape())

	computed, err := lazy.Compute(ctx)
	require.NoError(t, err)
	require.Equal(t, immediate.Dims, computed.Dims)
	require.Equal(t, immediate.Shape(), computed.Shape())
	require.Equal(t, immediate.Bytes(), computed.Bytes())
	require.Equal(t, immediate.Coords, computed.Coords)
}

func TestReader_MultiScene(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 2, 3, 16)
	writeScene(t, dir, 1, 2, 2, 3, 16)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")))
	require.NoError(t, err)

	require.Equal(t, []string{"Image:0", "Image:1"}, r.Scenes())

	da, err := r.ReadImmediate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 3, 16, 16}, da.Shape())

	// Only files whose scene column equals 1 contribute.
	for _, b := range da.Bytes() {
		require.GreaterOrEqual(t, b, byte(100))
	}
	require.Equal(t, "scene 1", da.Attrs.Description)

	// Channel identifiers are derived from the scene index.
	require.Equal(t, []string{"Channel:1:0", "Channel:1:1"}, da.Coords["C"])
}

func TestReader_SizingPlanConservation(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 2, 3, 16)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")))
	require.NoError(t, err)

	plan, err := r.SizingPlan(0)
	require.NoError(t, err)

	// Total elements = file count times single-file element count.
	require.Equal(t, 12*16*16, plan.NumElements())
}

func TestReader_ChannelNameValidation(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 1, 4, 1, 16)

	ctx := context.Background()

	// Three names against four realized channels.
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithChannelNames("DAPI", "GFP", "RFP"))
	require.NoError(t, err)
	_, err = r.ReadImmediate(ctx, 0)
	require.ErrorIs(t, err, tiffglob.ErrConflictingArguments)
	_, err = r.ReadLazy(ctx, 0)
	require.ErrorIs(t, err, tiffglob.ErrConflictingArguments)

	// No names: four synthesized identifiers.
	r, err = tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")))
	require.NoError(t, err)
	da, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"Channel:0:0", "Channel:0:1", "Channel:0:2", "Channel:0:3"}, da.Coords["C"])

	// Matching names are applied as-is.
	r, err = tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithChannelNames("DAPI", "GFP", "RFP", "Cy5"))
	require.NoError(t, err)
	da, err = r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"DAPI", "GFP", "RFP", "Cy5"}, da.Coords["C"])
}

func TestReader_ChannelNamesPerScene(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 1, 2, 1, 16)
	writeScene(t, dir, 1, 1, 2, 1, 16)

	ctx := context.Background()

	// List count must match the scene count.
	_, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithChannelNamesPerScene([]string{"a", "b"}))
	require.ErrorIs(t, err, tiffglob.ErrConflictingArguments)

	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithChannelNamesPerScene([]string{"a", "b"}, []string{"c", "d"}))
	require.NoError(t, err)

	da, err := r.ReadImmediate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, da.Coords["C"])
}

func TestReader_MergeAxis(t *testing.T) {
	// Z varies both across files (2 values) and within each file
	// (2 pages): the realized Z extent is the product, ordered with
	// the across-file coordinate outermost.
	dir := t.TempDir()
	for zi := 0; zi < 2; zi++ {
		pages := []tiff.Image{
			plane(4, 4, byte(zi*2)),
			plane(4, 4, byte(zi*2+1)),
		}
		writeTIFF(t, dir, fmt.Sprintf("S0_T0_C0_Z%d.tif", zi), pages...)
	}

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithSingleFileDims("Z", "Y", "X"))
	require.NoError(t, err)

	da, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"T", "C", "Z", "Y", "X"}, da.Dims)
	require.Equal(t, []int{1, 1, 4, 4, 4}, da.Shape())

	data := da.Bytes()
	for z := 0; z < 4; z++ {
		require.Equal(t, byte(z), data[z*16], "z=%d", z)
	}

	// Lazy path produces the identical merge.
	lazy, err := r.ReadLazy(ctx, 0)
	require.NoError(t, err)
	computed, err := lazy.Compute(ctx)
	require.NoError(t, err)
	require.Equal(t, da.Shape(), computed.Shape())
	require.Equal(t, da.Bytes(), computed.Bytes())

	// Tensor conversion carries shape through.
	tensor, err := computed.Tensor()
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 4, 4, 4}, tensor.Shape().Dimensions)
}

func TestReader_CustomChunkDims(t *testing.T) {
	// With only Y and X chunk resident, T, C and Z all become grouping
	// axes: one chunk per file.
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 2, 3, 8)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithChunkDims("Y", "X"))
	require.NoError(t, err)

	lazy, err := r.ReadLazy(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 3, 1, 1}, lazy.GridShape())
	require.Equal(t, []int{2, 2, 3, 8, 8}, lazy.Shape())

	computed, err := lazy.Compute(ctx)
	require.NoError(t, err)

	immediate, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, immediate.Bytes(), computed.Bytes())
}

func TestReader_DimensionOrder(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, 0, 2, 2, 3, 8)

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithDimensionOrder("ZYXCT"))
	require.NoError(t, err)

	da, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"Z", "Y", "X", "C", "T"}, da.Dims)
	require.Equal(t, []int{3, 8, 8, 2, 2}, da.Shape())

	lazy, err := r.ReadLazy(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"Z", "Y", "X", "C", "T"}, lazy.Dims)
	require.Equal(t, []int{3, 8, 8, 2, 2}, lazy.Shape())

	computed, err := lazy.Compute(ctx)
	require.NoError(t, err)
	require.Equal(t, da.Bytes(), computed.Bytes())

	// Per-scene list length must match the scene count.
	_, err = tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithDimensionOrderPerScene("TCZYX", "ZYXCT"))
	require.ErrorIs(t, err, tiffglob.ErrConflictingArguments)
}

func TestReader_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(t.TempDir(), "*.tif")))
	require.ErrorIs(t, err, tiffglob.ErrNoFiles)

	_, err = tiffglob.New(ctx, tiffglob.FileSource{})
	require.ErrorIs(t, err, tiffglob.ErrInvalidArgument)

	// A non-TIFF first file fails construction.
	dir := t.TempDir()
	bad := filepath.Join(dir, "S0_T0_C0_Z0.tif")
	require.NoError(t, os.WriteFile(bad, []byte("not a tiff"), 0644))
	_, err = tiffglob.New(ctx, tiffglob.Paths(bad))
	require.ErrorIs(t, err, tiffglob.ErrUnsupportedFormat)

	// Declared single-file dims must match the probed shape rank.
	dir = t.TempDir()
	writeScene(t, dir, 0, 1, 1, 1, 8)
	_, err = tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithSingleFileDims("Z", "Y", "X"))
	require.ErrorIs(t, err, tiffglob.ErrConflictingArguments)
}

func TestReader_ExplicitPathsAndIndexTable(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeTIFF(t, dir, "a.tif", plane(8, 8, 1)),
		writeTIFF(t, dir, "b.tif", plane(8, 8, 2)),
	}

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Paths(paths...),
		tiffglob.WithIndexTable([]string{"S", "T", "C", "Z"}, [][]int{
			{0, 0, 0, 0},
			{0, 1, 0, 0},
		}))
	require.NoError(t, err)

	da, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []int{2, 1, 1, 8, 8}, da.Shape())
	require.Equal(t, byte(1), da.Bytes()[0])
	require.Equal(t, byte(2), da.Bytes()[64])
}

func TestReader_MicroManagerIndexer(t *testing.T) {
	dir := t.TempDir()
	for c := 0; c < 2; c++ {
		for ti := 0; ti < 2; ti++ {
			name := fmt.Sprintf("img_channel00%d_position000_time00000000%d_z000.tif", c, ti)
			writeTIFF(t, dir, name, plane(8, 8, byte(c*10+ti)))
		}
	}

	ctx := context.Background()
	r, err := tiffglob.New(ctx, tiffglob.Glob(filepath.Join(dir, "*.tif")),
		tiffglob.WithIndexer(tiffglob.MicroManagerIndexer))
	require.NoError(t, err)

	da, err := r.ReadImmediate(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"T", "C", "Z", "Y", "X"}, da.Dims)
	require.Equal(t, []int{2, 2, 1, 8, 8}, da.Shape())

	// data[t][c] plane must come from file (c, t).
	data := da.Bytes()
	for ti := 0; ti < 2; ti++ {
		for c := 0; c < 2; c++ {
			require.Equal(t, byte(c*10+ti), data[(ti*2+c)*64], "t=%d c=%d", ti, c)
		}
	}
}
