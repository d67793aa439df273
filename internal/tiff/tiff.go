// Package tiff implements a minimal reader and writer for classic TIFF
// containers: IFD chains, tag tables, stripped grayscale and contiguous
// multi-sample images, with none or Deflate compression.
package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/lumascope/tiffglob/internal/nd"
)

// Well-known tag codes used by this package.
const (
	TagImageWidth       = 256
	TagImageLength      = 257
	TagBitsPerSample    = 258
	TagCompression      = 259
	TagPhotometric      = 262
	TagImageDescription = 270
	TagStripOffsets     = 273
	TagSamplesPerPixel  = 277
	TagRowsPerStrip     = 278
	TagStripByteCounts  = 279
	TagPredictor        = 317
	TagTileWidth        = 322
	TagSampleFormat     = 339
)

// Compression schemes understood by Decode.
const (
	CompressionNone       = 1
	CompressionDeflate    = 8
	CompressionOldDeflate = 32946
)

// Sample formats from the TIFF 6.0 specification.
const (
	SampleFormatUint  = 1
	SampleFormatInt   = 2
	SampleFormatFloat = 3
)

// ErrNotTIFF is returned when the input does not carry a TIFF signature.
var ErrNotTIFF = errors.New("not a TIFF file")

// ErrUnsupported is returned for valid TIFF features this reader does
// not implement (BigTIFF, tiles, predictors, exotic compressions).
var ErrUnsupported = errors.New("unsupported TIFF feature")

var typeSizes = map[uint16]int{
	1:  1, // BYTE
	2:  1, // ASCII
	3:  2, // SHORT
	4:  4, // LONG
	5:  8, // RATIONAL
	6:  1, // SBYTE
	7:  1, // UNDEFINED
	8:  2, // SSHORT
	9:  4, // SLONG
	10: 8, // SRATIONAL
	11: 4, // FLOAT
	12: 8, // DOUBLE
}

// Tag is one parsed IFD entry.
type Tag struct {
	Code  uint16
	Type  uint16
	Count uint32
	// Value is uint64 or []uint64 for integer types, string for ASCII,
	// []byte for UNDEFINED and float64 or []float64 for floating types.
	Value any
}

// Page is one image (IFD) within a TIFF file.
type Page struct {
	Width           int
	Height          int
	BitsPerSample   int
	SamplesPerPixel int
	SampleFormat    int
	Compression     int

	tags  map[uint16]Tag
	order []uint16

	file *File
}

// File is a parsed classic TIFF container.
type File struct {
	ByteOrder binary.ByteOrder
	Pages     []*Page

	data []byte
}

// Parse reads a classic TIFF container from memory.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, ErrNotTIFF
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	switch order.Uint16(data[2:4]) {
	case 42:
	case 43:
		return nil, fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return nil, ErrNotTIFF
	}

	f := &File{ByteOrder: order, data: data}

	offset := int64(order.Uint32(data[4:8]))
	for offset != 0 {
		if len(f.Pages) > 65535 {
			return nil, fmt.Errorf("IFD chain does not terminate")
		}
		page, next, err := f.parseIFD(offset)
		if err != nil {
			return nil, err
		}
		f.Pages = append(f.Pages, page)
		offset = next
	}
	if len(f.Pages) == 0 {
		return nil, fmt.Errorf("TIFF file has no IFD")
	}
	return f, nil
}

func (f *File) parseIFD(offset int64) (*Page, int64, error) {
	if offset < 0 || offset+2 > int64(len(f.data)) {
		return nil, 0, fmt.Errorf("IFD offset %d out of bounds", offset)
	}
	count := int(f.ByteOrder.Uint16(f.data[offset : offset+2]))
	end := offset + 2 + int64(count)*12 + 4
	if end > int64(len(f.data)) {
		return nil, 0, fmt.Errorf("IFD at %d truncated", offset)
	}

	page := &Page{
		SamplesPerPixel: 1,
		SampleFormat:    SampleFormatUint,
		Compression:     CompressionNone,
		BitsPerSample:   1,
		tags:            make(map[uint16]Tag, count),
		file:            f,
	}

	for i := 0; i < count; i++ {
		entry := f.data[offset+2+int64(i)*12:]
		tag, err := f.parseEntry(entry)
		if err != nil {
			return nil, 0, err
		}
		if _, dup := page.tags[tag.Code]; !dup {
			page.order = append(page.order, tag.Code)
		}
		page.tags[tag.Code] = tag
	}

	if v, ok := page.firstUint(TagImageWidth); ok {
		page.Width = int(v)
	}
	if v, ok := page.firstUint(TagImageLength); ok {
		page.Height = int(v)
	}
	if v, ok := page.firstUint(TagSamplesPerPixel); ok {
		page.SamplesPerPixel = int(v)
	}
	if v, ok := page.firstUint(TagCompression); ok {
		page.Compression = int(v)
	}
	if v, ok := page.firstUint(TagSampleFormat); ok {
		page.SampleFormat = int(v)
	}
	bits, err := page.bitsPerSample()
	if err != nil {
		return nil, 0, err
	}
	page.BitsPerSample = bits

	next := int64(f.ByteOrder.Uint32(f.data[end-4 : end]))
	return page, next, nil
}

func (f *File) parseEntry(entry []byte) (Tag, error) {
	tag := Tag{
		Code:  f.ByteOrder.Uint16(entry[0:2]),
		Type:  f.ByteOrder.Uint16(entry[2:4]),
		Count: f.ByteOrder.Uint32(entry[4:8]),
	}

	size, ok := typeSizes[tag.Type]
	if !ok {
		// Unknown field type: keep the raw value word so callers still
		// see the tag in the table.
		tag.Value = append([]byte(nil), entry[8:12]...)
		return tag, nil
	}

	total := size * int(tag.Count)
	var raw []byte
	if total <= 4 {
		raw = entry[8 : 8+total]
	} else {
		off := int(f.ByteOrder.Uint32(entry[8:12]))
		if off < 0 || off+total > len(f.data) {
			return Tag{}, fmt.Errorf("tag %d value at %d out of bounds", tag.Code, off)
		}
		raw = f.data[off : off+total]
	}

	tag.Value = f.decodeValue(tag.Type, int(tag.Count), raw)
	return tag, nil
}

func (f *File) decodeValue(typ uint16, count int, raw []byte) any {
	switch typ {
	case 2: // ASCII, NUL terminated
		return string(bytes.TrimRight(raw, "\x00"))
	case 7: // UNDEFINED
		return append([]byte(nil), raw...)
	case 1, 3, 4, 6, 8, 9:
		size := typeSizes[typ]
		vals := make([]uint64, count)
		for i := 0; i < count; i++ {
			switch size {
			case 1:
				vals[i] = uint64(raw[i])
			case 2:
				vals[i] = uint64(f.ByteOrder.Uint16(raw[i*2:]))
			case 4:
				vals[i] = uint64(f.ByteOrder.Uint32(raw[i*4:]))
			}
		}
		if count == 1 {
			return vals[0]
		}
		return vals
	case 5, 10: // RATIONAL
		vals := make([]float64, count)
		for i := 0; i < count; i++ {
			num := f.ByteOrder.Uint32(raw[i*8:])
			den := f.ByteOrder.Uint32(raw[i*8+4:])
			if den != 0 {
				vals[i] = float64(num) / float64(den)
			}
		}
		if count == 1 {
			return vals[0]
		}
		return vals
	default:
		return append([]byte(nil), raw...)
	}
}

// Tags returns the page's tag table as a code to value mapping.
func (p *Page) Tags() map[uint16]any {
	out := make(map[uint16]any, len(p.tags))
	for code, tag := range p.tags {
		out[code] = tag.Value
	}
	return out
}

// Description returns the ImageDescription tag value, if present.
func (p *Page) Description() (string, bool) {
	tag, ok := p.tags[TagImageDescription]
	if !ok {
		return "", false
	}
	s, ok := tag.Value.(string)
	return s, ok
}

func (p *Page) firstUint(code uint16) (uint64, bool) {
	tag, ok := p.tags[code]
	if !ok {
		return 0, false
	}
	switch v := tag.Value.(type) {
	case uint64:
		return v, true
	case []uint64:
		if len(v) > 0 {
			return v[0], true
		}
	}
	return 0, false
}

func (p *Page) uints(code uint16) []uint64 {
	tag, ok := p.tags[code]
	if !ok {
		return nil
	}
	switch v := tag.Value.(type) {
	case uint64:
		return []uint64{v}
	case []uint64:
		return v
	}
	return nil
}

func (p *Page) bitsPerSample() (int, error) {
	bits := p.uints(TagBitsPerSample)
	if len(bits) == 0 {
		return 1, nil
	}
	for _, b := range bits[1:] {
		if b != bits[0] {
			return 0, fmt.Errorf("%w: heterogeneous bits per sample %v", ErrUnsupported, bits)
		}
	}
	return int(bits[0]), nil
}

// DType maps the page's sample format and bit depth to an array dtype.
func (p *Page) DType() (nd.DType, error) {
	if p.BitsPerSample%8 != 0 || p.BitsPerSample == 0 {
		return nd.DType{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, p.BitsPerSample)
	}
	size := p.BitsPerSample / 8
	switch p.SampleFormat {
	case SampleFormatUint:
		return nd.DType{Kind: nd.Uint, Size: size}, nil
	case SampleFormatInt:
		return nd.DType{Kind: nd.Int, Size: size}, nil
	case SampleFormatFloat:
		return nd.DType{Kind: nd.Float, Size: size}, nil
	default:
		return nd.DType{}, fmt.Errorf("%w: sample format %d", ErrUnsupported, p.SampleFormat)
	}
}

// Shape returns the page shape: [height, width] for single-sample
// images, [height, width, samples] otherwise.
func (p *Page) Shape() []int {
	if p.SamplesPerPixel > 1 {
		return []int{p.Height, p.Width, p.SamplesPerPixel}
	}
	return []int{p.Height, p.Width}
}

// Decode returns the page's pixel data as little-endian bytes in
// row-major order.
func (p *Page) Decode() ([]byte, error) {
	if _, ok := p.tags[TagTileWidth]; ok {
		return nil, fmt.Errorf("%w: tiled layout", ErrUnsupported)
	}
	if v, ok := p.firstUint(TagPredictor); ok && v != 1 {
		return nil, fmt.Errorf("%w: predictor %d", ErrUnsupported, v)
	}

	dt, err := p.DType()
	if err != nil {
		return nil, err
	}

	offsets := p.uints(TagStripOffsets)
	counts := p.uints(TagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("page has %d strip offsets and %d byte counts", len(offsets), len(counts))
	}

	expected := p.Width * p.Height * p.SamplesPerPixel * dt.Size
	out := make([]byte, 0, expected)
	for i := range offsets {
		off, cnt := int(offsets[i]), int(counts[i])
		if off < 0 || off+cnt > len(p.file.data) {
			return nil, fmt.Errorf("strip %d at %d out of bounds", i, off)
		}
		strip := p.file.data[off : off+cnt]

		switch p.Compression {
		case CompressionNone:
		case CompressionDeflate, CompressionOldDeflate:
			zr, err := zlib.NewReader(bytes.NewReader(strip))
			if err != nil {
				return nil, fmt.Errorf("strip %d: %w", i, err)
			}
			strip, err = io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return nil, fmt.Errorf("strip %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, p.Compression)
		}
		out = append(out, strip...)
	}

	if len(out) != expected {
		return nil, fmt.Errorf("decoded %d bytes, want %d for %dx%dx%d", len(out), expected, p.Height, p.Width, p.SamplesPerPixel)
	}

	if p.file.ByteOrder == binary.BigEndian && dt.Size > 1 {
		swapToLittleEndian(out, dt.Size)
	}
	return out, nil
}

func swapToLittleEndian(data []byte, size int) {
	for i := 0; i+size <= len(data); i += size {
		for a, b := i, i+size-1; a < b; a, b = a+1, b-1 {
			data[a], data[b] = data[b], data[a]
		}
	}
}

// SeriesShape returns the shape of the file's first series: the page
// shape, with a leading page-count axis when the file holds several
// pages of identical geometry.
func (f *File) SeriesShape() ([]int, error) {
	first := f.Pages[0]
	for _, p := range f.Pages[1:] {
		if p.Width != first.Width || p.Height != first.Height || p.SamplesPerPixel != first.SamplesPerPixel || p.BitsPerSample != first.BitsPerSample {
			return nil, fmt.Errorf("%w: pages with heterogeneous geometry", ErrUnsupported)
		}
	}
	shape := first.Shape()
	if len(f.Pages) > 1 {
		shape = append([]int{len(f.Pages)}, shape...)
	}
	return shape, nil
}

// DecodeSeries decodes every page of the first series into one array
// of SeriesShape.
func (f *File) DecodeSeries() (*nd.Array, error) {
	shape, err := f.SeriesShape()
	if err != nil {
		return nil, err
	}
	dt, err := f.Pages[0].DType()
	if err != nil {
		return nil, err
	}

	out := nd.New(dt, shape...)
	pos := 0
	for i, p := range f.Pages {
		pixels, err := p.Decode()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		copy(out.Data[pos:], pixels)
		pos += len(pixels)
	}
	return out, nil
}
