package tiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"
)

// Image describes one page to encode. Pixels are little-endian,
// row-major, samples interleaved.
type Image struct {
	Width           int
	Height          int
	BitsPerSample   int
	SamplesPerPixel int // 0 means 1
	SampleFormat    int // 0 means SampleFormatUint
	Pixels          []byte
	Description     string
	Deflate         bool
}

type entry struct {
	code  uint16
	typ   uint16
	count uint32
	// inline holds the value when it fits in 4 bytes, extra holds the
	// out-of-line payload otherwise.
	inline [4]byte
	extra  []byte
}

// Encode writes a classic little-endian TIFF with one IFD per image,
// each image stored as a single strip.
func Encode(w io.Writer, images ...Image) error {
	if len(images) == 0 {
		return fmt.Errorf("no images to encode")
	}

	type layout struct {
		strip    []byte
		entries  []entry
		pixelOff uint32
		extraOff uint32
		ifdOff   uint32
		ifdSize  uint32
	}

	pages := make([]*layout, len(images))
	offset := uint32(8)

	for i, img := range images {
		spp := img.SamplesPerPixel
		if spp == 0 {
			spp = 1
		}
		format := img.SampleFormat
		if format == 0 {
			format = SampleFormatUint
		}
		if img.BitsPerSample%8 != 0 || img.BitsPerSample == 0 {
			return fmt.Errorf("image %d: unsupported bits per sample %d", i, img.BitsPerSample)
		}
		if want := img.Width * img.Height * spp * img.BitsPerSample / 8; len(img.Pixels) != want {
			return fmt.Errorf("image %d: %d pixel bytes, want %d", i, len(img.Pixels), want)
		}

		strip := img.Pixels
		compression := CompressionNone
		if img.Deflate {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(strip); err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			if err := zw.Close(); err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			strip = buf.Bytes()
			compression = CompressionDeflate
		}

		p := &layout{strip: strip, pixelOff: offset}

		p.entries = []entry{
			longEntry(TagImageWidth, uint32(img.Width)),
			longEntry(TagImageLength, uint32(img.Height)),
			shortEntry(TagBitsPerSample, uint16(img.BitsPerSample)),
			shortEntry(TagCompression, uint16(compression)),
			shortEntry(TagPhotometric, 1), // BlackIsZero
			longEntry(TagStripOffsets, p.pixelOff),
			shortEntry(TagSamplesPerPixel, uint16(spp)),
			longEntry(TagRowsPerStrip, uint32(img.Height)),
			longEntry(TagStripByteCounts, uint32(len(strip))),
			shortEntry(TagSampleFormat, uint16(format)),
		}
		if img.Description != "" {
			p.entries = append(p.entries, asciiEntry(TagImageDescription, img.Description))
		}
		sort.Slice(p.entries, func(a, b int) bool { return p.entries[a].code < p.entries[b].code })

		offset += uint32(len(strip))
		p.extraOff = offset
		for j := range p.entries {
			offset += uint32(len(p.entries[j].extra))
		}
		p.ifdOff = offset
		p.ifdSize = 2 + uint32(len(p.entries))*12 + 4
		offset += p.ifdSize

		pages[i] = p
	}

	var out bytes.Buffer
	out.WriteString("II")
	le := binary.LittleEndian
	writeU16 := func(v uint16) { _ = binary.Write(&out, le, v) }
	writeU32 := func(v uint32) { _ = binary.Write(&out, le, v) }
	writeU16(42)
	writeU32(pages[0].ifdOff)

	for i, p := range pages {
		out.Write(p.strip)

		// Out-of-line tag payloads live between the strip and the IFD.
		extra := p.extraOff
		for j := range p.entries {
			if len(p.entries[j].extra) > 0 {
				le.PutUint32(p.entries[j].inline[:], extra)
				extra += uint32(len(p.entries[j].extra))
				out.Write(p.entries[j].extra)
			}
		}

		writeU16(uint16(len(p.entries)))
		for _, e := range p.entries {
			writeU16(e.code)
			writeU16(e.typ)
			writeU32(e.count)
			out.Write(e.inline[:])
		}
		if i+1 < len(pages) {
			writeU32(pages[i+1].ifdOff)
		} else {
			writeU32(0)
		}
	}

	_, err := w.Write(out.Bytes())
	return err
}

func shortEntry(code uint16, v uint16) entry {
	e := entry{code: code, typ: 3, count: 1}
	binary.LittleEndian.PutUint16(e.inline[:2], v)
	return e
}

func longEntry(code uint16, v uint32) entry {
	e := entry{code: code, typ: 4, count: 1}
	binary.LittleEndian.PutUint32(e.inline[:], v)
	return e
}

func asciiEntry(code uint16, s string) entry {
	payload := append([]byte(s), 0)
	e := entry{code: code, typ: 2, count: uint32(len(payload))}
	if len(payload) <= 4 {
		copy(e.inline[:], payload)
		return e
	}
	e.extra = payload
	return e
}
