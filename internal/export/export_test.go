package export

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func swatch(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), 0x40, 0xff})
		}
	}
	return img
}

type chunk struct {
	typ  string
	body []byte
}

func chunks(t *testing.T, data []byte) []chunk {
	t.Helper()
	require.Greater(t, len(data), 8)
	var out []chunk
	for rest := data[8:]; len(rest) >= 12; {
		n := int(binary.BigEndian.Uint32(rest))
		out = append(out, chunk{typ: string(rest[4:8]), body: rest[8 : 8+n]})
		rest = rest[12+n:]
	}
	return out
}

func TestPNGCarriesDPI(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, swatch(20, 10), 300))

	cs := chunks(t, buf.Bytes())
	require.GreaterOrEqual(t, len(cs), 3)
	assert.Equal(t, "IHDR", cs[0].typ)
	assert.Equal(t, "pHYs", cs[1].typ)
	assert.Equal(t, uint32(11811), binary.BigEndian.Uint32(cs[1].body[0:]))
	assert.Equal(t, uint32(11811), binary.BigEndian.Uint32(cs[1].body[4:]))
	assert.Equal(t, byte(1), cs[1].body[8])
	assert.Equal(t, "IEND", cs[len(cs)-1].typ)

	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err, "checksums must still verify")
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())
}

func TestPNGReplacesExistingDPI(t *testing.T) {
	var first, second bytes.Buffer
	require.NoError(t, PNG(&first, swatch(4, 4), 72))
	data, err := withDPI(first.Bytes(), 600)
	require.NoError(t, err)
	second.Write(data)

	var phys []chunk
	for _, c := range chunks(t, second.Bytes()) {
		if c.typ == "pHYs" {
			phys = append(phys, c)
		}
	}
	require.Len(t, phys, 1)
	assert.Equal(t, uint32(23622), binary.BigEndian.Uint32(phys[0].body))
}

func TestMalformedPNG(t *testing.T) {
	_, err := withDPI([]byte("not a png"), 300)
	assert.Error(t, err)
}

func TestTIFFRoundTrip(t *testing.T) {
	src := swatch(16, 8)
	var buf bytes.Buffer
	require.NoError(t, TIFF(&buf, src))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
	r, g, b, a := img.At(5, 3).RGBA()
	assert.Equal(t, [4]uint32{5, 3, 0x40, 0xff}, [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, swatch(300, 150), 300))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestPDFRejectsEmptyImage(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, PDF(&buf, image.NewRGBA(image.Rect(0, 0, 0, 0)), 300), errEmpty)
}

func TestTiles(t *testing.T) {
	tests := []struct {
		name       string
		w, h       float64
		cols, rows int
	}{
		{"fits one page", 200, 290, 1, 1},
		{"exact page", 210, 297, 1, 1},
		{"wide", 211, 100, 2, 1},
		{"large", 900, 1200, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows := Tiles(tt.w, tt.h)
			assert.Equal(t, tt.cols, cols)
			assert.Equal(t, tt.rows, rows)
		})
	}
}

func TestTiledPDF(t *testing.T) {
	// 1000×1200 px at 100 dpi is 254×304.8 mm: two columns and two rows.
	var buf bytes.Buffer
	require.NoError(t, TiledPDF(&buf, swatch(1000, 1200), 100))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte("/Type /Page\n")))
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"out.png":     FormatPNG,
		"OUT.TIF":     FormatTIFF,
		"a/b.tiff":    FormatTIFF,
		"print.pdf":   FormatPDF,
		"archive.zip": "",
	}
	for path, want := range tests {
		got, err := FormatOf(path)
		if want == "" {
			assert.ErrorIs(t, err, ErrFormat, path)
			continue
		}
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestPrepareResamplesToPrintSize(t *testing.T) {
	img := Prepare(swatch(40, 20), Options{DPI: 100, WidthIn: 2, HeightIn: 1.5})
	assert.Equal(t, image.Rect(0, 0, 200, 150), img.Bounds())

	same := swatch(40, 20)
	assert.Same(t, same, Prepare(same, Options{DPI: 300}))
}

func TestSaveWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art.png")
	require.NoError(t, Save(path, swatch(8, 8), Options{DPI: 150}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cs := chunks(t, data)
	assert.Equal(t, "pHYs", cs[1].typ)
	assert.Equal(t, uint32(5906), binary.BigEndian.Uint32(cs[1].body))

	assert.ErrorIs(t, Save(filepath.Join(t.TempDir(), "art.bmp"), swatch(1, 1), Options{}), ErrFormat)
}
