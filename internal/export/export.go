// Package export writes finished artwork to print formats: PNG carrying
// its resolution, TIFF, and PDF sized in physical units.
package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"PatternBoard/internal/applog"
)

const mmPerInch = 25.4

var ErrFormat = errors.New("export: unsupported format")

type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
	FormatPDF  Format = "pdf"
)

// FormatOf picks a format from a file name's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
}

// Options describes a print. WidthIn and HeightIn are optional; when both
// are set the image is resampled to exactly that many inches at DPI.
type Options struct {
	DPI      int
	WidthIn  float64
	HeightIn float64
	// Tile splits a PDF over A4 pages instead of one page of the print size.
	Tile bool
}

func (o Options) dpi() int {
	if o.DPI <= 0 {
		return 300
	}
	return o.DPI
}

// PixelSize returns the pixel dimensions of a print of w×h inches.
func PixelSize(widthIn, heightIn float64, dpi int) (int, int) {
	return int(widthIn * float64(dpi)), int(heightIn * float64(dpi))
}

// Prepare resamples img to the print size named by o, if any.
func Prepare(img image.Image, o Options) image.Image {
	if o.WidthIn <= 0 || o.HeightIn <= 0 {
		return img
	}
	w, h := PixelSize(o.WidthIn, o.HeightIn, o.dpi())
	if w <= 0 || h <= 0 || (w == img.Bounds().Dx() && h == img.Bounds().Dy()) {
		return img
	}
	return transform.Resize(img, w, h, transform.Lanczos)
}

// Save writes img to path in the format its extension names.
func Save(path string, img image.Image, o Options) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, format, img, o); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	applog.Component("export").Info("artwork written", "path", path, "format", format, "dpi", o.dpi())
	return nil
}

// Write encodes img to w.
func Write(w io.Writer, format Format, img image.Image, o Options) error {
	img = Prepare(img, o)
	switch format {
	case FormatPNG:
		return PNG(w, img, o.dpi())
	case FormatTIFF:
		return TIFF(w, img)
	case FormatPDF:
		if o.Tile {
			return TiledPDF(w, img, o.dpi())
		}
		return PDF(w, img, o.dpi())
	}
	return fmt.Errorf("%w: %q", ErrFormat, format)
}

// PNG encodes img with a pHYs chunk recording dpi.
func PNG(w io.Writer, img image.Image, dpi int) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	data, err := withDPI(buf.Bytes(), dpi)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// withDPI inserts a pHYs chunk right after IHDR, replacing any existing one.
func withDPI(data []byte, dpi int) ([]byte, error) {
	const sigLen, ihdrLen = 8, 8 + 13 + 4
	if len(data) < sigLen+ihdrLen || string(data[12:16]) != "IHDR" {
		return nil, errors.New("export: malformed png")
	}
	ppm := uint32(math.Round(float64(dpi) / mmPerInch * 1000))
	body := make([]byte, 9)
	binary.BigEndian.PutUint32(body[0:], ppm)
	binary.BigEndian.PutUint32(body[4:], ppm)
	body[8] = 1 // metre

	out := make([]byte, 0, len(data)+21)
	out = append(out, data[:sigLen+ihdrLen]...)
	out = appendChunk(out, "pHYs", body)
	for rest := data[sigLen+ihdrLen:]; len(rest) >= 12; {
		n := int(binary.BigEndian.Uint32(rest))
		if len(rest) < 12+n {
			return nil, errors.New("export: truncated png chunk")
		}
		if string(rest[4:8]) != "pHYs" {
			out = append(out, rest[:12+n]...)
		}
		rest = rest[12+n:]
	}
	return out, nil
}

func appendChunk(dst []byte, typ string, body []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, body...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}

// TIFF encodes img as a deflate-compressed TIFF.
func TIFF(w io.Writer, img image.Image) error {
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return fmt.Errorf("encode tiff: %w", err)
	}
	return nil
}

// flatten composites img onto white, as paper has no alpha.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Over)
	return out
}
